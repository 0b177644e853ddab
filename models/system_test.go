package models_test

import (
	"strings"
	"testing"

	"github.com/alwitt/secretshare/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestSystemParamsParseKDFParams(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	validate := validator.New()
	fingerprint := strings.Repeat("ab", 32)

	// Case 0: nothing recorded
	{
		parsed, err := models.SystemParams{}.ParseKDFParams(validate)
		assert.Nil(err)
		assert.Nil(parsed)
	}

	// Case 1: valid record
	{
		params := models.SystemParams{KDFParams: datatypes.JSON(
			`{"algorithm":"pbkdf2-sha256","iterations":100000,"salt_fingerprint":"` + fingerprint + `"}`,
		)}
		parsed, err := params.ParseKDFParams(validate)
		assert.Nil(err)
		assert.NotNil(parsed)
		assert.Equal(100000, parsed.Iterations)
		assert.Equal(fingerprint, parsed.SaltFingerprint)
	}

	// Case 2: record fails validation
	{
		params := models.SystemParams{KDFParams: datatypes.JSON(
			`{"algorithm":"pbkdf2-sha256","iterations":10,"salt_fingerprint":"` + fingerprint + `"}`,
		)}
		parsed, err := params.ParseKDFParams(validate)
		assert.Error(err)
		assert.Nil(parsed)
	}

	// Case 3: record is not JSON
	{
		params := models.SystemParams{KDFParams: datatypes.JSON(`not-json`)}
		parsed, err := params.ParseKDFParams(validate)
		assert.Error(err)
		assert.Nil(parsed)
	}
}
