package encryption_test

import (
	"context"
	"strings"
	"testing"

	"github.com/alwitt/secretshare/encryption"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestCryptoEngineVerifier(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := newTestEngine(t, "0123456789abcdef0123456789abcdef")

	verifier1, err := uut.HashVerifier(utCtx, "hunter2")
	assert.Nil(err)
	assert.True(strings.HasPrefix(verifier1, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotContains(verifier1, "hunter2")

	// Case 0: correct candidate
	match, err := uut.CheckVerifier(utCtx, verifier1, "hunter2")
	assert.Nil(err)
	assert.True(match)

	// Case 1: wrong candidate
	match, err = uut.CheckVerifier(utCtx, verifier1, "hunter3")
	assert.Nil(err)
	assert.False(match)
	match, err = uut.CheckVerifier(utCtx, verifier1, "")
	assert.Nil(err)
	assert.False(match)

	// Case 2: salted, so the same input hashes differently
	verifier2, err := uut.HashVerifier(utCtx, "hunter2")
	assert.Nil(err)
	assert.NotEqual(verifier1, verifier2)
	match, err = uut.CheckVerifier(utCtx, verifier2, "hunter2")
	assert.Nil(err)
	assert.True(match)

	// Case 3: malformed verifiers
	for _, malformed := range []string{
		"",
		"hunter2",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=16$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=0,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	} {
		_, err := uut.CheckVerifier(utCtx, malformed, "hunter2")
		assert.ErrorIs(err, encryption.ErrMalformedVerifier, malformed)
	}
}

func TestCryptoEngineRandomDigits(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := newTestEngine(t, "0123456789abcdef0123456789abcdef")

	// Case 0: invalid lengths
	_, err := uut.RandomDigits(utCtx, 0)
	assert.Error(err)
	_, err = uut.RandomDigits(utCtx, encryption.MaxRandomDigits+1)
	assert.Error(err)

	// Case 1: format
	seen := map[string]bool{}
	for itr := 0; itr < 200; itr++ {
		code, err := uut.RandomDigits(utCtx, 6)
		assert.Nil(err)
		assert.Len(code, 6)
		for _, digit := range code {
			assert.True(digit >= '0' && digit <= '9')
		}
		seen[code] = true
	}
	assert.Greater(len(seen), 190)

	// Case 2: every digit value shows up
	digits := map[rune]bool{}
	for itr := 0; itr < 300; itr++ {
		code, err := uut.RandomDigits(utCtx, 1)
		assert.Nil(err)
		digits[rune(code[0])] = true
	}
	assert.Len(digits, 10)
}
