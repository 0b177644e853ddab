package db

import "github.com/alwitt/secretshare/models"

// --------------------------------------------------------------------------------------
// System parameters

// SystemParamsDBEntry system parameters DB entry
type SystemParamsDBEntry struct {
	models.SystemParams
}

// TableName hard code table name
func (SystemParamsDBEntry) TableName() string {
	return "system_params"
}

// --------------------------------------------------------------------------------------
// Shared secrets

// SecretRecordDBEntry shared secret DB entry
type SecretRecordDBEntry struct {
	models.SecretRecord
}

// TableName hard code table name
func (SecretRecordDBEntry) TableName() string {
	return "shared_secrets"
}
