package db

import (
	"context"

	"gorm.io/gorm"
)

// DefineTables create or update the tables of every persisted entity
func DefineTables(_ context.Context, db *gorm.DB) error {
	return db.AutoMigrate(
		SystemParamsDBEntry{},
		SecretRecordDBEntry{},
	)
}
