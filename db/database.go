// Package db - persistence layer
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/secretshare/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	// ErrNotFound the secret does not exist
	ErrNotFound = errors.New("secret not found")
	// ErrDuplicateID a secret with the same ID already exists
	ErrDuplicateID = errors.New("secret ID already in use")
)

// Database the database handle to interacting with the data base
type Database interface {
	// ------------------------------------------------------------------------------------
	// System parameters

	/*
		GetSystemParamEntry fetch the global singleton system parameter entry

			@param ctx context.Context - execution context
			@returns the entry
	*/
	GetSystemParamEntry(ctx context.Context) (models.SystemParams, error)

	/*
		MarkSystemInitializing mark system is initializing

			@param ctx context.Context - execution context
	*/
	MarkSystemInitializing(ctx context.Context) error

	/*
		MarkSystemInitialized mark system fully initialized

			@param ctx context.Context - execution context
	*/
	MarkSystemInitialized(ctx context.Context) error

	/*
		RecordKDFParams record the key derivation parameters in use

			@param ctx context.Context - execution context
			@param params models.KDFParams - the parameters
	*/
	RecordKDFParams(ctx context.Context, params models.KDFParams) error

	// ------------------------------------------------------------------------------------
	// Shared secrets

	/*
		InsertSecret record a new shared secret

			@param ctx context.Context - execution context
			@param record models.SecretRecord - the new secret
			@returns the stored secret
	*/
	InsertSecret(ctx context.Context, record models.SecretRecord) (models.SecretRecord, error)

	/*
		LockedFetchSecret fetch a secret, locking its row until the enclosing transaction ends

			@param ctx context.Context - execution context
			@param secretID string - the secret ID
			@returns the secret
	*/
	LockedFetchSecret(ctx context.Context, secretID string) (models.SecretRecord, error)

	/*
		UpdateSecret update the mutable fields of a secret

			@param ctx context.Context - execution context
			@param secretID string - the secret ID
			@param update models.SecretRecordUpdate - the fields to change
	*/
	UpdateSecret(ctx context.Context, secretID string, update models.SecretRecordUpdate) error

	/*
		DeleteSecret delete a secret

			@param ctx context.Context - execution context
			@param secretID string - the secret ID
	*/
	DeleteSecret(ctx context.Context, secretID string) error

	/*
		PurgeExpiredSecrets delete every secret which expired at or before a timestamp

			@param ctx context.Context - execution context
			@param before time.Time - the cut-off
			@returns number of secrets deleted
	*/
	PurgeExpiredSecrets(ctx context.Context, before time.Time) (int64, error)
}

// databaseImpl implements Database
type databaseImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

// newDatabase define a new database client
func newDatabase(_ context.Context, sqlClient *gorm.DB) (Database, error) {
	logTags := log.Fields{"package": "secretshare", "module": "db", "component": "db-client"}

	instance := &databaseImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        sqlClient,
		validator: validator.New(),
	}

	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	return instance, nil
}
