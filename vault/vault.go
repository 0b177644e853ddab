// Package vault - create and redeem shared secrets
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/secretshare/auth"
	"github.com/alwitt/secretshare/db"
	"github.com/alwitt/secretshare/encryption"
	"github.com/alwitt/secretshare/metrics"
	"github.com/alwitt/secretshare/models"
	"github.com/alwitt/secretshare/notify"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// ErrValidation request is malformed or out of range
var ErrValidation = errors.New("request validation failed")

// ErrKDFMismatch the configured key derivation does not match what existing secrets used
var ErrKDFMismatch = errors.New("key derivation parameters changed")

// CreateRequest parameters of a new secret
type CreateRequest struct {
	// Secret the plain text to share
	Secret string `validate:"required"`
	// ExpiresInDays lifetime of the secret in days
	ExpiresInDays int `validate:"gte=1"`
	// Password optional password required to unlock
	Password *string `validate:"omitempty,min=1,max=128"`
	// MaxViews optional number of times the secret can be revealed
	MaxViews *int `validate:"omitempty,gt=0"`
	// Email optional recipient address. Activates the one-time code gate.
	Email *string `validate:"omitempty,email"`
}

// Vault the secret vault
type Vault interface {
	/*
		CreateSecret encrypt and store a new secret

			@param ctx context.Context - execution context
			@param req CreateRequest - the new secret
			@param activeDBClient db.Database - existing database transaction
			@returns the share ID of the secret
	*/
	CreateSecret(ctx context.Context, req CreateRequest, activeDBClient db.Database) (string, error)

	/*
		UnlockSecret attempt to redeem a secret

		All checks and mutations run in one transaction holding the secret's lock.
		Returns db.ErrStoreContention if the lock could not be taken in time, and
		encryption.ErrAuthenticationFailure if the stored cipher text is corrupted.

			@param ctx context.Context - execution context
			@param secretID string - the share ID
			@param creds auth.Credentials - what the recipient presented
			@returns the outcome
	*/
	UnlockSecret(ctx context.Context, secretID string, creds auth.Credentials) (UnlockResult, error)

	/*
		PurgeExpired delete every expired secret

			@param ctx context.Context - execution context
			@returns number of secrets deleted
	*/
	PurgeExpired(ctx context.Context) (int64, error)
}

// Params vault configuration. Fixed for the life of the vault.
type Params struct {
	// MaxExpiryDays longest lifetime of a secret
	MaxExpiryDays int `validate:"gte=1,lte=30"`
	// DefaultMaxViews view quota applied when a request does not set one. 0 means unlimited.
	DefaultMaxViews int `validate:"gte=0"`
	// OTP one-time code parameters
	OTP auth.Params `validate:"required"`
	// Clock optional time source. Defaults to time.Now in UTC.
	Clock func() time.Time `validate:"-"`
}

// DefaultParams default vault parameters
func DefaultParams() Params {
	return Params{MaxExpiryDays: 30, DefaultMaxViews: 1, OTP: auth.DefaultParams()}
}

// vaultImpl implements Vault
type vaultImpl struct {
	goutils.Component

	persistence   db.Client
	crypto        encryption.CryptographyEngine
	authenticator auth.Authenticator
	notifier      notify.Notifier
	metrics       *metrics.Collector
	validator     *validator.Validate

	params Params
}

/*
NewVault define new secret vault

Records the key derivation parameters on first start, and refuses to start if they changed
since, as existing secrets could no longer be decrypted.

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@param crypto encryption.CryptographyEngine - cryptography engine
	@param notifier notify.Notifier - delivers one-time codes
	@param collector *metrics.Collector - optional metrics
	@param params Params - vault configuration
	@returns vault instance
*/
func NewVault(
	ctx context.Context,
	persistence db.Client,
	crypto encryption.CryptographyEngine,
	notifier notify.Notifier,
	collector *metrics.Collector,
	params Params,
) (Vault, error) {
	validate := validator.New()
	if err := validate.Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid vault parameters [%w]", err)
	}
	if params.Clock == nil {
		params.Clock = func() time.Time { return time.Now().UTC() }
	}

	authenticator, err := auth.NewAuthenticator(crypto, params.OTP)
	if err != nil {
		return nil, fmt.Errorf("failed to define authenticator [%w]", err)
	}

	logTags := log.Fields{"module": "vault", "component": "secret-vault"}

	instance := &vaultImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence:   persistence,
		crypto:        crypto,
		authenticator: authenticator,
		notifier:      notifier,
		metrics:       collector,
		validator:     validate,
		params:        params,
	}

	if dbErr := persistence.UseDatabaseInTransaction(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			return instance.initialize(dbCtx, dbClient)
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to initialize vault [%w]", dbErr)
	}

	return instance, nil
}

// initialize verify or record the KDF parameters, then mark the system running
func (v *vaultImpl) initialize(ctx context.Context, dbClient db.Database) error {
	logTags := v.GetLogTagsForContext(ctx)

	sysParams, err := dbClient.GetSystemParamEntry(ctx)
	if err != nil {
		return err
	}

	current, err := v.crypto.KDFParams(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute KDF parameters [%w]", err)
	}

	recorded, err := sysParams.ParseKDFParams(v.validator)
	if err != nil {
		return fmt.Errorf("recorded KDF parameters are not valid [%w]", err)
	}
	if recorded == nil {
		if err := dbClient.RecordKDFParams(ctx, current); err != nil {
			return err
		}
		log.WithFields(logTags).
			WithField("kdf", current.Algorithm).
			WithField("iterations", current.Iterations).
			Info("Recorded KDF parameters")
	} else if *recorded != current {
		return fmt.Errorf(
			"recorded %s/%d/%s, configured %s/%d/%s [%w]",
			recorded.Algorithm, recorded.Iterations, recorded.SaltFingerprint,
			current.Algorithm, current.Iterations, current.SaltFingerprint,
			ErrKDFMismatch,
		)
	}

	if sysParams.State == models.SystemStatePreInit {
		if err := dbClient.MarkSystemInitializing(ctx); err != nil {
			return err
		}
	}
	if sysParams.State != models.SystemStateRunning {
		if err := dbClient.MarkSystemInitialized(ctx); err != nil {
			return err
		}
	}

	return nil
}

/*
PurgeExpired delete every expired secret

	@param ctx context.Context - execution context
	@returns number of secrets deleted
*/
func (v *vaultImpl) PurgeExpired(ctx context.Context) (int64, error) {
	var purged int64
	now := v.params.Clock()
	if dbErr := v.persistence.UseDatabaseInTransaction(
		ctx, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			purged, err = dbClient.PurgeExpiredSecrets(dbCtx, now)
			return err
		},
	); dbErr != nil {
		return 0, fmt.Errorf("failed to purge expired secrets [%w]", dbErr)
	}
	v.metrics.RecordPurged(purged)
	if purged > 0 {
		log.WithFields(v.GetLogTagsForContext(ctx)).
			WithField("purged", purged).
			Info("Purged expired secrets")
	}
	return purged, nil
}
