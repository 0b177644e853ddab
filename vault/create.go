package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/secretshare/db"
	"github.com/alwitt/secretshare/metrics"
	"github.com/alwitt/secretshare/models"
	"github.com/apex/log"
	"github.com/google/uuid"
)

// validateCreate check a create request against the vault limits
func (v *vaultImpl) validateCreate(req CreateRequest) error {
	if err := v.validator.Struct(&req); err != nil {
		return fmt.Errorf("%s [%w]", err.Error(), ErrValidation)
	}
	if req.ExpiresInDays > v.params.MaxExpiryDays {
		return fmt.Errorf(
			"expiresInDays %d exceeds %d [%w]", req.ExpiresInDays, v.params.MaxExpiryDays, ErrValidation,
		)
	}
	return nil
}

/*
CreateSecret encrypt and store a new secret

	@param ctx context.Context - execution context
	@param req CreateRequest - the new secret
	@param activeDBClient db.Database - existing database transaction
	@returns the share ID of the secret
*/
func (v *vaultImpl) CreateSecret(
	ctx context.Context, req CreateRequest, activeDBClient db.Database,
) (string, error) {
	logTags := v.GetLogTagsForContext(ctx)

	if err := v.validateCreate(req); err != nil {
		v.metrics.RecordCreate(metrics.CreateOutcomeInvalid)
		return "", err
	}

	now := v.params.Clock()
	secretID := uuid.NewString()

	record := models.SecretRecord{
		ID:             secretID,
		ExpiresAt:      now.Add(time.Hour * 24 * time.Duration(req.ExpiresInDays)),
		RecipientEmail: req.Email,
		OTPVerified:    req.Email == nil,
	}

	maxViews := req.MaxViews
	if maxViews == nil && v.params.DefaultMaxViews > 0 {
		defaultViews := v.params.DefaultMaxViews
		maxViews = &defaultViews
	}
	if maxViews != nil {
		limit := *maxViews
		remaining := *maxViews
		record.MaxViews = &limit
		record.ViewsRemaining = &remaining
	}

	// Slow hashing and key derivation happen outside of the transaction
	sealed, err := v.crypto.SealSecret(ctx, secretID, []byte(req.Secret))
	if err != nil {
		v.metrics.RecordCreate(metrics.CreateOutcomeError)
		return "", fmt.Errorf("failed to encrypt new secret [%w]", err)
	}
	record.Ciphertext = sealed.CipherText
	record.Nonce = sealed.Nonce

	if req.Password != nil {
		verifier, err := v.crypto.HashVerifier(ctx, *req.Password)
		if err != nil {
			v.metrics.RecordCreate(metrics.CreateOutcomeError)
			return "", fmt.Errorf("failed to hash password of new secret [%w]", err)
		}
		record.PasswordVerifier = &verifier
	}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			_, err := dbClient.InsertSecret(dbCtx, record)
			return err
		},
	); dbErr != nil {
		v.metrics.RecordCreate(metrics.CreateOutcomeError)
		return "", fmt.Errorf("failed to store new secret [%w]", dbErr)
	}

	v.metrics.RecordCreate(metrics.CreateOutcomeCreated)
	log.WithFields(logTags).
		WithField("secret", secretID).
		WithField("expire", record.ExpiresAt).
		WithField("password", record.RequiresPassword()).
		WithField("otp", record.RequiresOTP()).
		Info("Created secret")

	return secretID, nil
}
