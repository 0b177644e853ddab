package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/secretshare/auth"
	"github.com/alwitt/secretshare/db"
	"github.com/alwitt/secretshare/encryption"
	"github.com/alwitt/secretshare/metrics"
	"github.com/alwitt/secretshare/models"
	"github.com/alwitt/secretshare/notify"
	"github.com/alwitt/secretshare/quota"
	"github.com/apex/log"
)

// pendingCode a one-time code to deliver once the transaction commits
type pendingCode struct {
	recipient string
	code      string
}

/*
UnlockSecret attempt to redeem a secret

	@param ctx context.Context - execution context
	@param secretID string - the share ID
	@param creds auth.Credentials - what the recipient presented
	@returns the outcome
*/
func (v *vaultImpl) UnlockSecret(
	ctx context.Context, secretID string, creds auth.Credentials,
) (UnlockResult, error) {
	logTags := v.GetLogTagsForContext(ctx)
	started := time.Now()

	var result UnlockResult
	var toDeliver *pendingCode

	dbErr := v.persistence.UseDatabaseInLockedTransaction(
		ctx, secretID, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			result, toDeliver, err = v.unlockLocked(dbCtx, dbClient, secretID, creds)
			return err
		},
	)
	if dbErr != nil {
		outcome := metrics.UnlockOutcomeError
		if errors.Is(dbErr, db.ErrStoreContention) {
			outcome = metrics.UnlockOutcomeContention
			log.WithError(dbErr).
				WithFields(logTags).
				WithField("secret", secretID).
				Warn("Secret is busy")
		} else if errors.Is(dbErr, encryption.ErrAuthenticationFailure) {
			log.WithError(dbErr).
				WithFields(logTags).
				WithField("secret", secretID).
				Error("Stored secret is corrupted")
		}
		v.metrics.RecordUnlock(outcome, time.Since(started))
		return nil, fmt.Errorf("unlock of secret %s failed [%w]", secretID, dbErr)
	}

	// Deliver only what was committed
	if toDeliver != nil {
		v.metrics.RecordOTPIssued()
		subject, body := notify.OTPMessage(toDeliver.code, v.params.OTP.OTPValidity)
		if err := v.notifier.Send(ctx, toDeliver.recipient, subject, body); err != nil {
			log.WithError(err).
				WithFields(logTags).
				WithField("secret", secretID).
				Error("Failed to send one-time code")
		}
	}

	v.metrics.RecordUnlock(unlockOutcome(result), time.Since(started))
	return result, nil
}

// unlockLocked the unlock steps, run while holding the secret's lock
func (v *vaultImpl) unlockLocked(
	ctx context.Context, dbClient db.Database, secretID string, creds auth.Credentials,
) (UnlockResult, *pendingCode, error) {
	logTags := v.GetLogTagsForContext(ctx)

	record, err := dbClient.LockedFetchSecret(ctx, secretID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return NotFound{}, nil, nil
		}
		return nil, nil, err
	}

	now := v.params.Clock()

	// Expired or exhausted secrets are removed regardless of credentials
	if state := quota.CheckRedeemable(record, now); state != quota.Redeemable {
		if err := dbClient.DeleteSecret(ctx, secretID); err != nil {
			return nil, nil, err
		}
		log.WithFields(logTags).
			WithField("secret", secretID).
			WithField("reason", state.String()).
			Info("Removed unredeemable secret")
		return Gone{Reason: state}, nil, nil
	}

	verdict, err := v.authenticator.Evaluate(ctx, record, creds, now)
	if err != nil {
		return nil, nil, err
	}

	var result UnlockResult
	var toDeliver *pendingCode
	update := verdict.Update

	switch verdict.Kind {
	case auth.Unauthorized:
		result = Unauthorized{}

	case auth.RequireOtp:
		result = RequireOtp{
			PasswordVerified: verdict.PasswordVerified, CodeIssued: verdict.IssuedCode != "",
		}
		if verdict.IssuedCode != "" {
			toDeliver = &pendingCode{recipient: *record.RecipientEmail, code: verdict.IssuedCode}
		}

	case auth.Ready:
		plainText, err := v.crypto.OpenSecret(
			ctx,
			secretID,
			encryption.EncryptedData{CipherText: record.Ciphertext, Nonce: record.Nonce},
		)
		if err != nil {
			return nil, nil, err
		}

		consumed := quota.ConsumeView(record, now)
		switch consumed.Action {
		case quota.Deleted:
			if err := dbClient.DeleteSecret(ctx, secretID); err != nil {
				return nil, nil, err
			}
			log.WithFields(logTags).WithField("secret", secretID).Info("Last view consumed")
			return Unlocked{Plaintext: plainText}, nil, nil
		case quota.Decremented:
			update = update.Merge(consumed.Update)
		}
		result = Unlocked{Plaintext: plainText}

	default:
		return nil, nil, fmt.Errorf("unknown verdict '%s'", verdict.Kind)
	}

	if err := v.persist(ctx, dbClient, secretID, update); err != nil {
		return nil, nil, err
	}

	return result, toDeliver, nil
}

// persist write the accumulated record changes
func (v *vaultImpl) persist(
	ctx context.Context, dbClient db.Database, secretID string, update models.SecretRecordUpdate,
) error {
	if update.IsEmpty() {
		return nil
	}
	return dbClient.UpdateSecret(ctx, secretID, update)
}

// unlockOutcome metric label of an unlock result
func unlockOutcome(result UnlockResult) string {
	switch result.(type) {
	case Unlocked:
		return metrics.UnlockOutcomeUnlocked
	case Gone:
		return metrics.UnlockOutcomeGone
	case NotFound:
		return metrics.UnlockOutcomeNotFound
	case Unauthorized:
		return metrics.UnlockOutcomeUnauthorized
	case RequireOtp:
		return metrics.UnlockOutcomeRequireOtp
	default:
		return metrics.UnlockOutcomeError
	}
}
