package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/secretshare/models"
	"github.com/apex/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/*
InsertSecret record a new shared secret

	@param ctx context.Context - execution context
	@param record models.SecretRecord - the new secret
	@returns the stored secret
*/
func (d *databaseImpl) InsertSecret(
	_ context.Context, record models.SecretRecord,
) (models.SecretRecord, error) {
	newEntry := SecretRecordDBEntry{SecretRecord: record}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.SecretRecord{}, fmt.Errorf("new secret %s is not valid [%w]", record.ID, err)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		if errors.Is(tmp.Error, gorm.ErrDuplicatedKey) {
			return models.SecretRecord{}, fmt.Errorf(
				"new secret %s failed insert [%w]", record.ID, ErrDuplicateID,
			)
		}
		return models.SecretRecord{}, fmt.Errorf(
			"new secret %s failed insert [%w]", record.ID, tmp.Error,
		)
	}

	return newEntry.SecretRecord, nil
}

/*
LockedFetchSecret fetch a secret, locking its row until the enclosing transaction ends

	@param ctx context.Context - execution context
	@param secretID string - the secret ID
	@returns the secret
*/
func (d *databaseImpl) LockedFetchSecret(
	_ context.Context, secretID string,
) (models.SecretRecord, error) {
	var entry SecretRecordDBEntry
	tmp := d.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", secretID).
		First(&entry)
	if tmp.Error != nil {
		if errors.Is(tmp.Error, gorm.ErrRecordNotFound) {
			return models.SecretRecord{}, fmt.Errorf("secret %s unknown [%w]", secretID, ErrNotFound)
		}
		return models.SecretRecord{}, fmt.Errorf("failed to fetch secret %s [%w]", secretID, tmp.Error)
	}
	return entry.SecretRecord, nil
}

/*
UpdateSecret update the mutable fields of a secret

	@param ctx context.Context - execution context
	@param secretID string - the secret ID
	@param update models.SecretRecordUpdate - the fields to change
*/
func (d *databaseImpl) UpdateSecret(
	_ context.Context, secretID string, update models.SecretRecordUpdate,
) error {
	if update.IsEmpty() {
		return nil
	}

	changes := map[string]interface{}{}
	if update.ViewsRemaining != nil {
		if *update.ViewsRemaining < 0 {
			return fmt.Errorf("secret %s can't have negative remaining views", secretID)
		}
		changes["views_remaining"] = *update.ViewsRemaining
	}
	if update.OTPVerifier != nil {
		changes["otp_hash"] = *update.OTPVerifier
	}
	if update.OTPExpiresAt != nil {
		changes["otp_expires_at"] = *update.OTPExpiresAt
	}
	if update.OTPVerified != nil {
		changes["otp_verified"] = *update.OTPVerified
	}
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	changes["updated_at"] = updatedAt

	tmp := d.db.Model(&SecretRecordDBEntry{}).Where("id = ?", secretID).Updates(changes)
	if tmp.Error != nil {
		return fmt.Errorf("failed to update secret %s [%w]", secretID, tmp.Error)
	}
	if tmp.RowsAffected == 0 {
		return fmt.Errorf("secret %s unknown [%w]", secretID, ErrNotFound)
	}

	return nil
}

/*
DeleteSecret delete a secret

	@param ctx context.Context - execution context
	@param secretID string - the secret ID
*/
func (d *databaseImpl) DeleteSecret(_ context.Context, secretID string) error {
	tmp := d.db.Where("id = ?", secretID).Delete(&SecretRecordDBEntry{})
	if tmp.Error != nil {
		return fmt.Errorf("failed to delete secret %s [%w]", secretID, tmp.Error)
	}
	if tmp.RowsAffected == 0 {
		return fmt.Errorf("secret %s unknown [%w]", secretID, ErrNotFound)
	}
	return nil
}

/*
PurgeExpiredSecrets delete every secret which expired at or before a timestamp

	@param ctx context.Context - execution context
	@param before time.Time - the cut-off
	@returns number of secrets deleted
*/
func (d *databaseImpl) PurgeExpiredSecrets(ctx context.Context, before time.Time) (int64, error) {
	tmp := d.db.Where("expires_at <= ?", before).Delete(&SecretRecordDBEntry{})
	if tmp.Error != nil {
		return 0, fmt.Errorf("failed to purge secrets expired before %s [%w]", before, tmp.Error)
	}
	if tmp.RowsAffected > 0 {
		log.WithFields(d.GetLogTagsForContext(ctx)).
			WithField("purged", tmp.RowsAffected).
			Debug("Purged expired secrets")
	}
	return tmp.RowsAffected, nil
}
