package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alwitt/secretshare/models"
	"github.com/apex/log"
	"gorm.io/datatypes"
)

// GlobalSystemParamEntryID ID of the singleton system parameter entry
const GlobalSystemParamEntryID = "system-parameters"

// getSystemParamEntry fetch the system param entry
//
// If the entry does not exist, initialize a new one.
func (d *databaseImpl) getSystemParamEntry() (SystemParamsDBEntry, error) {
	var entries []SystemParamsDBEntry
	dbErr := d.db.Where("id = ?", GlobalSystemParamEntryID).Find(&entries).Error
	if dbErr != nil {
		return SystemParamsDBEntry{}, fmt.Errorf("failed to read system params table [%w]", dbErr)
	}
	if len(entries) == 0 {
		// Make a new one
		newEntry := SystemParamsDBEntry{
			SystemParams: models.SystemParams{
				ID:    GlobalSystemParamEntryID,
				State: models.SystemStatePreInit,
			},
		}
		if err := d.validator.Struct(&newEntry); err != nil {
			return SystemParamsDBEntry{}, fmt.Errorf("system params entry is not valid [%w]", err)
		}
		if dbErr = d.db.Create(&newEntry).Error; dbErr != nil {
			return SystemParamsDBEntry{}, fmt.Errorf(
				"failed to setup singleton system params table [%w]", dbErr,
			)
		}
		return newEntry, nil
	}
	return entries[0], nil
}

/*
GetSystemParamEntry fetch the global singleton system parameter entry

	@param ctx context.Context - execution context
	@returns the entry
*/
func (d *databaseImpl) GetSystemParamEntry(_ context.Context) (models.SystemParams, error) {
	entry, err := d.getSystemParamEntry()
	if err != nil {
		return entry.SystemParams, fmt.Errorf("unable to fetch system parameter entry [%w]", err)
	}
	return entry.SystemParams, nil
}

// updateSystemParamState update the system parameter entry with new state
func (d *databaseImpl) updateSystemParamState(
	ctx context.Context, newState models.SystemStateENUMType,
) error {
	entry, err := d.getSystemParamEntry()
	if err != nil {
		return fmt.Errorf("unable to fetch system parameter entry [%w]", err)
	}

	if entry.State == newState {
		// NOOP
		return nil
	}

	if err := entry.ValidateNextState(newState); err != nil {
		return fmt.Errorf("system state change to %s not allowed [%w]", newState, err)
	}

	oldState := entry.State
	entry.State = newState
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return fmt.Errorf("system state change update failed [%w]", tmp.Error)
	}

	log.WithFields(d.GetLogTagsForContext(ctx)).
		WithField("from", oldState).
		WithField("to", newState).
		Info("System state changed")

	return nil
}

/*
MarkSystemInitializing mark system is initializing

	@param ctx context.Context - execution context
*/
func (d *databaseImpl) MarkSystemInitializing(ctx context.Context) error {
	return d.updateSystemParamState(ctx, models.SystemStateInit)
}

/*
MarkSystemInitialized mark system fully initialized

	@param ctx context.Context - execution context
*/
func (d *databaseImpl) MarkSystemInitialized(ctx context.Context) error {
	return d.updateSystemParamState(ctx, models.SystemStateRunning)
}

/*
RecordKDFParams record the key derivation parameters in use

	@param ctx context.Context - execution context
	@param params models.KDFParams - the parameters
*/
func (d *databaseImpl) RecordKDFParams(_ context.Context, params models.KDFParams) error {
	if err := d.validator.Struct(&params); err != nil {
		return fmt.Errorf("KDF params are not valid [%w]", err)
	}

	entry, err := d.getSystemParamEntry()
	if err != nil {
		return fmt.Errorf("unable to fetch system parameter entry [%w]", err)
	}

	serialized, err := json.Marshal(&params)
	if err != nil {
		return fmt.Errorf("failed to serialize KDF params [%w]", err)
	}

	entry.KDFParams = datatypes.JSON(serialized)
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return fmt.Errorf("KDF params update failed [%w]", tmp.Error)
	}

	return nil
}
