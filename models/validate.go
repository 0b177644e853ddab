package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

/*
RegisterWithValidator register with the validator this custom validation support

	@param v *validator.Validate - the validator to register against
	@return whether successful
*/
func RegisterWithValidator(v *validator.Validate) error {
	if err := v.RegisterValidation(
		"system_state", validateSystemStateType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"views_within_quota", validateViewsWithinQuota,
	); err != nil {
		return err
	}

	return nil
}

func validateSystemStateType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch SystemStateENUMType(fl.Field().String()) {
	case SystemStatePreInit:
		fallthrough
	case SystemStateInit:
		fallthrough
	case SystemStateRunning:
		return true
	}
	return false
}

// validateViewsWithinQuota ViewsRemaining must not exceed MaxViews on a SecretRecord
func validateViewsWithinQuota(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.Int {
		return false
	}
	maxViews := reflect.Indirect(fl.Parent()).FieldByName("MaxViews")
	if !maxViews.IsValid() {
		return false
	}
	if maxViews.Kind() == reflect.Ptr {
		if maxViews.IsNil() {
			// Remaining views without a quota makes no sense
			return false
		}
		maxViews = maxViews.Elem()
	}
	return fl.Field().Int() <= maxViews.Int()
}
