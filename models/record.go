// Package models - system data models
package models

import "time"

// SecretRecord one shared secret, as persisted
//
// A record is referred to by exactly one share link. The record ID doubles as the input of
// the per-record key derivation, so the key itself is never stored.
type SecretRecord struct {
	// ID share ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// Ciphertext the encrypted secret followed by the authentication tag
	Ciphertext []byte `json:"-" gorm:"column:encrypted_secret;not null" validate:"required"`
	// Nonce the encryption nonce used
	Nonce []byte `json:"-" gorm:"column:iv;not null" validate:"required,len=12"`

	// ExpiresAt the record is unreadable from this point on
	ExpiresAt time.Time `json:"expires_at" gorm:"column:expires_at;not null;index:idx_shared_secrets_expires_at" validate:"required"`

	// MaxViews number of reveals allowed. NULL means unlimited until expiry.
	MaxViews *int `json:"max_views,omitempty" gorm:"column:max_views;default:null" validate:"omitempty,gt=0"`
	// ViewsRemaining number of reveals still allowed
	ViewsRemaining *int `json:"views_remaining,omitempty" gorm:"column:views_remaining;default:null" validate:"omitempty,gte=0,views_within_quota"`

	// PasswordVerifier encoded slow hash of the unlock password
	PasswordVerifier *string `json:"-" gorm:"column:password_hash;default:null" validate:"omitempty,min=1"`

	// RecipientEmail the recipient who must pass the OTP challenge
	RecipientEmail *string `json:"-" gorm:"column:email;default:null" validate:"omitempty,email"`

	// OTPVerifier encoded slow hash of the outstanding one-time code
	OTPVerifier *string `json:"-" gorm:"column:otp_hash;default:null"`
	// OTPExpiresAt when the outstanding one-time code stops being accepted
	OTPExpiresAt *time.Time `json:"-" gorm:"column:otp_expires_at;default:null"`
	// OTPVerified whether the recipient already passed the OTP challenge
	OTPVerified bool `json:"otp_verified" gorm:"column:otp_verified;not null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// HasViewQuota whether the record limits the number of reveals
func (r SecretRecord) HasViewQuota() bool {
	return r.MaxViews != nil
}

// RequiresPassword whether a password must be presented to unlock
func (r SecretRecord) RequiresPassword() bool {
	return r.PasswordVerifier != nil && *r.PasswordVerifier != ""
}

// RequiresOTP whether the recipient still has to pass the OTP challenge
func (r SecretRecord) RequiresOTP() bool {
	return r.RecipientEmail != nil && *r.RecipientEmail != "" && !r.OTPVerified
}

// HasActiveOTP whether an OTP challenge was issued and is still valid at `now`
func (r SecretRecord) HasActiveOTP(now time.Time) bool {
	if r.OTPVerifier == nil || *r.OTPVerifier == "" || r.OTPExpiresAt == nil {
		return false
	}
	return now.Before(*r.OTPExpiresAt)
}

// SecretRecordUpdate the mutable fields of a secret record
//
// Nil fields are left untouched.
type SecretRecordUpdate struct {
	ViewsRemaining *int
	OTPVerifier    *string
	OTPExpiresAt   *time.Time
	OTPVerified    *bool
	UpdatedAt      time.Time
}

// IsEmpty whether the update changes nothing
func (u SecretRecordUpdate) IsEmpty() bool {
	return u.ViewsRemaining == nil &&
		u.OTPVerifier == nil &&
		u.OTPExpiresAt == nil &&
		u.OTPVerified == nil
}

// Merge combine two updates, with `other` taking precedence
func (u SecretRecordUpdate) Merge(other SecretRecordUpdate) SecretRecordUpdate {
	if other.ViewsRemaining != nil {
		u.ViewsRemaining = other.ViewsRemaining
	}
	if other.OTPVerifier != nil {
		u.OTPVerifier = other.OTPVerifier
	}
	if other.OTPExpiresAt != nil {
		u.OTPExpiresAt = other.OTPExpiresAt
	}
	if other.OTPVerified != nil {
		u.OTPVerified = other.OTPVerified
	}
	if other.UpdatedAt.After(u.UpdatedAt) {
		u.UpdatedAt = other.UpdatedAt
	}
	return u
}
