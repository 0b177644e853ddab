// Package auth - password and one-time code gates guarding a secret
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/secretshare/encryption"
	"github.com/alwitt/secretshare/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// Credentials what the recipient presented when unlocking
type Credentials struct {
	// Password optional password
	Password *string
	// OTPCode optional one-time code
	OTPCode *string
}

// VerdictKind outcome of the gate chain
type VerdictKind int

const (
	// Ready all gates passed, the secret can be decrypted
	Ready VerdictKind = iota
	// Unauthorized password missing or incorrect
	Unauthorized
	// RequireOtp the one-time code gate is pending
	RequireOtp
)

// String implements fmt.Stringer
func (k VerdictKind) String() string {
	switch k {
	case Ready:
		return "ready"
	case Unauthorized:
		return "unauthorized"
	case RequireOtp:
		return "require-otp"
	default:
		return "unknown"
	}
}

// Verdict result of evaluating the gates against a secret
type Verdict struct {
	Kind VerdictKind
	// PasswordVerified a password gate was passed on this call
	PasswordVerified bool
	// IssuedCode plain one-time code to deliver to the recipient. Empty if none was issued.
	IssuedCode string
	// Update one-time code bookkeeping to persist, whatever the verdict
	Update models.SecretRecordUpdate
}

// Params authenticator parameters
type Params struct {
	// OTPValidity how long an issued code stays valid
	OTPValidity time.Duration `validate:"gte=1s"`
	// OTPLength number of digits in a code
	OTPLength int `validate:"gte=4,lte=9"`
}

// DefaultParams default authenticator parameters
func DefaultParams() Params {
	return Params{OTPValidity: time.Minute * 10, OTPLength: 6}
}

// Authenticator evaluates the password then one-time code gates of a secret
type Authenticator interface {
	/*
		Evaluate run the gate chain against a secret

		The authenticator never touches storage. The returned Update must be persisted by the
		caller even when the verdict is not Ready.

			@param ctx context.Context - execution context
			@param record models.SecretRecord - the locked secret
			@param creds Credentials - what the recipient presented
			@param now time.Time - current time
			@returns the verdict
	*/
	Evaluate(
		ctx context.Context, record models.SecretRecord, creds Credentials, now time.Time,
	) (Verdict, error)
}

// authenticatorImpl implements Authenticator
type authenticatorImpl struct {
	goutils.Component
	crypto encryption.CryptographyEngine
	params Params
}

/*
NewAuthenticator define new unlock authenticator

	@param crypto encryption.CryptographyEngine - verifier hashing and random codes
	@param params Params - authenticator parameters
	@returns authenticator
*/
func NewAuthenticator(crypto encryption.CryptographyEngine, params Params) (Authenticator, error) {
	if err := validator.New().Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid authenticator parameters [%w]", err)
	}
	return &authenticatorImpl{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "auth", "component": "authenticator"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		crypto: crypto,
		params: params,
	}, nil
}

func presented(value *string) bool {
	return value != nil && *value != ""
}

func (a *authenticatorImpl) Evaluate(
	ctx context.Context, record models.SecretRecord, creds Credentials, now time.Time,
) (Verdict, error) {
	logTags := a.GetLogTagsForContext(ctx)
	verdict := Verdict{Kind: Ready}

	// Password gate
	if record.RequiresPassword() {
		if !presented(creds.Password) {
			verdict.Kind = Unauthorized
			return verdict, nil
		}
		match, err := a.crypto.CheckVerifier(ctx, *record.PasswordVerifier, *creds.Password)
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to verify password of secret %s [%w]", record.ID, err)
		}
		if !match {
			log.WithFields(logTags).WithField("secret", record.ID).Debug("Password mismatch")
			verdict.Kind = Unauthorized
			return verdict, nil
		}
		verdict.PasswordVerified = true
	}

	// One-time code gate
	if record.RequiresOTP() {
		if !presented(creds.OTPCode) {
			return a.issueCode(ctx, record, verdict, now)
		}
		return a.checkCode(ctx, record, *creds.OTPCode, verdict, now)
	}

	return verdict, nil
}

// issueCode respond to a code request, issuing a new code unless a valid one is outstanding
func (a *authenticatorImpl) issueCode(
	ctx context.Context, record models.SecretRecord, verdict Verdict, now time.Time,
) (Verdict, error) {
	logTags := a.GetLogTagsForContext(ctx)
	verdict.Kind = RequireOtp

	if record.HasActiveOTP(now) {
		log.WithFields(logTags).
			WithField("secret", record.ID).
			Debug("One-time code already outstanding, not reissuing")
		return verdict, nil
	}

	code, err := a.crypto.RandomDigits(ctx, a.params.OTPLength)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to generate one-time code [%w]", err)
	}
	hashed, err := a.crypto.HashVerifier(ctx, code)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to hash one-time code [%w]", err)
	}
	expiresAt := now.Add(a.params.OTPValidity)

	verdict.IssuedCode = code
	verdict.Update = models.SecretRecordUpdate{
		OTPVerifier:  &hashed,
		OTPExpiresAt: &expiresAt,
		UpdatedAt:    now,
	}
	log.WithFields(logTags).
		WithField("secret", record.ID).
		WithField("otp-expire", expiresAt).
		Info("Issued one-time code")
	return verdict, nil
}

// checkCode verify a presented code against the outstanding one
func (a *authenticatorImpl) checkCode(
	ctx context.Context, record models.SecretRecord, code string, verdict Verdict, now time.Time,
) (Verdict, error) {
	logTags := a.GetLogTagsForContext(ctx)

	if !record.HasActiveOTP(now) {
		log.WithFields(logTags).
			WithField("secret", record.ID).
			Debug("No valid one-time code outstanding")
		verdict.Kind = RequireOtp
		return verdict, nil
	}

	match, err := a.crypto.CheckVerifier(ctx, *record.OTPVerifier, code)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to verify one-time code of secret %s [%w]", record.ID, err)
	}
	if !match {
		log.WithFields(logTags).WithField("secret", record.ID).Debug("One-time code mismatch")
		verdict.Kind = RequireOtp
		return verdict, nil
	}

	verified := true
	verdict.Kind = Ready
	verdict.Update = models.SecretRecordUpdate{OTPVerified: &verified, UpdatedAt: now}
	return verdict, nil
}
