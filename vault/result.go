package vault

import "github.com/alwitt/secretshare/quota"

// UnlockResult outcome of an unlock request. It is one of Unlocked, Gone, NotFound,
// Unauthorized, or RequireOtp.
type UnlockResult interface {
	isUnlockResult()
}

// Unlocked the secret was revealed
type Unlocked struct {
	Plaintext []byte
}

// Gone the secret expired or ran out of views, and has been deleted
type Gone struct {
	Reason quota.Redeemability
}

// NotFound no secret with that ID
type NotFound struct{}

// Unauthorized password missing or incorrect
type Unauthorized struct{}

// RequireOtp a one-time code must be presented
type RequireOtp struct {
	// PasswordVerified the password was accepted on this request
	PasswordVerified bool
	// CodeIssued a new code was sent on this request
	CodeIssued bool
}

func (Unlocked) isUnlockResult()     {}
func (Gone) isUnlockResult()         {}
func (NotFound) isUnlockResult()     {}
func (Unauthorized) isUnlockResult() {}
func (RequireOtp) isUnlockResult()   {}
