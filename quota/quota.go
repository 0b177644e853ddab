// Package quota - expiry and view quota rules of a shared secret
package quota

import (
	"time"

	"github.com/alwitt/secretshare/models"
)

// Redeemability whether a secret may still be redeemed
type Redeemability int

const (
	// Redeemable the secret can be redeemed
	Redeemable Redeemability = iota
	// Expired the secret is past its expiry time
	Expired
	// QuotaExhausted the secret has no views remaining
	QuotaExhausted
)

// String implements fmt.Stringer
func (r Redeemability) String() string {
	switch r {
	case Redeemable:
		return "redeemable"
	case Expired:
		return "expired"
	case QuotaExhausted:
		return "quota-exhausted"
	default:
		return "unknown"
	}
}

/*
CheckRedeemable check whether a secret may be redeemed at this time

A secret expires at the exact instant of its expiry time.

	@param record models.SecretRecord - the secret
	@param now time.Time - current time
	@return redeemability
*/
func CheckRedeemable(record models.SecretRecord, now time.Time) Redeemability {
	if !now.Before(record.ExpiresAt) {
		return Expired
	}
	if record.HasViewQuota() && (record.ViewsRemaining == nil || *record.ViewsRemaining <= 0) {
		return QuotaExhausted
	}
	return Redeemable
}

// ConsumeAction what to do with a secret after a view is consumed
type ConsumeAction int

const (
	// Unlimited the secret has no view quota
	Unlimited ConsumeAction = iota
	// Decremented store the decremented view count
	Decremented
	// Deleted the last view was consumed, delete the secret
	Deleted
)

// String implements fmt.Stringer
func (a ConsumeAction) String() string {
	switch a {
	case Unlimited:
		return "unlimited"
	case Decremented:
		return "decremented"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ConsumeResult outcome of consuming one view
type ConsumeResult struct {
	// Action what to do with the stored secret
	Action ConsumeAction
	// Update the changes to store when Action is Decremented
	Update models.SecretRecordUpdate
}

/*
ConsumeView consume one view of a redeemable secret

	@param record models.SecretRecord - the secret
	@param now time.Time - current time
	@return what to do with the stored secret
*/
func ConsumeView(record models.SecretRecord, now time.Time) ConsumeResult {
	if !record.HasViewQuota() {
		return ConsumeResult{Action: Unlimited}
	}
	remaining := 0
	if record.ViewsRemaining != nil {
		remaining = *record.ViewsRemaining - 1
	}
	if remaining <= 0 {
		return ConsumeResult{Action: Deleted}
	}
	return ConsumeResult{
		Action: Decremented,
		Update: models.SecretRecordUpdate{ViewsRemaining: &remaining, UpdatedAt: now},
	}
}
