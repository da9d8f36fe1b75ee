// internal/model/user.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a raw row from the aggregation query: one user plus their
// onramp/offramp totals, referral counts and earnings. Immutable once
// fetched for a run.
type User struct {
	ID                  string          `db:"id" json:"id"`
	DisplayName         string          `db:"display_name" json:"display_name"`
	PhoneNumber         string          `db:"phone_number" json:"phone_number"`
	Email               string          `db:"email" json:"email"`
	KYCVerified         bool            `db:"kyc_verified" json:"kyc_verified"`
	KYCVerifiedAt       *time.Time      `db:"kyc_verified_at" json:"kyc_verified_at,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	OnrampCount         int             `db:"onramp_count" json:"onramp_count"`
	OnrampVolume        decimal.Decimal `db:"onramp_volume" json:"onramp_volume"`
	LastOnramp          *time.Time      `db:"last_onramp" json:"last_onramp,omitempty"`
	OfframpCount        int             `db:"offramp_count" json:"offramp_count"`
	OfframpVolume       decimal.Decimal `db:"offramp_volume" json:"offramp_volume"`
	LastOfframp         *time.Time      `db:"last_offramp" json:"last_offramp,omitempty"`
	ReferralCount       int             `db:"referral_count" json:"referral_count"`
	ReferralEarningsKES decimal.Decimal `db:"referral_earnings_kes" json:"referral_earnings_kes"`
}

// TotalTransactions is the sum of both transaction kinds.
func (u User) TotalTransactions() int {
	return u.OnrampCount + u.OfframpCount
}

// LastTransaction returns the later of the two last-transaction timestamps,
// or nil when the user has never transacted.
func (u User) LastTransaction() *time.Time {
	switch {
	case u.LastOnramp != nil && u.LastOfframp != nil:
		if u.LastOfframp.After(*u.LastOnramp) {
			return u.LastOfframp
		}
		return u.LastOnramp
	case u.LastOnramp != nil:
		return u.LastOnramp
	default:
		return u.LastOfframp
	}
}

// CategorizedUser is the read-only per-run view of a user: the raw record
// plus derived fields and the assigned category. Never persisted.
type CategorizedUser struct {
	User
	FirstName string     `json:"first_name"`
	TotalTxns int        `json:"total_txns"`
	LastTxn   *time.Time `json:"last_txn,omitempty"`
	Category  Category   `json:"category"`
}

// TotalVolume is the combined onramp and offramp volume in KES.
func (u CategorizedUser) TotalVolume() decimal.Decimal {
	return u.OnrampVolume.Add(u.OfframpVolume)
}
