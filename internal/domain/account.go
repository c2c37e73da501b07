package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a user's single authoritative balance record. Available funds sit
// in Balance; funds reserved against a pending withdrawal sit in LockedBalance.
// Both buckets are non-negative at all times; the store rejects any write that
// would violate that.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	LockedBalance decimal.Decimal `json:"locked_balance"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Total returns the sum of the available and locked buckets.
func (a *Account) Total() decimal.Decimal {
	return a.Balance.Add(a.LockedBalance)
}
