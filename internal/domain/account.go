package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user-owned ledger account. Balance is only ever mutated
// through the transfer and card-spend units of work, never written directly.
type Account struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	AccountNumber string          `json:"account_number"` // globally unique, exact-match lookup
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AccountCreate carries the fields needed to open an account.
type AccountCreate struct {
	UserID        string
	AccountNumber string
}
