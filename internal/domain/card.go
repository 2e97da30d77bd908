package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Card is a virtual card linked to exactly one account. MonthlyLimit nil
// means unlimited. A frozen card rejects every spend until unfrozen.
type Card struct {
	ID           string           `json:"id"`
	AccountID    string           `json:"account_id"`
	CardNumber   string           `json:"card_number"`
	Expiry       string           `json:"expiry"` // MM/YY
	Nickname     *string          `json:"nickname,omitempty"`
	MonthlyLimit *decimal.Decimal `json:"monthly_limit,omitempty"`
	IsFrozen     bool             `json:"is_frozen"`
	LastUsedAt   *time.Time       `json:"last_used_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`

	// OwnerUserID is denormalized from the linked account for ownership
	// checks; repositories populate it on every card read.
	OwnerUserID string `json:"-"`
}

// CardCreate carries the fields needed to issue a card.
type CardCreate struct {
	AccountID    string
	CardNumber   string
	Expiry       string
	Nickname     *string
	MonthlyLimit *decimal.Decimal
}
