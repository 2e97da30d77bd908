package domain

import "time"

// Beneficiary is a user-level saved payee: a nickname for an account
// number the user transfers to often. Purely an address-book entry, it
// carries no balance and references no ledger row.
type Beneficiary struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Nickname      string    `json:"nickname"`
	AccountNumber string    `json:"account_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// BeneficiaryCreate carries the fields needed to save a payee.
type BeneficiaryCreate struct {
	UserID        string
	Nickname      string
	AccountNumber string
}
