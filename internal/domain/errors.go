package domain

import "errors"

// Every error here is an expected, caller-recoverable condition. The store
// guarantees that any returned error correlates with zero ledger mutation.
var (
	// ErrNotFound covers missing entities and ownership failures alike, so
	// callers cannot enumerate other users' accounts or cards.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount rejects non-positive or malformed amounts, and
	// self-transfers.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds rejects a debit larger than the account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCardFrozen rejects spends on a frozen card.
	ErrCardFrozen = errors.New("card is frozen")

	// ErrLimitExceeded rejects a spend that would push the card's
	// current-month total over its monthly limit.
	ErrLimitExceeded = errors.New("monthly limit exceeded")

	// ErrInvalidPeriod rejects a statement period that is not YYYY-MM.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrConflict covers write collisions: concurrent-update contention
	// that exhausted the bounded retries, an idempotency key reused with
	// different parameters, and duplicate unique rows.
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable wraps unexpected storage failures.
	ErrStoreUnavailable = errors.New("ledger store unavailable")
)
