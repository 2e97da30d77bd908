package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType discriminates the two transaction kinds. The kind, not
// the null pattern of the account references, is authoritative: a TRANSFER
// always carries both accounts, a CARD_SPEND carries only the sender.
type TransactionType string

const (
	TransactionTypeTransfer  TransactionType = "TRANSFER"
	TransactionTypeCardSpend TransactionType = "CARD_SPEND"
)

// TransactionStatus of a recorded transaction. Validation happens before
// the row is written, so the code only ever records SUCCESS; FAILED exists
// for schema parity with offsetting/correction tooling.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Transaction is one immutable row of the append-only ledger log.
// Corrections are new offsetting rows, never edits.
type Transaction struct {
	ID             string            `json:"id"`
	SenderID       *string           `json:"sender_id,omitempty"`
	ReceiverID     *string           `json:"receiver_id,omitempty"`
	CardID         *string           `json:"card_id,omitempty"`
	Type           TransactionType   `json:"type"`
	Amount         decimal.Decimal   `json:"amount"`
	Status         TransactionStatus `json:"status"`
	Merchant       *string           `json:"merchant,omitempty"`
	Narrative      *string           `json:"narrative,omitempty"`
	IdempotencyKey *string           `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}

// TransferRequest is the input to the atomic transfer unit of work. Both
// accounts are re-validated under lock by the store.
type TransferRequest struct {
	SenderID       string
	ReceiverID     string
	Amount         decimal.Decimal
	Narrative      string
	IdempotencyKey *string
}

// MatchesTransfer reports whether t is the transfer req describes. A
// replayed idempotency key only returns the original row when the
// parties and amount agree; a reused key with different parameters is a
// conflict, not a replay.
func (t *Transaction) MatchesTransfer(req *TransferRequest) bool {
	return t.Type == TransactionTypeTransfer &&
		t.SenderID != nil && *t.SenderID == req.SenderID &&
		t.ReceiverID != nil && *t.ReceiverID == req.ReceiverID &&
		t.Amount.Equal(req.Amount)
}

// CardSpendRequest is the input to the atomic card-spend unit of work.
// MonthStart bounds the monthly-limit aggregate; the store computes the
// aggregate under the card lock so concurrent spends serialize.
type CardSpendRequest struct {
	CardID     string
	Amount     decimal.Decimal
	Merchant   string
	Narrative  string
	MonthStart time.Time
}

// MonthWindow returns [first of month, first of next month) for the instant
// t, evaluated in UTC. All monthly-limit and statement arithmetic goes
// through here so store and service never disagree on the window.
func MonthWindow(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
