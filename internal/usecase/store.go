package usecase

import (
	"context"
	"time"

	"ledger-service/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerStore is the persistence port the usecases program against.
// repository.Store (Postgres) is the production implementation,
// memory.Store backs tests and the dev profile.
//
// The two Execute methods are atomic units of work: every precondition is
// re-checked under the store's own locks and either all writes commit or
// none do, so a returned error always means zero ledger mutation.
type LedgerStore interface {
	// Accounts
	CreateAccount(ctx context.Context, id string, create *domain.AccountCreate) (*domain.Account, error)
	GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListAccountsByUser(ctx context.Context, userID string) ([]*domain.Account, error)

	// Cards
	CreateCard(ctx context.Context, id string, create *domain.CardCreate) (*domain.Card, error)
	GetCardByID(ctx context.Context, cardID string) (*domain.Card, error)
	ListCardsByAccount(ctx context.Context, accountID string) ([]*domain.Card, error)
	SetCardLimit(ctx context.Context, cardID string, limit *decimal.Decimal) error
	SetCardFrozen(ctx context.Context, cardID string, frozen bool) error
	DeleteCard(ctx context.Context, cardID string) error

	// Atomic units of work
	ExecuteTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error)
	ExecuteCardSpend(ctx context.Context, req *domain.CardSpendRequest) (*domain.Transaction, error)

	// Reads over the append-only log
	ListCardSpends(ctx context.Context, cardID string, from, to time.Time) ([]*domain.Transaction, error)
	ListAccountTransactions(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error)
	MonthCardSpend(ctx context.Context, cardID string, monthStart time.Time) (decimal.Decimal, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)

	// Beneficiaries (saved payees)
	CreateBeneficiary(ctx context.Context, id string, create *domain.BeneficiaryCreate) (*domain.Beneficiary, error)
	GetBeneficiaryByID(ctx context.Context, beneficiaryID string) (*domain.Beneficiary, error)
	ListBeneficiariesByUser(ctx context.Context, userID string) ([]*domain.Beneficiary, error)
	DeleteBeneficiary(ctx context.Context, beneficiaryID string) error
}
