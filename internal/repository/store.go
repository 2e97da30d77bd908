package repository

import (
	"context"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/pkg/utils"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the Postgres ledger store: a thin facade over the account, card
// and transaction repositories, exposed under the method names the
// usecases program against (the in-memory adapter implements the same
// surface).
type Store struct {
	accounts      AccountRepository
	cards         CardRepository
	transactions  TransactionRepository
	beneficiaries BeneficiaryRepository
}

func NewStore(db *pgxpool.Pool, ids *utils.IDGenerator) *Store {
	accounts := NewAccountRepo(db)
	cards := NewCardRepo(db)
	return &Store{
		accounts:      accounts,
		cards:         cards,
		transactions:  NewTransactionRepo(db, accounts, cards, ids),
		beneficiaries: NewBeneficiaryRepo(db),
	}
}

func (s *Store) CreateAccount(ctx context.Context, id string, create *domain.AccountCreate) (*domain.Account, error) {
	return s.accounts.Create(ctx, id, create)
}

func (s *Store) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

func (s *Store) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.accounts.GetByAccountNumber(ctx, accountNumber)
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	return s.accounts.ListByUser(ctx, userID)
}

func (s *Store) CreateCard(ctx context.Context, id string, create *domain.CardCreate) (*domain.Card, error) {
	return s.cards.Create(ctx, id, create)
}

func (s *Store) GetCardByID(ctx context.Context, cardID string) (*domain.Card, error) {
	return s.cards.GetByID(ctx, cardID)
}

func (s *Store) ListCardsByAccount(ctx context.Context, accountID string) ([]*domain.Card, error) {
	return s.cards.ListByAccount(ctx, accountID)
}

func (s *Store) SetCardLimit(ctx context.Context, cardID string, limit *decimal.Decimal) error {
	return s.cards.SetMonthlyLimit(ctx, cardID, limit)
}

func (s *Store) SetCardFrozen(ctx context.Context, cardID string, frozen bool) error {
	return s.cards.SetFrozen(ctx, cardID, frozen)
}

func (s *Store) DeleteCard(ctx context.Context, cardID string) error {
	return s.cards.Delete(ctx, cardID)
}

func (s *Store) ExecuteTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error) {
	return s.transactions.ExecuteTransfer(ctx, req)
}

func (s *Store) ExecuteCardSpend(ctx context.Context, req *domain.CardSpendRequest) (*domain.Transaction, error) {
	return s.transactions.ExecuteCardSpend(ctx, req)
}

func (s *Store) ListCardSpends(ctx context.Context, cardID string, from, to time.Time) ([]*domain.Transaction, error) {
	return s.transactions.ListCardSpends(ctx, cardID, from, to)
}

func (s *Store) ListAccountTransactions(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	return s.transactions.ListByAccount(ctx, accountID, limit)
}

func (s *Store) MonthCardSpend(ctx context.Context, cardID string, monthStart time.Time) (decimal.Decimal, error) {
	return s.transactions.MonthCardSpend(ctx, cardID, monthStart)
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return s.transactions.GetByIdempotencyKey(ctx, key)
}

func (s *Store) CreateBeneficiary(ctx context.Context, id string, create *domain.BeneficiaryCreate) (*domain.Beneficiary, error) {
	return s.beneficiaries.Create(ctx, id, create)
}

func (s *Store) GetBeneficiaryByID(ctx context.Context, beneficiaryID string) (*domain.Beneficiary, error) {
	return s.beneficiaries.GetByID(ctx, beneficiaryID)
}

func (s *Store) ListBeneficiariesByUser(ctx context.Context, userID string) ([]*domain.Beneficiary, error) {
	return s.beneficiaries.ListByUser(ctx, userID)
}

func (s *Store) DeleteBeneficiary(ctx context.Context, beneficiaryID string) error {
	return s.beneficiaries.Delete(ctx, beneficiaryID)
}
