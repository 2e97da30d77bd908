package repository

import (
	"context"
	"errors"
	"fmt"

	"ledger-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository interface {
	Create(ctx context.Context, id string, create *domain.AccountCreate) (*domain.Account, error)
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Account, error)

	// Tx-scoped variants used inside atomic units of work.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*domain.Account, error)
	AddToBalance(ctx context.Context, tx pgx.Tx, accountID string, delta string) error
}

type accountRepo struct {
	db *pgxpool.Pool
}

func NewAccountRepo(db *pgxpool.Pool) AccountRepository {
	return &accountRepo{db: db}
}

const accountColumns = `id, user_id, account_number, balance, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.Balance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan account: %w", domain.ErrStoreUnavailable, err)
	}
	return &a, nil
}

func (r *accountRepo) Create(ctx context.Context, id string, create *domain.AccountCreate) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (id, user_id, account_number, balance)
		VALUES ($1, $2, $3, 0)
		RETURNING ` + accountColumns

	return scanAccount(r.db.QueryRow(ctx, query, id, create.UserID, create.AccountNumber))
}

func (r *accountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// GetByAccountNumber resolves a transfer receiver. Exact match only, the
// number is stored and compared case-sensitively.
func (r *accountRepo) GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountNumber))
}

func (r *accountRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetByIDForUpdate locks the account row for the rest of the transaction.
// Callers lock multiple accounts in sorted id order to avoid deadlocks.
func (r *accountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, accountID))
}

// AddToBalance applies a signed delta to an already-locked account row.
// The non-negative balance CHECK is the last line of defense; the caller
// has validated funds under the same lock.
func (r *accountRepo) AddToBalance(ctx context.Context, tx pgx.Tx, accountID string, delta string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2 WHERE id = $1`,
		accountID, delta,
	)
	if err != nil {
		return fmt.Errorf("%w: update balance: %w", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
