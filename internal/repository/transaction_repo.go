package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// maxConflictRetries bounds retries of a unit of work that lost a lock
// race (deadlock or serialization failure) before ErrConflict surfaces.
const maxConflictRetries = 3

type TransactionRepository interface {
	// Atomic units of work. Each runs as one database transaction:
	// every precondition is re-checked under row locks and either all
	// writes commit or none do.
	ExecuteTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error)
	ExecuteCardSpend(ctx context.Context, req *domain.CardSpendRequest) (*domain.Transaction, error)

	// Read-only queries over the append-only log.
	ListCardSpends(ctx context.Context, cardID string, from, to time.Time) ([]*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error)
	MonthCardSpend(ctx context.Context, cardID string, monthStart time.Time) (decimal.Decimal, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
}

type transactionRepo struct {
	db          *pgxpool.Pool
	accountRepo AccountRepository
	cardRepo    CardRepository
	ids         *utils.IDGenerator
}

func NewTransactionRepo(db *pgxpool.Pool, accountRepo AccountRepository, cardRepo CardRepository, ids *utils.IDGenerator) TransactionRepository {
	return &transactionRepo{
		db:          db,
		accountRepo: accountRepo,
		cardRepo:    cardRepo,
		ids:         ids,
	}
}

func (r *transactionRepo) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %w", domain.ErrStoreUnavailable, err)
	}
	return tx, nil
}

// isRetryable reports whether err is a lock-contention failure worth
// retrying (serialization failure 40001, deadlock detected 40P01).
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// withConflictRetry runs fn up to maxConflictRetries times, backing off
// briefly between attempts, then surfaces ErrConflict.
func withConflictRetry(ctx context.Context, fn func() (*domain.Transaction, error)) (*domain.Transaction, error) {
	var lastErr error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		txn, err := fn()
		if err == nil || !isRetryable(err) {
			return txn, err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, ctx.Err())
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrConflict, lastErr)
}

// ExecuteTransfer moves funds between two accounts as one database
// transaction: lock both rows in sorted id order, re-check funds under
// lock, debit, credit, insert the TRANSFER row.
func (r *transactionRepo) ExecuteTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error) {
	return withConflictRetry(ctx, func() (*domain.Transaction, error) {
		return r.executeTransferOnce(ctx, req)
	})
}

func (r *transactionRepo) executeTransferOnce(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock in sorted id order to prevent deadlocks between opposed
	// concurrent transfers.
	first, second := req.SenderID, req.ReceiverID
	if first > second {
		first, second = second, first
	}

	locked := make(map[string]*domain.Account, 2)
	for _, id := range []string{first, second} {
		account, err := r.accountRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}

	sender := locked[req.SenderID]
	if sender.Balance.LessThan(req.Amount) {
		return nil, domain.ErrInsufficientFunds
	}

	if err := r.accountRepo.AddToBalance(ctx, tx, req.SenderID, req.Amount.Neg().String()); err != nil {
		return nil, err
	}
	if err := r.accountRepo.AddToBalance(ctx, tx, req.ReceiverID, req.Amount.String()); err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:             r.ids.TransactionID(),
		SenderID:       &req.SenderID,
		ReceiverID:     &req.ReceiverID,
		Type:           domain.TransactionTypeTransfer,
		Amount:         req.Amount,
		Status:         domain.TransactionStatusSuccess,
		Narrative:      &req.Narrative,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := r.insert(ctx, tx, txn); err != nil {
		// A concurrent request with the same idempotency key won the
		// insert race; hand back the row it created, but only if it is
		// the same transfer.
		if req.IdempotencyKey != nil && isUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			existing, lookupErr := r.GetByIdempotencyKey(ctx, *req.IdempotencyKey)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if !existing.MatchesTransfer(req) {
				return nil, fmt.Errorf("%w: idempotency key reused with different parameters", domain.ErrConflict)
			}
			return existing, nil
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit transfer: %w", domain.ErrStoreUnavailable, err)
	}
	return txn, nil
}

// ExecuteCardSpend authorizes and records a card purchase as one database
// transaction. The monthly aggregate is computed after the card row is
// locked, so two concurrent spends on the same card cannot both pass the
// limit check against a stale total.
func (r *transactionRepo) ExecuteCardSpend(ctx context.Context, req *domain.CardSpendRequest) (*domain.Transaction, error) {
	return withConflictRetry(ctx, func() (*domain.Transaction, error) {
		return r.executeCardSpendOnce(ctx, req)
	})
}

func (r *transactionRepo) executeCardSpendOnce(ctx context.Context, req *domain.CardSpendRequest) (*domain.Transaction, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	card, err := r.cardRepo.GetByIDForUpdate(ctx, tx, req.CardID)
	if err != nil {
		return nil, err
	}

	account, err := r.accountRepo.GetByIDForUpdate(ctx, tx, card.AccountID)
	if err != nil {
		return nil, err
	}

	// Re-check order matches the authorization contract: frozen, funds,
	// then the monthly limit (the only check that costs a query).
	if card.IsFrozen {
		return nil, domain.ErrCardFrozen
	}
	if account.Balance.LessThan(req.Amount) {
		return nil, domain.ErrInsufficientFunds
	}
	if card.MonthlyLimit != nil {
		spent, err := r.monthCardSpendTx(ctx, tx, req.CardID, req.MonthStart)
		if err != nil {
			return nil, err
		}
		if spent.Add(req.Amount).GreaterThan(*card.MonthlyLimit) {
			return nil, domain.ErrLimitExceeded
		}
	}

	if err := r.accountRepo.AddToBalance(ctx, tx, card.AccountID, req.Amount.Neg().String()); err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:        r.ids.TransactionID(),
		SenderID:  &card.AccountID,
		CardID:    &req.CardID,
		Type:      domain.TransactionTypeCardSpend,
		Amount:    req.Amount,
		Status:    domain.TransactionStatusSuccess,
		Merchant:  &req.Merchant,
		Narrative: &req.Narrative,
	}
	if err := r.insert(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := r.cardRepo.TouchLastUsed(ctx, tx, req.CardID, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit card spend: %w", domain.ErrStoreUnavailable, err)
	}
	return txn, nil
}

const transactionColumns = `id, sender_id, receiver_id, card_id, type, amount, status, merchant, narrative, idempotency_key, created_at`

func (r *transactionRepo) insert(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, sender_id, receiver_id, card_id, type, amount, status, merchant, narrative, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		txn.ID, txn.SenderID, txn.ReceiverID, txn.CardID, txn.Type,
		txn.Amount, txn.Status, txn.Merchant, txn.Narrative, txn.IdempotencyKey,
	).Scan(&txn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("%w: insert transaction: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.SenderID, &t.ReceiverID, &t.CardID, &t.Type,
		&t.Amount, &t.Status, &t.Merchant, &t.Narrative, &t.IdempotencyKey, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan transaction: %w", domain.ErrStoreUnavailable, err)
	}
	return &t, nil
}

// ListCardSpends returns a card's CARD_SPEND rows within [from, to),
// oldest first. Statement reads come through here.
func (r *transactionRepo) ListCardSpends(ctx context.Context, cardID string, from, to time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE card_id = $1
		AND type = $2
		AND created_at >= $3 AND created_at < $4
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, cardID, domain.TransactionTypeCardSpend, from, to)
}

// ListByAccount returns the account's activity feed, newest first.
func (r *transactionRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, accountID, limit)
}

func (r *transactionRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// MonthCardSpend sums a card's CARD_SPEND amounts from monthStart onward,
// outside any lock. The authorizer recomputes inside its own transaction.
func (r *transactionRepo) MonthCardSpend(ctx context.Context, cardID string, monthStart time.Time) (decimal.Decimal, error) {
	return r.monthCardSpend(ctx, r.db, cardID, monthStart)
}

func (r *transactionRepo) monthCardSpendTx(ctx context.Context, tx pgx.Tx, cardID string, monthStart time.Time) (decimal.Decimal, error) {
	return r.monthCardSpend(ctx, tx, cardID, monthStart)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *transactionRepo) monthCardSpend(ctx context.Context, q queryRower, cardID string, monthStart time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE card_id = $1
		AND type = $2
		AND created_at >= $3
	`
	var total decimal.Decimal
	err := q.QueryRow(ctx, query, cardID, domain.TransactionTypeCardSpend, monthStart).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: month spend aggregate: %w", domain.ErrStoreUnavailable, err)
	}
	return total, nil
}

func (r *transactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, key))
}
