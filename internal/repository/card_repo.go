package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type CardRepository interface {
	Create(ctx context.Context, id string, create *domain.CardCreate) (*domain.Card, error)
	GetByID(ctx context.Context, cardID string) (*domain.Card, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Card, error)
	SetMonthlyLimit(ctx context.Context, cardID string, limit *decimal.Decimal) error
	SetFrozen(ctx context.Context, cardID string, frozen bool) error
	Delete(ctx context.Context, cardID string) error

	// Tx-scoped variants used inside the card-spend unit of work.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, cardID string) (*domain.Card, error)
	TouchLastUsed(ctx context.Context, tx pgx.Tx, cardID string, at time.Time) error
}

type cardRepo struct {
	db *pgxpool.Pool
}

func NewCardRepo(db *pgxpool.Pool) CardRepository {
	return &cardRepo{db: db}
}

// Card reads join the owning account so ownership checks never need a
// second query.
const cardSelect = `
	SELECT
		c.id, c.account_id, c.card_number, c.expiry, c.nickname,
		c.monthly_limit, c.is_frozen, c.last_used_at, c.created_at,
		a.user_id
	FROM cards c
	INNER JOIN accounts a ON a.id = c.account_id
`

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	err := row.Scan(
		&c.ID, &c.AccountID, &c.CardNumber, &c.Expiry, &c.Nickname,
		&c.MonthlyLimit, &c.IsFrozen, &c.LastUsedAt, &c.CreatedAt,
		&c.OwnerUserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan card: %w", domain.ErrStoreUnavailable, err)
	}
	return &c, nil
}

func (r *cardRepo) Create(ctx context.Context, id string, create *domain.CardCreate) (*domain.Card, error) {
	query := `
		INSERT INTO cards (id, account_id, card_number, expiry, nickname, monthly_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.Exec(ctx, query,
		id, create.AccountID, create.CardNumber, create.Expiry, create.Nickname, create.MonthlyLimit,
	); err != nil {
		return nil, fmt.Errorf("%w: create card: %w", domain.ErrStoreUnavailable, err)
	}
	return r.GetByID(ctx, id)
}

func (r *cardRepo) GetByID(ctx context.Context, cardID string) (*domain.Card, error) {
	return scanCard(r.db.QueryRow(ctx, cardSelect+` WHERE c.id = $1`, cardID))
}

func (r *cardRepo) ListByAccount(ctx context.Context, accountID string) ([]*domain.Card, error) {
	rows, err := r.db.Query(ctx, cardSelect+` WHERE c.account_id = $1 ORDER BY c.created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: list cards: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// SetMonthlyLimit sets or clears (nil = unlimited) the monthly spend
// ceiling. Takes effect on the next authorization.
func (r *cardRepo) SetMonthlyLimit(ctx context.Context, cardID string, limit *decimal.Decimal) error {
	return r.exec(ctx, `UPDATE cards SET monthly_limit = $2 WHERE id = $1`, cardID, limit)
}

func (r *cardRepo) SetFrozen(ctx context.Context, cardID string, frozen bool) error {
	return r.exec(ctx, `UPDATE cards SET is_frozen = $2 WHERE id = $1`, cardID, frozen)
}

// Delete removes the card row. Transaction rows keep their history; the
// card_id FK is ON DELETE SET NULL so the append-only log is untouched.
func (r *cardRepo) Delete(ctx context.Context, cardID string) error {
	return r.exec(ctx, `DELETE FROM cards WHERE id = $1`, cardID)
}

// GetByIDForUpdate locks the card row for the rest of the transaction,
// serializing concurrent spends on the same card.
func (r *cardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, cardID string) (*domain.Card, error) {
	return scanCard(tx.QueryRow(ctx, cardSelect+` WHERE c.id = $1 FOR UPDATE OF c`, cardID))
}

func (r *cardRepo) TouchLastUsed(ctx context.Context, tx pgx.Tx, cardID string, at time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE cards SET last_used_at = $2 WHERE id = $1`, cardID, at)
	if err != nil {
		return fmt.Errorf("%w: touch card: %w", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *cardRepo) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
