package repository

import (
	"context"
	"errors"
	"fmt"

	"ledger-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BeneficiaryRepository interface {
	Create(ctx context.Context, id string, create *domain.BeneficiaryCreate) (*domain.Beneficiary, error)
	GetByID(ctx context.Context, beneficiaryID string) (*domain.Beneficiary, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Beneficiary, error)
	Delete(ctx context.Context, beneficiaryID string) error
}

type beneficiaryRepo struct {
	db *pgxpool.Pool
}

func NewBeneficiaryRepo(db *pgxpool.Pool) BeneficiaryRepository {
	return &beneficiaryRepo{db: db}
}

const beneficiaryColumns = `id, user_id, nickname, account_number, created_at`

func scanBeneficiary(row pgx.Row) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	err := row.Scan(&b.ID, &b.UserID, &b.Nickname, &b.AccountNumber, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan beneficiary: %w", domain.ErrStoreUnavailable, err)
	}
	return &b, nil
}

// Create saves the payee. The (user_id, account_number) unique index makes
// saving the same account twice a conflict, not a second row.
func (r *beneficiaryRepo) Create(ctx context.Context, id string, create *domain.BeneficiaryCreate) (*domain.Beneficiary, error) {
	query := `
		INSERT INTO beneficiaries (id, user_id, nickname, account_number)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + beneficiaryColumns

	b, err := scanBeneficiary(r.db.QueryRow(ctx, query, id, create.UserID, create.Nickname, create.AccountNumber))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: beneficiary already saved", domain.ErrConflict)
		}
		return nil, err
	}
	return b, nil
}

func (r *beneficiaryRepo) GetByID(ctx context.Context, beneficiaryID string) (*domain.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE id = $1`
	return scanBeneficiary(r.db.QueryRow(ctx, query, beneficiaryID))
}

func (r *beneficiaryRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list beneficiaries: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []*domain.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *beneficiaryRepo) Delete(ctx context.Context, beneficiaryID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM beneficiaries WHERE id = $1`, beneficiaryID)
	if err != nil {
		return fmt.Errorf("%w: delete beneficiary: %w", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
