package usecase

import (
	"context"

	"ledger-service/internal/domain"
	"ledger-service/pkg/utils"

	"go.uber.org/zap"
)

// BeneficiaryUsecase manages a user's saved payees. Beneficiaries are an
// address book over account numbers; saving one does not verify the
// account exists, the transfer itself resolves the number.
type BeneficiaryUsecase struct {
	store  LedgerStore
	ids    *utils.IDGenerator
	logger *zap.Logger
}

func NewBeneficiaryUsecase(store LedgerStore, ids *utils.IDGenerator, logger *zap.Logger) *BeneficiaryUsecase {
	return &BeneficiaryUsecase{
		store:  store,
		ids:    ids,
		logger: logger,
	}
}

// AddBeneficiary saves a payee under a nickname. Saving the same account
// number twice for one user is a conflict.
func (uc *BeneficiaryUsecase) AddBeneficiary(ctx context.Context, userID, nickname, accountNumber string) (*domain.Beneficiary, error) {
	b, err := uc.store.CreateBeneficiary(ctx, uc.ids.BeneficiaryID(), &domain.BeneficiaryCreate{
		UserID:        userID,
		Nickname:      nickname,
		AccountNumber: accountNumber,
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("beneficiary added",
		zap.String("beneficiary_id", b.ID),
		zap.String("user_id", userID),
	)
	return b, nil
}

// ListBeneficiaries returns the user's saved payees.
func (uc *BeneficiaryUsecase) ListBeneficiaries(ctx context.Context, userID string) ([]*domain.Beneficiary, error) {
	return uc.store.ListBeneficiariesByUser(ctx, userID)
}

// RemoveBeneficiary deletes one of the user's saved payees. A foreign
// beneficiary is indistinguishable from a missing one.
func (uc *BeneficiaryUsecase) RemoveBeneficiary(ctx context.Context, userID, beneficiaryID string) error {
	b, err := uc.store.GetBeneficiaryByID(ctx, beneficiaryID)
	if err != nil {
		return err
	}
	if b.UserID != userID {
		return domain.ErrNotFound
	}
	return uc.store.DeleteBeneficiary(ctx, b.ID)
}
