package usecase

import (
	"context"
	"errors"
	"fmt"

	"ledger-service/internal/domain"
	"ledger-service/internal/pub"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferUsecase moves funds between two accounts as one atomic unit.
type TransferUsecase struct {
	store       LedgerStore
	redisClient *redis.Client
	publisher   *pub.TransactionEventPublisher
	logger      *zap.Logger
}

func NewTransferUsecase(store LedgerStore, redisClient *redis.Client, publisher *pub.TransactionEventPublisher, logger *zap.Logger) *TransferUsecase {
	return &TransferUsecase{
		store:       store,
		redisClient: redisClient,
		publisher:   publisher,
		logger:      logger,
	}
}

// Transfer debits senderAccountID and credits the account holding
// receiverAccountNumber (exact match). The caller identity must own the
// sender account. An optional idempotency key makes retries safe: a
// repeated key returns the transaction the first request created.
func (uc *TransferUsecase) Transfer(
	ctx context.Context,
	userID string,
	senderAccountID string,
	receiverAccountNumber string,
	amount decimal.Decimal,
	idempotencyKey *uuid.UUID,
) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	sender, err := uc.store.GetAccountByID(ctx, senderAccountID)
	if err != nil {
		return nil, err
	}
	if sender.UserID != userID {
		return nil, domain.ErrNotFound
	}

	receiver, err := uc.store.GetAccountByNumber(ctx, receiverAccountNumber)
	if err != nil {
		return nil, err
	}

	// A self-transfer would trivially pass every balance check and record
	// a meaningless row.
	if receiver.ID == sender.ID {
		return nil, domain.ErrInvalidAmount
	}

	req := &domain.TransferRequest{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     amount,
		Narrative:  fmt.Sprintf("Transfer to %s", receiver.AccountNumber),
	}

	if idempotencyKey != nil {
		key := idempotencyKey.String()
		req.IdempotencyKey = &key

		existing, err := uc.store.GetTransactionByIdempotencyKey(ctx, key)
		if err == nil {
			if !existing.MatchesTransfer(req) {
				return nil, fmt.Errorf("%w: idempotency key reused with different parameters", domain.ErrConflict)
			}
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	txn, err := uc.store.ExecuteTransfer(ctx, req)
	if err != nil {
		return nil, err
	}

	uc.invalidateBalances(ctx, sender.AccountNumber, receiver.AccountNumber)

	if uc.publisher != nil {
		if err := uc.publisher.PublishTransferCompleted(ctx, txn, sender.AccountNumber, receiver.AccountNumber); err != nil {
			uc.logger.Warn("failed to publish transfer event",
				zap.String("transaction_id", txn.ID),
				zap.Error(err),
			)
		}
	}

	uc.logger.Info("transfer completed",
		zap.String("transaction_id", txn.ID),
		zap.String("sender_account", sender.ID),
		zap.String("receiver_account", receiver.ID),
		zap.String("amount", amount.String()),
	)
	return txn, nil
}

// invalidateBalances drops the cached balances touched by a mutation.
// Cache loss is harmless, reads fall through to the store.
func (uc *TransferUsecase) invalidateBalances(ctx context.Context, accountNumbers ...string) {
	if uc.redisClient == nil {
		return
	}
	for _, number := range accountNumbers {
		if err := uc.redisClient.Del(ctx, balanceCacheKey(number)).Err(); err != nil {
			uc.logger.Warn("failed to invalidate balance cache",
				zap.String("account_number", number),
				zap.Error(err),
			)
		}
	}
}
