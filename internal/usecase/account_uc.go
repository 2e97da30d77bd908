package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// Balances change often; cache just long enough to absorb dashboard
	// refresh bursts. Mutations delete the key outright.
	balanceCacheTTL = 30 * time.Second

	// Activity feed page size.
	defaultTransactionLimit = 50
)

// AccountUsecase opens accounts and serves account-scoped reads.
type AccountUsecase struct {
	store       LedgerStore
	ids         *utils.IDGenerator
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewAccountUsecase(store LedgerStore, ids *utils.IDGenerator, redisClient *redis.Client, logger *zap.Logger) *AccountUsecase {
	return &AccountUsecase{
		store:       store,
		ids:         ids,
		redisClient: redisClient,
		logger:      logger,
	}
}

// OpenAccount creates an account for the user with a generated account
// number and zero balance.
func (uc *AccountUsecase) OpenAccount(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := uc.store.CreateAccount(ctx, uc.ids.AccountID(), &domain.AccountCreate{
		UserID:        userID,
		AccountNumber: uc.ids.AccountNumber(),
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("account opened",
		zap.String("account_id", account.ID),
		zap.String("user_id", userID),
	)
	return account, nil
}

// ListAccounts returns all of the user's accounts.
func (uc *AccountUsecase) ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error) {
	return uc.store.ListAccountsByUser(ctx, userID)
}

// GetAccount returns one of the user's accounts.
func (uc *AccountUsecase) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	account, err := uc.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

// GetBalance returns the account's balance, cache first.
func (uc *AccountUsecase) GetBalance(ctx context.Context, userID, accountID string) (decimal.Decimal, error) {
	account, err := uc.GetAccount(ctx, userID, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	cacheKey := balanceCacheKey(account.AccountNumber)
	if uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var balance decimal.Decimal
			if jsonErr := json.Unmarshal([]byte(val), &balance); jsonErr == nil {
				return balance, nil
			}
		}
	}

	if uc.redisClient != nil {
		if data, err := json.Marshal(account.Balance); err == nil {
			_ = uc.redisClient.Set(ctx, cacheKey, data, balanceCacheTTL).Err()
		}
	}
	return account.Balance, nil
}

// ListTransactions returns the account's activity feed, newest first.
func (uc *AccountUsecase) ListTransactions(ctx context.Context, userID, accountID string, limit int) ([]*domain.Transaction, error) {
	if _, err := uc.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = defaultTransactionLimit
	}
	return uc.store.ListAccountTransactions(ctx, accountID, limit)
}

func balanceCacheKey(accountNumber string) string {
	return fmt.Sprintf("balance:account:%s", accountNumber)
}
