package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// Closed months never change (the log is append-only), so their
	// statements cache for a long time. The current month is never cached.
	closedStatementTTL = 24 * time.Hour
)

// StatementUsecase derives per-month card statements from the transaction
// log. Pure read, never mutates the ledger.
type StatementUsecase struct {
	store       LedgerStore
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewStatementUsecase(store LedgerStore, redisClient *redis.Client, logger *zap.Logger) *StatementUsecase {
	return &StatementUsecase{
		store:       store,
		redisClient: redisClient,
		logger:      logger,
	}
}

// BuildStatement aggregates the card's CARD_SPEND transactions within
// [first of period, first of next month). period is YYYY-MM, evaluated
// in UTC.
func (uc *StatementUsecase) BuildStatement(ctx context.Context, userID, cardID, period string) (*domain.CardStatement, error) {
	periodStart, err := time.ParseInLocation("2006-01", period, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: must be YYYY-MM", domain.ErrInvalidPeriod)
	}
	periodEnd := periodStart.AddDate(0, 1, 0)

	card, err := uc.store.GetCardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerUserID != userID {
		return nil, domain.ErrNotFound
	}

	closed := !periodEnd.After(time.Now().UTC())
	cacheKey := statementCacheKey(cardID, period)

	if closed && uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var stmt domain.CardStatement
			if jsonErr := json.Unmarshal([]byte(val), &stmt); jsonErr == nil {
				return &stmt, nil
			}
		}
	}

	txns, err := uc.store.ListCardSpends(ctx, cardID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(t.Amount)
	}

	average := decimal.Zero
	if len(txns) > 0 {
		average = total.DivRound(decimal.NewFromInt(int64(len(txns))), 2)
	}

	stmt := &domain.CardStatement{
		CardID:       cardID,
		Period:       period,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		Transactions: txns,
		TotalSpend:   total,
		AverageSpend: average,
		Limit:        card.MonthlyLimit,
	}
	if card.MonthlyLimit != nil && card.MonthlyLimit.IsPositive() {
		utilization := total.Div(*card.MonthlyLimit).Mul(decimal.NewFromInt(100)).Round(1)
		stmt.Utilization = &utilization
	}

	if closed && uc.redisClient != nil {
		if data, err := json.Marshal(stmt); err == nil {
			if err := uc.redisClient.Set(ctx, cacheKey, data, closedStatementTTL).Err(); err != nil {
				uc.logger.Warn("failed to cache statement",
					zap.String("card_id", cardID),
					zap.String("period", period),
					zap.Error(err),
				)
			}
		}
	}

	return stmt, nil
}

func statementCacheKey(cardID, period string) string {
	return fmt.Sprintf("statement:card:%s:%s", cardID, period)
}
