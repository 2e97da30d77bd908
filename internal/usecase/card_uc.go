package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/pub"
	"ledger-service/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// cardExpiryYears is how far out issued cards expire.
const cardExpiryYears = 3

// CardUsecase issues and manages virtual cards and authorizes spends
// against their linked accounts.
type CardUsecase struct {
	store       LedgerStore
	ids         *utils.IDGenerator
	redisClient *redis.Client
	publisher   *pub.TransactionEventPublisher
	logger      *zap.Logger
}

func NewCardUsecase(store LedgerStore, ids *utils.IDGenerator, redisClient *redis.Client, publisher *pub.TransactionEventPublisher, logger *zap.Logger) *CardUsecase {
	return &CardUsecase{
		store:       store,
		ids:         ids,
		redisClient: redisClient,
		publisher:   publisher,
		logger:      logger,
	}
}

// AuthorizeSpend validates and executes a card purchase. Checks run in a
// fixed order so each failure maps to one distinct reason: ownership,
// amount shape, frozen flag, funds, monthly limit. The store re-checks
// frozen/funds/limit under its own locks so two concurrent spends on the
// same card cannot both pass against a stale aggregate.
func (uc *CardUsecase) AuthorizeSpend(
	ctx context.Context,
	userID string,
	cardID string,
	amount decimal.Decimal,
	merchant string,
	narrative *string,
) (*domain.Transaction, error) {
	card, err := uc.ownedCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}

	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	// Fast-path reject before opening a transaction; the store repeats
	// this check under the card lock.
	if card.IsFrozen {
		return nil, domain.ErrCardFrozen
	}

	text := ""
	if narrative != nil {
		text = strings.TrimSpace(*narrative)
	}
	if text == "" {
		text = fmt.Sprintf("Card spend at %s", merchant)
	}

	monthStart, _ := domain.MonthWindow(time.Now())

	txn, err := uc.store.ExecuteCardSpend(ctx, &domain.CardSpendRequest{
		CardID:     card.ID,
		Amount:     amount,
		Merchant:   merchant,
		Narrative:  text,
		MonthStart: monthStart,
	})
	if err != nil {
		return nil, err
	}

	uc.invalidateCaches(ctx, card)

	if uc.publisher != nil {
		if err := uc.publisher.PublishCardSpendCompleted(ctx, txn, merchant); err != nil {
			uc.logger.Warn("failed to publish card spend event",
				zap.String("transaction_id", txn.ID),
				zap.Error(err),
			)
		}
	}

	uc.logger.Info("card spend authorized",
		zap.String("transaction_id", txn.ID),
		zap.String("card_id", card.ID),
		zap.String("merchant", merchant),
		zap.String("amount", amount.String()),
	)
	return txn, nil
}

// IssueCard creates a card on one of the user's accounts with a generated
// Luhn-valid number.
func (uc *CardUsecase) IssueCard(
	ctx context.Context,
	userID string,
	accountID string,
	nickname *string,
	monthlyLimit *decimal.Decimal,
) (*domain.Card, error) {
	account, err := uc.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if monthlyLimit != nil && !monthlyLimit.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	card, err := uc.store.CreateCard(ctx, uc.ids.CardID(), &domain.CardCreate{
		AccountID:    accountID,
		CardNumber:   uc.ids.CardNumber(),
		Expiry:       utils.CardExpiry(time.Now().UTC(), cardExpiryYears),
		Nickname:     nickname,
		MonthlyLimit: monthlyLimit,
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("card issued",
		zap.String("card_id", card.ID),
		zap.String("account_id", accountID),
	)
	return card, nil
}

// SetLimit sets or clears (nil = unlimited) the card's monthly spend
// ceiling. Takes effect on the next authorization.
func (uc *CardUsecase) SetLimit(ctx context.Context, userID, cardID string, limit *decimal.Decimal) error {
	card, err := uc.ownedCard(ctx, userID, cardID)
	if err != nil {
		return err
	}
	if limit != nil && !limit.IsPositive() {
		return domain.ErrInvalidAmount
	}
	return uc.store.SetCardLimit(ctx, card.ID, limit)
}

// SetFrozen freezes or unfreezes the card.
func (uc *CardUsecase) SetFrozen(ctx context.Context, userID, cardID string, frozen bool) error {
	card, err := uc.ownedCard(ctx, userID, cardID)
	if err != nil {
		return err
	}
	return uc.store.SetCardFrozen(ctx, card.ID, frozen)
}

// RemoveCard deletes the card. Its transactions stay in the log with the
// card reference cleared, never removed.
func (uc *CardUsecase) RemoveCard(ctx context.Context, userID, cardID string) error {
	card, err := uc.ownedCard(ctx, userID, cardID)
	if err != nil {
		return err
	}
	return uc.store.DeleteCard(ctx, card.ID)
}

// ListCards returns the cards on one of the user's accounts.
func (uc *CardUsecase) ListCards(ctx context.Context, userID, accountID string) ([]*domain.Card, error) {
	account, err := uc.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return uc.store.ListCardsByAccount(ctx, accountID)
}

// ownedCard fetches a card and enforces ownership. Missing card and
// foreign card are indistinguishable to the caller.
func (uc *CardUsecase) ownedCard(ctx context.Context, userID, cardID string) (*domain.Card, error) {
	card, err := uc.store.GetCardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerUserID != userID {
		return nil, domain.ErrNotFound
	}
	return card, nil
}

func (uc *CardUsecase) invalidateCaches(ctx context.Context, card *domain.Card) {
	if uc.redisClient == nil {
		return
	}
	account, err := uc.store.GetAccountByID(ctx, card.AccountID)
	if err == nil {
		if err := uc.redisClient.Del(ctx, balanceCacheKey(account.AccountNumber)).Err(); err != nil {
			uc.logger.Warn("failed to invalidate balance cache",
				zap.String("account_number", account.AccountNumber),
				zap.Error(err),
			)
		}
	}
}
