package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"ledger-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, s *Store, userID, balance string) *domain.Account {
	t.Helper()
	account, err := s.CreateAccount(context.Background(), "acc_"+userID, &domain.AccountCreate{
		UserID:        userID,
		AccountNumber: "ACC-" + userID,
	})
	require.NoError(t, err)
	require.NoError(t, s.SeedBalance(account.ID, decimal.RequireFromString(balance)))
	return account
}

func seedCard(t *testing.T, s *Store, accountID string, limit *decimal.Decimal) *domain.Card {
	t.Helper()
	card, err := s.CreateCard(context.Background(), "card_"+accountID, &domain.CardCreate{
		AccountID:    accountID,
		CardNumber:   "4539148803436467",
		Expiry:       "03/29",
		MonthlyLimit: limit,
	})
	require.NoError(t, err)
	return card
}

func TestExecuteTransferAtomicOnFailure(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	sender := seedAccount(t, s, "alice", "10.00")
	receiver := seedAccount(t, s, "bob", "5.00")

	_, err := s.ExecuteTransfer(ctx, &domain.TransferRequest{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("10.01"),
		Narrative:  "Transfer to ACC-bob",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Nothing moved, nothing logged.
	require.Equal(t, 0, s.TransactionCount())
	got, err := s.GetAccountByID(ctx, sender.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.RequireFromString("10.00")))
	got, err = s.GetAccountByID(ctx, receiver.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.RequireFromString("5.00")))
}

func TestExecuteTransferIdempotencyShortCircuits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	sender := seedAccount(t, s, "alice", "100.00")
	receiver := seedAccount(t, s, "bob", "0.00")

	key := "11111111-2222-3333-4444-555555555555"
	req := &domain.TransferRequest{
		SenderID:       sender.ID,
		ReceiverID:     receiver.ID,
		Amount:         decimal.RequireFromString("40.00"),
		Narrative:      "Transfer to ACC-bob",
		IdempotencyKey: &key,
	}

	first, err := s.ExecuteTransfer(ctx, req)
	require.NoError(t, err)
	second, err := s.ExecuteTransfer(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, s.TransactionCount())

	found, err := s.GetTransactionByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)
}

func TestExecuteCardSpendChecksUnderLock(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	account := seedAccount(t, s, "alice", "100.00")
	limit := decimal.RequireFromString("50.00")
	card := seedCard(t, s, account.ID, &limit)

	monthStart, _ := domain.MonthWindow(time.Now())

	spend := func(amount string) error {
		_, err := s.ExecuteCardSpend(ctx, &domain.CardSpendRequest{
			CardID:     card.ID,
			Amount:     decimal.RequireFromString(amount),
			Merchant:   "Shop",
			Narrative:  "Card spend at Shop",
			MonthStart: monthStart,
		})
		return err
	}

	require.NoError(t, spend("30.00"))
	require.ErrorIs(t, spend("25.00"), domain.ErrLimitExceeded)
	require.NoError(t, spend("20.00"))
	require.ErrorIs(t, spend("0.01"), domain.ErrLimitExceeded)

	require.NoError(t, s.SetCardFrozen(ctx, card.ID, true))
	require.ErrorIs(t, spend("1.00"), domain.ErrCardFrozen)

	got, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.RequireFromString("50.00")))
	require.Equal(t, 2, s.TransactionCount())
}

func TestDeleteCardPreservesLog(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	account := seedAccount(t, s, "alice", "100.00")
	card := seedCard(t, s, account.ID, nil)

	_, err := s.ExecuteCardSpend(ctx, &domain.CardSpendRequest{
		CardID:     card.ID,
		Amount:     decimal.RequireFromString("10.00"),
		Merchant:   "Shop",
		Narrative:  "Card spend at Shop",
		MonthStart: time.Now().UTC().AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCard(ctx, card.ID))
	require.ErrorIs(t, s.DeleteCard(ctx, card.ID), domain.ErrNotFound)

	txns, err := s.ListAccountTransactions(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	account := seedAccount(t, s, "alice", "100.00")

	// Mutating a returned snapshot must not leak into the store.
	snapshot, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	snapshot.Balance = decimal.RequireFromString("999999.00")

	fresh, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, fresh.Balance.Equal(decimal.RequireFromString("100.00")))
}

func TestConcurrentSpendsSerialize(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	account := seedAccount(t, s, "alice", "1000.00")
	limit := decimal.RequireFromString("100.00")
	card := seedCard(t, s, account.ID, &limit)

	monthStart, _ := domain.MonthWindow(time.Now())

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.ExecuteCardSpend(ctx, &domain.CardSpendRequest{
				CardID:     card.ID,
				Amount:     decimal.RequireFromString("60.00"),
				Merchant:   "Shop",
				Narrative:  "Card spend at Shop",
				MonthStart: monthStart,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, domain.ErrLimitExceeded)
		}
	}
	require.Equal(t, 1, ok)

	got, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.RequireFromString("940.00")))
}
