package usecase

import (
	"context"
	"testing"
	"time"

	"ledger-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestBuildStatementAggregatesMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "1000.00")
	card := issueCard(t, env, "user-alice", alice.ID, decPtr("500.00"))

	for _, amount := range []string{"100.00", "50.00", "25.50"} {
		_, err := env.cardUC.AuthorizeSpend(ctx, "user-alice", card.ID, dec(amount), "Shop", nil)
		require.NoError(t, err)
	}

	period := time.Now().UTC().Format("2006-01")
	stmt, err := env.statementUC.BuildStatement(ctx, "user-alice", card.ID, period)
	require.NoError(t, err)

	require.Equal(t, card.ID, stmt.CardID)
	require.Equal(t, period, stmt.Period)
	require.Len(t, stmt.Transactions, 3)
	require.True(t, stmt.TotalSpend.Equal(dec("175.50")))
	require.True(t, stmt.AverageSpend.Equal(dec("58.50")))
	require.NotNil(t, stmt.Limit)
	require.NotNil(t, stmt.Utilization)
	require.True(t, stmt.Utilization.Equal(dec("35.1")), "utilization: %s", stmt.Utilization)
}

func TestBuildStatementIsIdempotentRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "1000.00")
	card := issueCard(t, env, "user-alice", alice.ID, nil)

	_, err := env.cardUC.AuthorizeSpend(ctx, "user-alice", card.ID, dec("42.00"), "Shop", nil)
	require.NoError(t, err)

	period := time.Now().UTC().Format("2006-01")
	first, err := env.statementUC.BuildStatement(ctx, "user-alice", card.ID, period)
	require.NoError(t, err)
	second, err := env.statementUC.BuildStatement(ctx, "user-alice", card.ID, period)
	require.NoError(t, err)

	require.True(t, first.TotalSpend.Equal(second.TotalSpend))
	require.Len(t, second.Transactions, len(first.Transactions))

	// Building statements never writes to the log.
	require.Equal(t, 1, env.store.TransactionCount())

	bal, err := env.accountUC.GetBalance(ctx, "user-alice", alice.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("958.00")))
}

func TestBuildStatementEmptyMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "1000.00")
	card := issueCard(t, env, "user-alice", alice.ID, decPtr("200.00"))

	// A month with no activity yields zero totals, not an error.
	stmt, err := env.statementUC.BuildStatement(ctx, "user-alice", card.ID, "2024-01")
	require.NoError(t, err)
	require.Empty(t, stmt.Transactions)
	require.True(t, stmt.TotalSpend.IsZero())
	require.True(t, stmt.AverageSpend.IsZero())
	require.NotNil(t, stmt.Utilization)
	require.True(t, stmt.Utilization.IsZero())
}

func TestBuildStatementExcludesOtherMonthsAndTransfers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "1000.00")
	bob := openFundedAccount(t, env, "user-bob", "0.00")
	card := issueCard(t, env, "user-alice", alice.ID, nil)

	_, err := env.cardUC.AuthorizeSpend(ctx, "user-alice", card.ID, dec("30.00"), "Shop", nil)
	require.NoError(t, err)
	_, err = env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec("100.00"), nil)
	require.NoError(t, err)

	period := time.Now().UTC().Format("2006-01")
	stmt, err := env.statementUC.BuildStatement(ctx, "user-alice", card.ID, period)
	require.NoError(t, err)
	require.Len(t, stmt.Transactions, 1)
	require.True(t, stmt.TotalSpend.Equal(dec("30.00")))

	// Last month is untouched by this month's activity.
	lastMonth := time.Now().UTC().AddDate(0, -1, 0).Format("2006-01")
	prev, err := env.statementUC.BuildStatement(ctx, "user-alice", card.ID, lastMonth)
	require.NoError(t, err)
	require.Empty(t, prev.Transactions)
}

func TestBuildStatementValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "100.00")
	card := issueCard(t, env, "user-alice", alice.ID, nil)

	_, err := env.statementUC.BuildStatement(ctx, "user-alice", card.ID, "January 2025")
	require.ErrorIs(t, err, domain.ErrInvalidPeriod)
	_, err = env.statementUC.BuildStatement(ctx, "user-alice", card.ID, "2025-13")
	require.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, err = env.statementUC.BuildStatement(ctx, "user-bob", card.ID, "2025-01")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.statementUC.BuildStatement(ctx, "user-alice", "card_missing", "2025-01")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
