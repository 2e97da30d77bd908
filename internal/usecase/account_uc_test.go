package usecase

import (
	"context"
	"testing"

	"ledger-service/internal/domain"
	"ledger-service/pkg/utils"

	"github.com/stretchr/testify/require"
)

func TestOpenAccountStartsEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.accountUC.OpenAccount(ctx, "user-alice")
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
	require.True(t, account.Balance.IsZero())
	require.Regexp(t, `^ACC-\d{16}$`, account.AccountNumber)
	require.True(t, utils.ValidateLuhn(account.AccountNumber))
}

func TestListAccountsScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a1, err := env.accountUC.OpenAccount(ctx, "user-alice")
	require.NoError(t, err)
	a2, err := env.accountUC.OpenAccount(ctx, "user-alice")
	require.NoError(t, err)
	_, err = env.accountUC.OpenAccount(ctx, "user-bob")
	require.NoError(t, err)

	require.NotEqual(t, a1.AccountNumber, a2.AccountNumber)

	accounts, err := env.accountUC.ListAccounts(ctx, "user-alice")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for _, a := range accounts {
		require.Equal(t, "user-alice", a.UserID)
	}
}

func TestGetAccountEnforcesOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.accountUC.OpenAccount(ctx, "user-alice")
	require.NoError(t, err)

	_, err = env.accountUC.GetAccount(ctx, "user-bob", account.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.accountUC.GetBalance(ctx, "user-bob", account.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.accountUC.ListTransactions(ctx, "user-bob", account.ID, 10)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListTransactionsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "1000.00")
	bob := openFundedAccount(t, env, "user-bob", "0.00")

	amounts := []string{"10.00", "20.00", "30.00"}
	for _, a := range amounts {
		_, err := env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec(a), nil)
		require.NoError(t, err)
	}

	txns, err := env.accountUC.ListTransactions(ctx, "user-alice", alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	require.True(t, txns[0].Amount.Equal(dec("30.00")))
	require.True(t, txns[2].Amount.Equal(dec("10.00")))

	// Both legs of a transfer show up for the receiver too.
	bobTxns, err := env.accountUC.ListTransactions(ctx, "user-bob", bob.ID, 10)
	require.NoError(t, err)
	require.Len(t, bobTxns, 3)

	// Oversized or non-positive limits fall back to the default page size.
	txns, err = env.accountUC.ListTransactions(ctx, "user-alice", alice.ID, -1)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	limited, err := env.accountUC.ListTransactions(ctx, "user-alice", alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}
