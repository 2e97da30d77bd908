package usecase

import (
	"context"
	"sync"
	"testing"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository/memory"
	"ledger-service/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	store         *memory.Store
	accountUC     *AccountUsecase
	transferUC    *TransferUsecase
	cardUC        *CardUsecase
	statementUC   *StatementUsecase
	beneficiaryUC *BeneficiaryUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	ids := utils.NewIDGenerator()
	return &testEnv{
		store:         store,
		accountUC:     NewAccountUsecase(store, ids, nil, logger),
		transferUC:    NewTransferUsecase(store, nil, nil, logger),
		cardUC:        NewCardUsecase(store, ids, nil, nil, logger),
		statementUC:   NewStatementUsecase(store, nil, logger),
		beneficiaryUC: NewBeneficiaryUsecase(store, ids, logger),
	}
}

// openFundedAccount opens an account for userID and seeds its balance.
func openFundedAccount(t *testing.T, env *testEnv, userID, balance string) *domain.Account {
	t.Helper()
	account, err := env.accountUC.OpenAccount(context.Background(), userID)
	require.NoError(t, err)
	require.NoError(t, env.store.SeedBalance(account.ID, decimal.RequireFromString(balance)))
	account.Balance = decimal.RequireFromString(balance)
	return account
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransferMovesFundsAndLogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "500.00")
	bob := openFundedAccount(t, env, "user-bob", "100.00")

	txn, err := env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec("150.00"), nil)
	require.NoError(t, err)
	require.Equal(t, domain.TransactionTypeTransfer, txn.Type)
	require.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	require.NotNil(t, txn.SenderID)
	require.Equal(t, alice.ID, *txn.SenderID)
	require.NotNil(t, txn.ReceiverID)
	require.Equal(t, bob.ID, *txn.ReceiverID)
	require.True(t, txn.Amount.Equal(dec("150.00")))
	require.NotNil(t, txn.Narrative)
	require.Equal(t, "Transfer to "+bob.AccountNumber, *txn.Narrative)

	senderBal, err := env.accountUC.GetBalance(ctx, "user-alice", alice.ID)
	require.NoError(t, err)
	require.True(t, senderBal.Equal(dec("350.00")))

	receiverBal, err := env.accountUC.GetBalance(ctx, "user-bob", bob.ID)
	require.NoError(t, err)
	require.True(t, receiverBal.Equal(dec("250.00")))
}

func TestTransferInsufficientFundsLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "50.00")
	bob := openFundedAccount(t, env, "user-bob", "0.00")

	_, err := env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec("50.01"), nil)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Failed attempts never append to the log or touch balances.
	require.Equal(t, 0, env.store.TransactionCount())
	bal, err := env.accountUC.GetBalance(ctx, "user-alice", alice.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("50.00")))
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "100.00")
	bob := openFundedAccount(t, env, "user-bob", "0.00")

	for _, amount := range []string{"0", "-10.00"} {
		_, err := env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec(amount), nil)
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
	require.Equal(t, 0, env.store.TransactionCount())
}

func TestTransferRejectsSelfTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "100.00")

	_, err := env.transferUC.Transfer(ctx, "user-alice", alice.ID, alice.AccountNumber, dec("10.00"), nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	require.Equal(t, 0, env.store.TransactionCount())
}

func TestTransferUnknownPartiesNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "100.00")

	_, err := env.transferUC.Transfer(ctx, "user-alice", "acc_missing", alice.AccountNumber, dec("10.00"), nil)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.transferUC.Transfer(ctx, "user-alice", alice.ID, "ACC-000000000000000", dec("10.00"), nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransferForeignSenderLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "100.00")
	bob := openFundedAccount(t, env, "user-bob", "0.00")

	// Bob cannot spend from Alice's account; the error does not reveal
	// that the account exists.
	_, err := env.transferUC.Transfer(ctx, "user-bob", alice.ID, bob.AccountNumber, dec("10.00"), nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransferIdempotencyReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "100.00")
	bob := openFundedAccount(t, env, "user-bob", "0.00")

	key := uuid.New()
	first, err := env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec("25.00"), &key)
	require.NoError(t, err)

	second, err := env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec("25.00"), &key)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	// The retry must not move funds again.
	require.Equal(t, 1, env.store.TransactionCount())
	bal, err := env.accountUC.GetBalance(ctx, "user-alice", alice.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("75.00")))
}

func TestTransferIdempotencyKeyMismatchRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "100.00")
	bob := openFundedAccount(t, env, "user-bob", "0.00")
	carol := openFundedAccount(t, env, "user-carol", "0.00")

	key := uuid.New()
	_, err := env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec("25.00"), &key)
	require.NoError(t, err)

	// Same key, different amount: not a replay.
	_, err = env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec("30.00"), &key)
	require.ErrorIs(t, err, domain.ErrConflict)

	// Same key, different receiver: not a replay either.
	_, err = env.transferUC.Transfer(ctx, "user-alice", alice.ID, carol.AccountNumber, dec("25.00"), &key)
	require.ErrorIs(t, err, domain.ErrConflict)

	// Only the original transfer happened.
	require.Equal(t, 1, env.store.TransactionCount())
	bal, err := env.accountUC.GetBalance(ctx, "user-alice", alice.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("75.00")))
}

func TestConcurrentTransfersConserveFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := openFundedAccount(t, env, "user-alice", "1000.00")
	bob := openFundedAccount(t, env, "user-bob", "1000.00")

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = env.transferUC.Transfer(ctx, "user-alice", alice.ID, bob.AccountNumber, dec("7.00"), nil)
		}()
		go func() {
			defer wg.Done()
			_, _ = env.transferUC.Transfer(ctx, "user-bob", bob.ID, alice.AccountNumber, dec("3.00"), nil)
		}()
	}
	wg.Wait()

	aliceBal, err := env.accountUC.GetBalance(ctx, "user-alice", alice.ID)
	require.NoError(t, err)
	bobBal, err := env.accountUC.GetBalance(ctx, "user-bob", bob.ID)
	require.NoError(t, err)

	require.True(t, aliceBal.Add(bobBal).Equal(dec("2000.00")),
		"total funds changed: %s + %s", aliceBal, bobBal)
	require.True(t, aliceBal.Equal(dec("920.00")), "alice balance: %s", aliceBal)
	require.True(t, bobBal.Equal(dec("1080.00")), "bob balance: %s", bobBal)
}
