// Package memory provides a mutex-guarded in-memory LedgerStore. It backs
// the usecase tests and the dev profile; the Postgres repositories are the
// production store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/pkg/utils"

	"github.com/shopspring/decimal"
)

// Store keeps the whole ledger behind one mutex. Every unit of work holds
// the lock for its full read-check-write sequence, which gives the same
// serialization guarantees the row locks give the Postgres store.
type Store struct {
	mu            sync.Mutex
	accounts      map[string]*domain.Account
	cards         map[string]*domain.Card
	beneficiaries map[string]*domain.Beneficiary
	transactions  []*domain.Transaction
	byIdemKey     map[string]*domain.Transaction
	ids           *utils.IDGenerator
}

func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]*domain.Account),
		cards:         make(map[string]*domain.Card),
		beneficiaries: make(map[string]*domain.Beneficiary),
		byIdemKey:     make(map[string]*domain.Transaction),
		ids:           utils.NewIDGenerator(),
	}
}

// ===============================
// ACCOUNTS
// ===============================

func (s *Store) CreateAccount(ctx context.Context, id string, create *domain.AccountCreate) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &domain.Account{
		ID:            id,
		UserID:        create.UserID,
		AccountNumber: create.AccountNumber,
		Balance:       decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	s.accounts[id] = a
	return copyAccount(a), nil
}

func (s *Store) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAccount(a), nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.AccountNumber == accountNumber {
			return copyAccount(a), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ===============================
// CARDS
// ===============================

func (s *Store) CreateCard(ctx context.Context, id string, create *domain.CardCreate) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[create.AccountID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	c := &domain.Card{
		ID:           id,
		AccountID:    create.AccountID,
		CardNumber:   create.CardNumber,
		Expiry:       create.Expiry,
		Nickname:     create.Nickname,
		MonthlyLimit: create.MonthlyLimit,
		CreatedAt:    time.Now().UTC(),
		OwnerUserID:  account.UserID,
	}
	s.cards[id] = c
	return copyCard(c), nil
}

func (s *Store) GetCardByID(ctx context.Context, cardID string) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[cardID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyCard(c), nil
}

func (s *Store) ListCardsByAccount(ctx context.Context, accountID string) ([]*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Card
	for _, c := range s.cards {
		if c.AccountID == accountID {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetCardLimit(ctx context.Context, cardID string, limit *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[cardID]
	if !ok {
		return domain.ErrNotFound
	}
	c.MonthlyLimit = copyDecimalPtr(limit)
	return nil
}

func (s *Store) SetCardFrozen(ctx context.Context, cardID string, frozen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[cardID]
	if !ok {
		return domain.ErrNotFound
	}
	c.IsFrozen = frozen
	return nil
}

func (s *Store) DeleteCard(ctx context.Context, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[cardID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.cards, cardID)
	// Transaction rows keep a dangling card reference, matching the
	// ON DELETE SET NULL column only in that history is never erased.
	return nil
}

// ===============================
// BENEFICIARIES
// ===============================

func (s *Store) CreateBeneficiary(ctx context.Context, id string, create *domain.BeneficiaryCreate) (*domain.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.beneficiaries {
		if b.UserID == create.UserID && b.AccountNumber == create.AccountNumber {
			return nil, fmt.Errorf("%w: beneficiary already saved", domain.ErrConflict)
		}
	}

	b := &domain.Beneficiary{
		ID:            id,
		UserID:        create.UserID,
		Nickname:      create.Nickname,
		AccountNumber: create.AccountNumber,
		CreatedAt:     time.Now().UTC(),
	}
	s.beneficiaries[id] = b
	return copyBeneficiary(b), nil
}

func (s *Store) GetBeneficiaryByID(ctx context.Context, beneficiaryID string) (*domain.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.beneficiaries[beneficiaryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyBeneficiary(b), nil
}

func (s *Store) ListBeneficiariesByUser(ctx context.Context, userID string) ([]*domain.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Beneficiary
	for _, b := range s.beneficiaries {
		if b.UserID == userID {
			out = append(out, copyBeneficiary(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteBeneficiary(ctx context.Context, beneficiaryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.beneficiaries[beneficiaryID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.beneficiaries, beneficiaryID)
	return nil
}

// ===============================
// ATOMIC UNITS OF WORK
// ===============================

// ExecuteTransfer debits, credits and appends the TRANSFER row while
// holding the store lock, so no interleaving with other writers.
func (s *Store) ExecuteTransfer(ctx context.Context, req *domain.TransferRequest) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.IdempotencyKey != nil {
		if existing, ok := s.byIdemKey[*req.IdempotencyKey]; ok {
			if !existing.MatchesTransfer(req) {
				return nil, fmt.Errorf("%w: idempotency key reused with different parameters", domain.ErrConflict)
			}
			return copyTransaction(existing), nil
		}
	}

	sender, ok := s.accounts[req.SenderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	receiver, ok := s.accounts[req.ReceiverID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if sender.Balance.LessThan(req.Amount) {
		return nil, domain.ErrInsufficientFunds
	}

	sender.Balance = sender.Balance.Sub(req.Amount)
	receiver.Balance = receiver.Balance.Add(req.Amount)

	narrative := req.Narrative
	txn := &domain.Transaction{
		ID:             s.ids.TransactionID(),
		SenderID:       &req.SenderID,
		ReceiverID:     &req.ReceiverID,
		Type:           domain.TransactionTypeTransfer,
		Amount:         req.Amount,
		Status:         domain.TransactionStatusSuccess,
		Narrative:      &narrative,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	s.transactions = append(s.transactions, txn)
	if req.IdempotencyKey != nil {
		s.byIdemKey[*req.IdempotencyKey] = txn
	}
	return copyTransaction(txn), nil
}

// ExecuteCardSpend re-checks frozen, funds and the monthly limit under the
// store lock, in that order, then applies all three writes.
func (s *Store) ExecuteCardSpend(ctx context.Context, req *domain.CardSpendRequest) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[req.CardID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	account, ok := s.accounts[card.AccountID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if card.IsFrozen {
		return nil, domain.ErrCardFrozen
	}
	if account.Balance.LessThan(req.Amount) {
		return nil, domain.ErrInsufficientFunds
	}
	if card.MonthlyLimit != nil {
		spent := s.monthCardSpendLocked(req.CardID, req.MonthStart)
		if spent.Add(req.Amount).GreaterThan(*card.MonthlyLimit) {
			return nil, domain.ErrLimitExceeded
		}
	}

	account.Balance = account.Balance.Sub(req.Amount)

	now := time.Now().UTC()
	merchant := req.Merchant
	narrative := req.Narrative
	txn := &domain.Transaction{
		ID:        s.ids.TransactionID(),
		SenderID:  &card.AccountID,
		CardID:    &req.CardID,
		Type:      domain.TransactionTypeCardSpend,
		Amount:    req.Amount,
		Status:    domain.TransactionStatusSuccess,
		Merchant:  &merchant,
		Narrative: &narrative,
		CreatedAt: now,
	}
	s.transactions = append(s.transactions, txn)
	card.LastUsedAt = &now
	return copyTransaction(txn), nil
}

// ===============================
// READS
// ===============================

func (s *Store) ListCardSpends(ctx context.Context, cardID string, from, to time.Time) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Transaction
	for _, t := range s.transactions {
		if t.Type != domain.TransactionTypeCardSpend || t.CardID == nil || *t.CardID != cardID {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		out = append(out, copyTransaction(t))
	}
	return out, nil
}

func (s *Store) ListAccountTransactions(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Transaction
	for i := len(s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.transactions[i]
		if (t.SenderID != nil && *t.SenderID == accountID) || (t.ReceiverID != nil && *t.ReceiverID == accountID) {
			out = append(out, copyTransaction(t))
		}
	}
	return out, nil
}

func (s *Store) MonthCardSpend(ctx context.Context, cardID string, monthStart time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monthCardSpendLocked(cardID, monthStart), nil
}

func (s *Store) monthCardSpendLocked(cardID string, monthStart time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.transactions {
		if t.Type == domain.TransactionTypeCardSpend && t.CardID != nil && *t.CardID == cardID && !t.CreatedAt.Before(monthStart) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.byIdemKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyTransaction(txn), nil
}

// TransactionCount reports the size of the append-only log. Tests use it
// to assert failed operations wrote nothing.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

// SeedBalance overwrites an account's balance directly. Test fixture only;
// deposits arrive through an external settlement feed in production.
func (s *Store) SeedBalance(accountID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Balance = balance
	return nil
}

// ===============================
// COPY HELPERS
// ===============================

func copyAccount(a *domain.Account) *domain.Account {
	out := *a
	return &out
}

func copyCard(c *domain.Card) *domain.Card {
	out := *c
	out.MonthlyLimit = copyDecimalPtr(c.MonthlyLimit)
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		out.LastUsedAt = &t
	}
	return &out
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	out := *t
	return &out
}

func copyBeneficiary(b *domain.Beneficiary) *domain.Beneficiary {
	out := *b
	return &out
}

func copyDecimalPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
