package hrest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ledger-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerRestHandler exposes the ledger over HTTP. Authentication is an
// upstream concern: the gateway resolves the session and forwards the
// identity in X-User-ID, and the usecases re-validate ownership on every
// call.
type LedgerRestHandler struct {
	accountUC     *usecase.AccountUsecase
	transferUC    *usecase.TransferUsecase
	cardUC        *usecase.CardUsecase
	statementUC   *usecase.StatementUsecase
	beneficiaryUC *usecase.BeneficiaryUsecase
	logger        *zap.Logger
}

func NewLedgerRestHandler(
	accountUC *usecase.AccountUsecase,
	transferUC *usecase.TransferUsecase,
	cardUC *usecase.CardUsecase,
	statementUC *usecase.StatementUsecase,
	beneficiaryUC *usecase.BeneficiaryUsecase,
	logger *zap.Logger,
) *LedgerRestHandler {
	return &LedgerRestHandler{
		accountUC:     accountUC,
		transferUC:    transferUC,
		cardUC:        cardUC,
		statementUC:   statementUC,
		beneficiaryUC: beneficiaryUC,
		logger:        logger,
	}
}

func (h *LedgerRestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.OpenAccount)
		r.Get("/", h.ListAccounts)
		r.Get("/{accountID}", h.GetAccount)
		r.Get("/{accountID}/balance", h.GetBalance)
		r.Get("/{accountID}/transactions", h.ListTransactions)
		r.Get("/{accountID}/cards", h.ListCards)
	})

	r.Post("/transfers", h.Transfer)

	r.Route("/cards", func(r chi.Router) {
		r.Post("/", h.IssueCard)
		r.Post("/{cardID}/spend", h.Spend)
		r.Put("/{cardID}/limit", h.SetLimit)
		r.Put("/{cardID}/frozen", h.SetFrozen)
		r.Delete("/{cardID}", h.RemoveCard)
		r.Get("/{cardID}/statements/{period}", h.GetStatement)
	})

	r.Route("/beneficiaries", func(r chi.Router) {
		r.Post("/", h.AddBeneficiary)
		r.Get("/", h.ListBeneficiaries)
		r.Delete("/{beneficiaryID}", h.RemoveBeneficiary)
	})
}

// userID pulls the authenticated identity the gateway forwarded.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *LedgerRestHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	account, err := h.accountUC.OpenAccount(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *LedgerRestHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	accounts, err := h.accountUC.ListAccounts(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *LedgerRestHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountUC.GetAccount(r.Context(), userID(r), chi.URLParam(r, "accountID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *LedgerRestHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.accountUC.GetBalance(r.Context(), userID(r), chi.URLParam(r, "accountID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (h *LedgerRestHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := h.accountUC.ListTransactions(r.Context(), userID(r), chi.URLParam(r, "accountID"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

type transferJSON struct {
	SenderID              string `json:"sender_id"`
	ReceiverAccountNumber string `json:"receiver_account_number"`
	Amount                string `json:"amount"`
	IdempotencyKey        string `json:"idempotency_key,omitempty"`
}

func (h *LedgerRestHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var in transferJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	var idemKey *uuid.UUID
	if in.IdempotencyKey != "" {
		key, err := uuid.Parse(in.IdempotencyKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, "idempotency_key must be a UUID")
			return
		}
		idemKey = &key
	}

	txn, err := h.transferUC.Transfer(r.Context(), userID(r), in.SenderID, in.ReceiverAccountNumber, amount, idemKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

type issueCardJSON struct {
	AccountID    string  `json:"account_id"`
	Nickname     *string `json:"nickname,omitempty"`
	MonthlyLimit *string `json:"monthly_limit,omitempty"`
}

func (h *LedgerRestHandler) IssueCard(w http.ResponseWriter, r *http.Request) {
	var in issueCardJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	limit, ok := parseOptionalAmount(in.MonthlyLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid monthly_limit")
		return
	}

	card, err := h.cardUC.IssueCard(r.Context(), userID(r), in.AccountID, in.Nickname, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

type spendJSON struct {
	Amount    string  `json:"amount"`
	Merchant  string  `json:"merchant"`
	Narrative *string `json:"narrative,omitempty"`
}

func (h *LedgerRestHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var in spendJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Merchant == "" {
		writeError(w, http.StatusBadRequest, "merchant is required")
		return
	}

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	txn, err := h.cardUC.AuthorizeSpend(r.Context(), userID(r), chi.URLParam(r, "cardID"), amount, in.Merchant, in.Narrative)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

type setLimitJSON struct {
	MonthlyLimit *string `json:"monthly_limit"` // null clears the limit
}

func (h *LedgerRestHandler) SetLimit(w http.ResponseWriter, r *http.Request) {
	var in setLimitJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	limit, ok := parseOptionalAmount(in.MonthlyLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid monthly_limit")
		return
	}

	if err := h.cardUC.SetLimit(r.Context(), userID(r), chi.URLParam(r, "cardID"), limit); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setFrozenJSON struct {
	Frozen bool `json:"frozen"`
}

func (h *LedgerRestHandler) SetFrozen(w http.ResponseWriter, r *http.Request) {
	var in setFrozenJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.cardUC.SetFrozen(r.Context(), userID(r), chi.URLParam(r, "cardID"), in.Frozen); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerRestHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	if err := h.cardUC.RemoveCard(r.Context(), userID(r), chi.URLParam(r, "cardID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerRestHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cardUC.ListCards(r.Context(), userID(r), chi.URLParam(r, "accountID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *LedgerRestHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	stmt, err := h.statementUC.BuildStatement(r.Context(), userID(r), chi.URLParam(r, "cardID"), chi.URLParam(r, "period"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

type beneficiaryJSON struct {
	Nickname      string `json:"nickname"`
	AccountNumber string `json:"account_number"`
}

func (h *LedgerRestHandler) AddBeneficiary(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var in beneficiaryJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(in.Nickname) < 2 {
		writeError(w, http.StatusBadRequest, "nickname must be at least 2 characters")
		return
	}
	if len(in.AccountNumber) < 10 {
		writeError(w, http.StatusBadRequest, "account_number must be at least 10 characters")
		return
	}

	b, err := h.beneficiaryUC.AddBeneficiary(r.Context(), user, in.Nickname, in.AccountNumber)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *LedgerRestHandler) ListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	beneficiaries, err := h.beneficiaryUC.ListBeneficiaries(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, beneficiaries)
}

func (h *LedgerRestHandler) RemoveBeneficiary(w http.ResponseWriter, r *http.Request) {
	if err := h.beneficiaryUC.RemoveBeneficiary(r.Context(), userID(r), chi.URLParam(r, "beneficiaryID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseOptionalAmount parses a nullable decimal field. ok is false on a
// malformed value; a nil input stays nil.
func parseOptionalAmount(s *string) (*decimal.Decimal, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, false
	}
	return &d, true
}
