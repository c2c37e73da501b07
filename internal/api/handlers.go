/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vaultpay/ledger-service/internal/app"
	"github.com/vaultpay/ledger-service/internal/domain"
	"github.com/vaultpay/ledger-service/internal/store"
	"go.uber.org/zap"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
	logger  *zap.Logger
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service, logger *zap.Logger) *LedgerHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerHandlers{service: service, logger: logger}
}

// balanceResponse is the balance snapshot returned to clients. Amounts are
// serialized as strings so clients never round them through floats.
type balanceResponse struct {
	AccountID     string `json:"account_id"`
	Balance       string `json:"balance"`
	LockedBalance string `json:"locked_balance"`
	Total         string `json:"total"`
	Currency      string `json:"currency"`
}

type depositRequestBody struct {
	Amount      decimal.Decimal `json:"amount"`
	ProofUpload string          `json:"proof_upload,omitempty"`
	Description string          `json:"description,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

type withdrawalRequestBody struct {
	Amount        decimal.Decimal `json:"amount"`
	BeneficiaryID *uuid.UUID      `json:"beneficiary_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
}

type adjustmentRequestBody struct {
	UserID      uuid.UUID       `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind"`
	Reason      string          `json:"reason"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

type createAccountRequestBody struct {
	UserID   uuid.UUID `json:"user_id"`
	Currency string    `json:"currency"`
}

// authenticatedUserID extracts and parses the token subject as a user UUID.
func (h *LedgerHandlers) authenticatedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	subject, ok := GetSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// HealthHandler reports service health, including store reachability.
func (h *LedgerHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Healthcheck(r.Context()); err != nil {
		h.logger.Error("healthcheck failed", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetBalanceHandler returns the authenticated user's balance snapshot.
func (h *LedgerHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{
		AccountID:     account.ID.String(),
		Balance:       account.Balance.String(),
		LockedBalance: account.LockedBalance.String(),
		Total:         account.Total().String(),
		Currency:      account.Currency,
	})
}

// ListTransactionsHandler returns the authenticated user's transaction history.
func (h *LedgerHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	opts := domain.TransactionListOptions{
		Kind:   domain.TransactionKind(r.URL.Query().Get("kind")),
		Status: domain.TransactionStatus(r.URL.Query().Get("status")),
	}
	fmt.Sscanf(r.URL.Query().Get("limit"), "%d", &opts.Limit)
	fmt.Sscanf(r.URL.Query().Get("offset"), "%d", &opts.Offset)

	transactions, err := h.service.ListTransactions(r.Context(), userID, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// GetTransactionHandler returns one of the authenticated user's transactions.
func (h *LedgerHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}
	txID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), txID, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// DepositHandler records a deposit claim for admin review.
func (h *LedgerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var body depositRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.Deposit(r.Context(), domain.DepositRequest{
		UserID:      userID,
		Amount:      body.Amount,
		ProofUpload: body.ProofUpload,
		Description: body.Description,
		ReferenceID: body.ReferenceID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

// WithdrawalHandler opens a withdrawal request against an approved beneficiary.
func (h *LedgerHandlers) WithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var body withdrawalRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.RequestWithdrawal(r.Context(), domain.WithdrawalRequest{
		UserID:        userID,
		Amount:        body.Amount,
		BeneficiaryID: body.BeneficiaryID,
		Description:   body.Description,
		ReferenceID:   body.ReferenceID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

// AdjustmentHandler applies an immediate admin balance adjustment.
func (h *LedgerHandlers) AdjustmentHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := GetSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return
	}

	var body adjustmentRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.Adjust(r.Context(), actor, domain.AdjustmentRequest{
		UserID:      body.UserID,
		Amount:      body.Amount,
		Kind:        domain.TransactionKind(body.Kind),
		Reason:      body.Reason,
		ReferenceID: body.ReferenceID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

// ListPendingDepositsHandler returns the admin deposit review queue.
func (h *LedgerHandlers) ListPendingDepositsHandler(w http.ResponseWriter, r *http.Request) {
	h.writePendingList(w, r, h.service.ListPendingDeposits)
}

// ListPendingWithdrawalsHandler returns the admin withdrawal review queue.
func (h *LedgerHandlers) ListPendingWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	h.writePendingList(w, r, h.service.ListPendingWithdrawals)
}

func (h *LedgerHandlers) writePendingList(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]domain.Transaction, error)) {
	transactions, err := list(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// decideTransaction parses an approval decision and applies it through the
// given service method.
func (h *LedgerHandlers) decideTransaction(w http.ResponseWriter, r *http.Request, decide func(context.Context, uuid.UUID, string, domain.ApprovalDecision) (*domain.Transaction, error)) {
	approver, ok := GetSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return
	}
	txID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}

	var decision domain.ApprovalDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := decide(r.Context(), txID, approver, decision)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// ApproveDepositHandler applies an admin decision to a pending deposit.
func (h *LedgerHandlers) ApproveDepositHandler(w http.ResponseWriter, r *http.Request) {
	h.decideTransaction(w, r, h.service.ApproveDeposit)
}

// ApproveWithdrawalHandler applies an admin decision to a pending withdrawal.
func (h *LedgerHandlers) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	h.decideTransaction(w, r, h.service.ApproveWithdrawal)
}

// CreateAccountHandler opens an account for a user. Called by the onboarding
// service over the internal API.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var body createAccountRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.UserID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), body.UserID, body.Currency)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// writeServiceError maps service and store errors to HTTP status codes.
func (h *LedgerHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, store.ErrDuplicateReference),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrBeneficiaryExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrBeneficiaryNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidAdjustment),
		errors.Is(err, app.ErrReasonRequired),
		errors.Is(err, app.ErrBeneficiaryRequired),
		errors.Is(err, app.ErrInvalidCurrency),
		errors.Is(err, app.ErrInvalidBeneficiaryDetails),
		errors.Is(err, store.ErrInvalidBeneficiary):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
