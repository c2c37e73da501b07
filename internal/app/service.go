/**
 * @description
 * This file contains the core business logic for the ledger-service. The
 * `Service` struct orchestrates all money movement operations, coordinating
 * between the database repository, proof storage, and the post-commit
 * collaborators (audit trail and notifications).
 *
 * Key features:
 * - Implements the main use cases: admin adjustments, deposit claims and their
 *   approval, withdrawal requests and their approval.
 * - Every balance change flows through the repository's single atomic
 *   mutation path; the service never computes balances itself.
 * - Audit entries and notifications are emitted after commit, best-effort.
 *   A collaborator failure is logged and swallowed; the ledger write stands.
 *
 * @dependencies
 * - context, errors, fmt, strings, time: Standard Go libraries.
 * - github.com/google/uuid, github.com/shopspring/decimal: Identifier and amount types.
 * - go.uber.org/zap: Structured logging.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vaultpay/ledger-service/internal/domain"
	"github.com/vaultpay/ledger-service/internal/store"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a positive decimal")
	ErrInvalidAdjustment   = errors.New("adjustment direction must be credit or debit")
	ErrReasonRequired      = errors.New("a reason is required when rejecting")
	ErrBeneficiaryRequired = errors.New("an approved beneficiary is required for withdrawals")
	ErrRateLimited         = errors.New("too many withdrawal requests")
	ErrInvalidCurrency     = errors.New("currency must be a three letter code")
)

// WithdrawalRateLimiter bounds how often a single user may open withdrawal
// requests inside a rolling window.
type WithdrawalRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the ledger.
type Service struct {
	repo             store.Repository
	audit            AuditSink
	notifier         Notifier
	proofs           ProofStorage
	refs             ReferenceGenerator
	rateLimiter      WithdrawalRateLimiter
	logger           *zap.Logger
	withdrawalLimit  int
	withdrawalWindow time.Duration
	defaultCurrency  string
}

// ServiceOptions bundles the collaborators and tuning knobs for NewService.
type ServiceOptions struct {
	Audit            AuditSink
	Notifier         Notifier
	Proofs           ProofStorage
	Refs             ReferenceGenerator
	RateLimiter      WithdrawalRateLimiter
	Logger           *zap.Logger
	WithdrawalLimit  int
	WithdrawalWindow time.Duration
	DefaultCurrency  string
}

// NewService creates a new ledger service instance. Missing collaborators are
// replaced with no-op fallbacks so a partially configured deployment degrades
// instead of crashing.
func NewService(repo store.Repository, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Audit == nil {
		opts.Audit = NewNoopAuditSink(logger)
	}
	if opts.Notifier == nil {
		opts.Notifier = NewNoopNotifier(logger)
	}
	if opts.Proofs == nil {
		opts.Proofs = PassthroughProofStorage{}
	}
	if opts.Refs == nil {
		opts.Refs = NewULIDReferenceGenerator()
	}
	if opts.WithdrawalLimit <= 0 {
		opts.WithdrawalLimit = 5
	}
	if opts.WithdrawalWindow <= 0 {
		opts.WithdrawalWindow = time.Hour
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	return &Service{
		repo:             repo,
		audit:            opts.Audit,
		notifier:         opts.Notifier,
		proofs:           opts.Proofs,
		refs:             opts.Refs,
		rateLimiter:      opts.RateLimiter,
		logger:           logger,
		withdrawalLimit:  opts.WithdrawalLimit,
		withdrawalWindow: opts.WithdrawalWindow,
		defaultCurrency:  opts.DefaultCurrency,
	}
}

// CreateAccount opens a zero-balance account for a user. An empty currency
// falls back to the service's configured default.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, currency string) (*domain.Account, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}
	account := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		Balance:       decimal.Zero,
		LockedBalance: decimal.Zero,
		Currency:      currency,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("currency", currency),
	)
	return account, nil
}

// GetBalance retrieves the current balance snapshot for a user's account.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return s.repo.GetAccountByUserID(ctx, userID)
}

// Healthcheck reports whether the backing store is reachable.
func (s *Service) Healthcheck(ctx context.Context) error {
	return s.repo.Healthcheck(ctx)
}

// GetTransaction retrieves a single transaction owned by the user.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, store.ErrTransactionNotFound
	}
	return tx, nil
}

// ListTransactions retrieves a user's transaction history.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	return s.repo.ListTransactionsByUserID(ctx, userID, opts)
}

// ListPendingDeposits returns the admin review queue of deposit claims.
func (s *Service) ListPendingDeposits(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListPendingTransactions(ctx, domain.KindCredit)
}

// ListPendingWithdrawals returns the admin review queue of withdrawal requests.
func (s *Service) ListPendingWithdrawals(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListPendingTransactions(ctx, domain.KindDebit)
}

// Adjust applies an immediate admin balance adjustment. Credits add to the
// available balance, debits subtract from it; a debit past zero fails with
// ErrInsufficientFunds from the store. The record completes synchronously.
func (s *Service) Adjust(ctx context.Context, actor string, req domain.AdjustmentRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Kind != domain.KindCredit && req.Kind != domain.KindDebit {
		return nil, ErrInvalidAdjustment
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, ErrReasonRequired
	}

	delta := req.Amount
	if req.Kind == domain.KindDebit {
		delta = req.Amount.Neg()
	}
	reference := s.referenceOr(req.ReferenceID)
	description := fmt.Sprintf("adjustment (%s): %s", req.Kind, strings.TrimSpace(req.Reason))

	record, err := s.repo.ApplyMutation(ctx, store.MutationParams{
		UserID:       req.UserID,
		DeltaBalance: delta,
		DeltaLocked:  decimal.Zero,
		Draft: store.TransactionDraft{
			Kind:        domain.KindAdjustment,
			Amount:      req.Amount,
			ReferenceID: reference,
			Status:      domain.StatusCompleted,
			Source:      domain.SourceAdmin,
			InitiatedBy: actor,
			Description: &description,
		},
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, "adjustment.applied", record, actor, NotifyAdjustmentApplied,
		fmt.Sprintf("An adjustment of %s was applied to your account.", record.Amount))
	return record, nil
}

// Deposit records a user's claim that money was sent to the platform. No
// balance moves until an admin approves; the pending record carries a
// projection of the balance approval would produce.
func (s *Service) Deposit(ctx context.Context, req domain.DepositRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var proofRef *string
	if strings.TrimSpace(req.ProofUpload) != "" {
		resolved, err := s.proofs.Resolve(ctx, req.ProofUpload)
		if err != nil {
			return nil, fmt.Errorf("failed to store proof of payment: %w", err)
		}
		proofRef = &resolved
	}

	reference := s.referenceOr(req.ReferenceID)
	var description *string
	if strings.TrimSpace(req.Description) != "" {
		d := strings.TrimSpace(req.Description)
		description = &d
	}

	record, err := s.repo.ApplyMutation(ctx, store.MutationParams{
		UserID:       req.UserID,
		DeltaBalance: decimal.Zero,
		DeltaLocked:  decimal.Zero,
		Draft: store.TransactionDraft{
			Kind:           domain.KindCredit,
			Amount:         req.Amount,
			ReferenceID:    reference,
			Status:         domain.StatusPending,
			Source:         domain.SourceUser,
			InitiatedBy:    req.UserID.String(),
			ProofReference: proofRef,
			Description:    description,
		},
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, "deposit.requested", record, req.UserID.String(), NotifyDepositPending,
		fmt.Sprintf("Your deposit of %s is awaiting review.", record.Amount))
	return record, nil
}

// ApproveDeposit resolves a pending deposit claim. Approval credits the
// account; rejection requires a reason and leaves balances untouched. Either
// way the transition happens exactly once.
func (s *Service) ApproveDeposit(ctx context.Context, txID uuid.UUID, approver string, decision domain.ApprovalDecision) (*domain.Transaction, error) {
	if decision.Approve {
		record, err := s.repo.CompleteDeposit(ctx, txID, approver)
		if err != nil {
			return nil, err
		}
		s.afterCommit(ctx, "deposit.approved", record, approver, NotifyDepositApproved,
			fmt.Sprintf("Your deposit of %s was approved.", record.Amount))
		return record, nil
	}

	if decision.Reason == nil || strings.TrimSpace(*decision.Reason) == "" {
		return nil, ErrReasonRequired
	}
	record, err := s.repo.RejectDeposit(ctx, txID, approver, decision.Reason)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, "deposit.rejected", record, approver, NotifyDepositRejected,
		fmt.Sprintf("Your deposit of %s was rejected.", record.Amount))
	return record, nil
}

// RequestWithdrawal opens a withdrawal request against an approved
// beneficiary. The amount moves from the available to the locked bucket
// immediately, so concurrent requests cannot promise the same funds twice.
func (s *Service) RequestWithdrawal(ctx context.Context, req domain.WithdrawalRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	beneficiary, err := s.resolveWithdrawalBeneficiary(ctx, req.UserID, req.BeneficiaryID)
	if err != nil {
		return nil, err
	}

	if err := s.consumeWithdrawalBudget(ctx, req.UserID); err != nil {
		return nil, err
	}

	reference := s.referenceOr(req.ReferenceID)
	var description *string
	if strings.TrimSpace(req.Description) != "" {
		d := strings.TrimSpace(req.Description)
		description = &d
	}

	record, err := s.repo.ApplyMutation(ctx, store.MutationParams{
		UserID:       req.UserID,
		DeltaBalance: req.Amount.Neg(),
		DeltaLocked:  req.Amount,
		Draft: store.TransactionDraft{
			Kind:          domain.KindDebit,
			Amount:        req.Amount,
			ReferenceID:   reference,
			Status:        domain.StatusPending,
			Source:        domain.SourceUser,
			InitiatedBy:   req.UserID.String(),
			BeneficiaryID: &beneficiary.ID,
			Description:   description,
		},
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, "withdrawal.requested", record, req.UserID.String(), NotifyWithdrawalPending,
		fmt.Sprintf("Your withdrawal of %s is awaiting review.", record.Amount))
	return record, nil
}

// ApproveWithdrawal resolves a pending withdrawal. Approval releases the
// locked funds out of the system; rejection refunds them to the available
// balance. Rejection requires a reason.
func (s *Service) ApproveWithdrawal(ctx context.Context, txID uuid.UUID, approver string, decision domain.ApprovalDecision) (*domain.Transaction, error) {
	if decision.Approve {
		record, err := s.repo.CompleteWithdrawal(ctx, txID, approver)
		if err != nil {
			return nil, err
		}
		s.afterCommit(ctx, "withdrawal.approved", record, approver, NotifyWithdrawalApproved,
			fmt.Sprintf("Your withdrawal of %s was approved.", record.Amount))
		return record, nil
	}

	if decision.Reason == nil || strings.TrimSpace(*decision.Reason) == "" {
		return nil, ErrReasonRequired
	}
	record, err := s.repo.RejectWithdrawal(ctx, txID, approver, decision.Reason)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, "withdrawal.rejected", record, approver, NotifyWithdrawalRejected,
		fmt.Sprintf("Your withdrawal of %s was rejected and the funds returned.", record.Amount))
	return record, nil
}

func (s *Service) resolveWithdrawalBeneficiary(ctx context.Context, userID uuid.UUID, beneficiaryID *uuid.UUID) (*domain.Beneficiary, error) {
	if beneficiaryID != nil {
		beneficiary, err := s.repo.GetBeneficiaryByID(ctx, *beneficiaryID, userID)
		if err != nil {
			return nil, err
		}
		if beneficiary.Status != domain.BeneficiaryApproved {
			return nil, store.ErrInvalidBeneficiary
		}
		return beneficiary, nil
	}

	beneficiaries, err := s.repo.ListBeneficiariesByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range beneficiaries {
		if beneficiaries[i].IsDefault && beneficiaries[i].Status == domain.BeneficiaryApproved {
			return &beneficiaries[i], nil
		}
	}
	return nil, ErrBeneficiaryRequired
}

func (s *Service) consumeWithdrawalBudget(ctx context.Context, userID uuid.UUID) error {
	if s.rateLimiter == nil {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "withdrawal", userID.String(), s.withdrawalLimit, s.withdrawalWindow)
	if err != nil {
		s.logger.Warn("withdrawal rate limiter unavailable, allowing request",
			zap.String("user_id", userID.String()), zap.Error(err))
		return nil
	}
	if count > s.withdrawalLimit {
		s.logger.Info("withdrawal rate limit hit",
			zap.String("user_id", userID.String()),
			zap.Int("count", count),
			zap.Int("retry_after_seconds", retryAfter),
		)
		return ErrRateLimited
	}
	return nil
}

func (s *Service) referenceOr(supplied string) string {
	if trimmed := strings.TrimSpace(supplied); trimmed != "" {
		return trimmed
	}
	return s.refs.NewReference()
}

// afterCommit emits the audit entry and user notification for a committed
// ledger operation. Failures here are warnings; the ledger write already
// happened and must not be reported as failed.
func (s *Service) afterCommit(ctx context.Context, action string, tx *domain.Transaction, actor string, notifyKind string, message string) {
	entry := AuditEntry{
		Action:        action,
		TransactionID: &tx.ID,
		UserID:        tx.UserID,
		Actor:         actor,
		ReferenceID:   tx.ReferenceID,
		Amount:        tx.Amount.String(),
		Metadata: map[string]string{
			"kind":           string(tx.Kind),
			"status":         string(tx.Status),
			"before_balance": tx.BeforeBalance.String(),
			"after_balance":  tx.AfterBalance.String(),
		},
		OccurredAt: time.Now().UTC(),
	}
	if tx.Description != nil {
		entry.Detail = *tx.Description
	}
	if tx.BeneficiaryID != nil {
		entry.Metadata["beneficiary_id"] = tx.BeneficiaryID.String()
	}
	if tx.ProofReference != nil {
		entry.Metadata["proof_reference"] = *tx.ProofReference
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("action", action),
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err),
		)
	}
	if err := s.notifier.Notify(ctx, notificationFor(notifyKind, tx, message)); err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.String("kind", notifyKind),
			zap.String("user_id", tx.UserID.String()),
			zap.Error(err),
		)
	}
}
