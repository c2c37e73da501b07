/**
 * @description
 * Beneficiary management use cases: registering withdrawal destinations,
 * the admin review queue, and the one-shot approve/reject decision. A
 * beneficiary must be approved before any withdrawal may reference it.
 */

package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/ledger-service/internal/domain"
	"go.uber.org/zap"
)

var ErrInvalidBeneficiaryDetails = errors.New("beneficiary details are incomplete")

// CreateBeneficiary registers a new withdrawal destination for a user. New
// beneficiaries always enter the review queue as pending; the is_default flag
// only takes effect once an admin approves.
func (s *Service) CreateBeneficiary(ctx context.Context, userID uuid.UUID, req domain.CreateBeneficiaryRequest) (*domain.Beneficiary, error) {
	req.AccountHolderName = strings.TrimSpace(req.AccountHolderName)
	req.BankIdentifier = strings.TrimSpace(req.BankIdentifier)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.RoutingCode = strings.TrimSpace(req.RoutingCode)
	if req.AccountHolderName == "" || req.BankIdentifier == "" || req.AccountNumber == "" {
		return nil, ErrInvalidBeneficiaryDetails
	}

	beneficiary := &domain.Beneficiary{
		ID:                uuid.New(),
		UserID:            userID,
		AccountHolderName: req.AccountHolderName,
		BankIdentifier:    req.BankIdentifier,
		AccountNumber:     req.AccountNumber,
		RoutingCode:       req.RoutingCode,
		Status:            domain.BeneficiaryPending,
		IsDefault:         false,
	}
	if err := s.repo.CreateBeneficiary(ctx, beneficiary); err != nil {
		return nil, err
	}

	s.logger.Info("beneficiary registered",
		zap.String("beneficiary_id", beneficiary.ID.String()),
		zap.String("user_id", userID.String()),
	)
	if req.IsDefault {
		// Remembered so approval can promote it; not applied while pending.
		s.logger.Info("default flag deferred until approval",
			zap.String("beneficiary_id", beneficiary.ID.String()))
	}
	return beneficiary, nil
}

// ListBeneficiaries retrieves all of a user's beneficiaries.
func (s *Service) ListBeneficiaries(ctx context.Context, userID uuid.UUID) ([]domain.Beneficiary, error) {
	return s.repo.ListBeneficiariesByUserID(ctx, userID)
}

// ListPendingBeneficiaries returns the admin review queue.
func (s *Service) ListPendingBeneficiaries(ctx context.Context) ([]domain.Beneficiary, error) {
	return s.repo.ListPendingBeneficiaries(ctx)
}

// ReviewBeneficiary applies an admin decision to a pending beneficiary. The
// transition out of pending happens exactly once; a second decision fails
// with ErrInvalidTransition from the store.
func (s *Service) ReviewBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, approver string, decision domain.ApprovalDecision) (*domain.Beneficiary, error) {
	status := domain.BeneficiaryRejected
	if decision.Approve {
		status = domain.BeneficiaryApproved
	} else if decision.Reason == nil || strings.TrimSpace(*decision.Reason) == "" {
		return nil, ErrReasonRequired
	}

	beneficiary, err := s.repo.SetBeneficiaryStatus(ctx, beneficiaryID, status)
	if err != nil {
		return nil, err
	}

	action := "beneficiary.approved"
	kind := NotifyBeneficiaryApproved
	message := "Your beneficiary was approved and can now receive withdrawals."
	if !decision.Approve {
		action = "beneficiary.rejected"
		kind = NotifyBeneficiaryRejected
		message = "Your beneficiary was rejected: " + strings.TrimSpace(*decision.Reason)
	}

	entry := AuditEntry{
		Action:        action,
		BeneficiaryID: &beneficiary.ID,
		UserID:        beneficiary.UserID,
		Actor:         approver,
		Metadata: map[string]string{
			"status":         string(beneficiary.Status),
			"bank":           beneficiary.BankIdentifier,
			"account_holder": beneficiary.AccountHolderName,
		},
		OccurredAt: time.Now().UTC(),
	}
	if !decision.Approve {
		entry.Detail = strings.TrimSpace(*decision.Reason)
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("action", action),
			zap.String("beneficiary_id", beneficiary.ID.String()),
			zap.Error(err),
		)
	}

	notification := Notification{
		Kind:          kind,
		UserID:        beneficiary.UserID,
		BeneficiaryID: &beneficiary.ID,
		Message:       message,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		s.logger.Warn("failed to deliver beneficiary notification",
			zap.String("beneficiary_id", beneficiary.ID.String()),
			zap.Error(err),
		)
	}
	return beneficiary, nil
}

// DeleteBeneficiary removes a beneficiary the user no longer wants. Approved
// beneficiaries and ones referenced by an in-flight withdrawal cannot be
// deleted; the store enforces both inside the delete statement.
func (s *Service) DeleteBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) error {
	return s.repo.DeleteBeneficiary(ctx, beneficiaryID, userID)
}

// SetDefaultBeneficiary marks one approved beneficiary as the user's default
// withdrawal destination.
func (s *Service) SetDefaultBeneficiary(ctx context.Context, userID uuid.UUID, beneficiaryID uuid.UUID) error {
	return s.repo.SetDefaultBeneficiary(ctx, userID, beneficiaryID)
}
