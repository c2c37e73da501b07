/**
 * @description
 * This file defines the collaborator ports the ledger service talks to after a
 * mutation commits: the audit trail, user notifications, proof storage, and
 * reference id generation. Each is an interface so transports can be swapped
 * and tests can observe calls.
 *
 * Collaborator failures never fail a committed ledger operation. The service
 * calls them best-effort after commit and logs a warning on error.
 */

package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/ledger-service/internal/domain"
	"go.uber.org/zap"
)

// AuditEntry is one immutable line in the operational audit trail. It records
// who did what to which entity, separate from the ledger itself. Metadata is
// an open key-value bag; keys vary per action and the sink stores them as-is.
type AuditEntry struct {
	Action        string            `json:"action"`
	TransactionID *uuid.UUID        `json:"transaction_id,omitempty"`
	BeneficiaryID *uuid.UUID        `json:"beneficiary_id,omitempty"`
	UserID        uuid.UUID         `json:"user_id"`
	Actor         string            `json:"actor"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	Amount        string            `json:"amount,omitempty"`
	Detail        string            `json:"detail,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// AuditSink receives audit entries for committed ledger operations.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Notification kinds emitted by the service.
const (
	NotifyDepositPending      = "deposit.pending"
	NotifyDepositApproved     = "deposit.approved"
	NotifyDepositRejected     = "deposit.rejected"
	NotifyWithdrawalPending   = "withdrawal.pending"
	NotifyWithdrawalApproved  = "withdrawal.approved"
	NotifyWithdrawalRejected  = "withdrawal.rejected"
	NotifyAdjustmentApplied   = "adjustment.applied"
	NotifyBeneficiaryApproved = "beneficiary.approved"
	NotifyBeneficiaryRejected = "beneficiary.rejected"
)

// Notification is the payload delivered to the user-facing notification
// pipeline after a ledger event.
type Notification struct {
	Kind          string     `json:"kind"`
	UserID        uuid.UUID  `json:"user_id"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	BeneficiaryID *uuid.UUID `json:"beneficiary_id,omitempty"`
	Amount        string     `json:"amount,omitempty"`
	Message       string     `json:"message,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// Notifier delivers notifications about ledger events to users.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// ProofStorage resolves an uploaded proof-of-payment handle into a stable
// reference stored on the transaction record.
type ProofStorage interface {
	Resolve(ctx context.Context, upload string) (string, error)
}

// ReferenceGenerator produces unique transaction reference ids for requests
// that do not supply their own idempotency key.
type ReferenceGenerator interface {
	NewReference() string
}

// NoopAuditSink discards audit entries. Used when no audit transport is
// configured so the service can still run locally.
type NoopAuditSink struct {
	logger *zap.Logger
}

func NewNoopAuditSink(logger *zap.Logger) *NoopAuditSink {
	return &NoopAuditSink{logger: logger}
}

func (s *NoopAuditSink) Record(ctx context.Context, entry AuditEntry) error {
	if s.logger != nil {
		s.logger.Info("audit entry (no sink configured)",
			zap.String("action", entry.Action),
			zap.String("actor", entry.Actor),
			zap.String("user_id", entry.UserID.String()),
		)
	}
	return nil
}

// NoopNotifier discards notifications.
type NoopNotifier struct {
	logger *zap.Logger
}

func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) Notify(ctx context.Context, notification Notification) error {
	if n.logger != nil {
		n.logger.Info("notification (no transport configured)",
			zap.String("kind", notification.Kind),
			zap.String("user_id", notification.UserID.String()),
		)
	}
	return nil
}

// PassthroughProofStorage returns the upload handle unchanged. Used when no
// object storage backend is configured.
type PassthroughProofStorage struct{}

func (PassthroughProofStorage) Resolve(ctx context.Context, upload string) (string, error) {
	return upload, nil
}

func notificationFor(kind string, tx *domain.Transaction, message string) Notification {
	return Notification{
		Kind:          kind,
		UserID:        tx.UserID,
		TransactionID: &tx.ID,
		BeneficiaryID: tx.BeneficiaryID,
		Amount:        tx.Amount.String(),
		Message:       message,
		OccurredAt:    time.Now().UTC(),
	}
}
