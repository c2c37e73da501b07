/**
 * @description
 * This file defines the core domain models for the ledger-service. These structs
 * represent the main entities and data transfer objects (DTOs) used throughout the
 * service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests and database models ensures clear
 *   separation of concerns and type safety.
 * - Amounts and balances are `decimal.Decimal` values; the database stores them
 *   as NUMERIC and they are never handled as floats.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger movement.
type TransactionKind string

const (
	KindCredit     TransactionKind = "credit"
	KindDebit      TransactionKind = "debit"
	KindAdjustment TransactionKind = "adjustment"
)

// TransactionStatus is the lifecycle state of a transaction. A transaction is
// created pending (or directly completed for synchronous adjustments) and
// transitions to completed or failed exactly once.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// TransactionSource identifies who initiated a ledger movement.
type TransactionSource string

const (
	SourceSystem TransactionSource = "system"
	SourceAdmin  TransactionSource = "admin"
	SourceUser   TransactionSource = "user"
)

// Transaction is the central append-only ledger record for any money movement.
// Once Status leaves pending the row is immutable.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	AccountID      uuid.UUID         `json:"account_id"`
	UserID         uuid.UUID         `json:"user_id"`
	Kind           TransactionKind   `json:"kind"`
	Amount         decimal.Decimal   `json:"amount"`
	BeforeBalance  decimal.Decimal   `json:"before_balance"`
	AfterBalance   decimal.Decimal   `json:"after_balance"`
	ReferenceID    string            `json:"reference_id"`
	Status         TransactionStatus `json:"status"`
	Source         TransactionSource `json:"source"`
	InitiatedBy    string            `json:"initiated_by"`
	BeneficiaryID  *uuid.UUID        `json:"beneficiary_id,omitempty"`
	ProofReference *string           `json:"proof_reference,omitempty"`
	Description    *string           `json:"description,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Terminal reports whether the transaction has left the pending state.
func (t *Transaction) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// AdjustmentRequest is the DTO for an immediate admin balance adjustment.
type AdjustmentRequest struct {
	UserID      uuid.UUID       `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        TransactionKind `json:"kind"`
	Reason      string          `json:"reason"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

// DepositRequest is the DTO for a user deposit claim awaiting admin review.
type DepositRequest struct {
	UserID      uuid.UUID       `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	ProofUpload string          `json:"proof_upload,omitempty"`
	Description string          `json:"description,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

// WithdrawalRequest is the DTO for a user withdrawal. Funds are moved to the
// locked bucket the moment the request is accepted.
type WithdrawalRequest struct {
	UserID        uuid.UUID       `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	BeneficiaryID *uuid.UUID      `json:"beneficiary_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
}

// ApprovalDecision is the DTO for an admin approving or rejecting a pending
// transaction or beneficiary.
type ApprovalDecision struct {
	Approve bool    `json:"approve"`
	Reason  *string `json:"reason,omitempty"`
}

// TransactionListOptions controls pagination and filtering for history queries.
type TransactionListOptions struct {
	Limit  int
	Offset int
	Kind   TransactionKind
	Status TransactionStatus
}
