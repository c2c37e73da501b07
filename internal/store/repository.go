/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the ledger-service. By defining an
 * interface, we decouple the application's business logic from the PostgreSQL
 * implementation, making the code more modular and easier to test.
 *
 * The single choke point for balance changes is ApplyMutation: every write that
 * touches an account balance also writes its transaction record inside the same
 * atomic unit, or neither is written. The four approval transitions each pair a
 * pending→terminal status flip with the balance effect that belongs to it.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid, github.com/shopspring/decimal: Identifier and amount types.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vaultpay/ledger-service/internal/domain"
)

// TransactionDraft carries the caller-supplied fields of a transaction record
// about to be written by ApplyMutation. Balances are filled in by the store
// from the row-locked account state, never by the caller.
type TransactionDraft struct {
	Kind           domain.TransactionKind
	Amount         decimal.Decimal
	ReferenceID    string
	Status         domain.TransactionStatus
	Source         domain.TransactionSource
	InitiatedBy    string
	BeneficiaryID  *uuid.UUID
	ProofReference *string
	Description    *string
}

// MutationParams describes one atomic balance change. DeltaBalance and
// DeltaLocked are applied to the available and locked buckets respectively;
// either may be zero (a pending deposit touches neither).
type MutationParams struct {
	UserID       uuid.UUID
	DeltaBalance decimal.Decimal
	DeltaLocked  decimal.Decimal
	Draft        TransactionDraft
}

// Repository defines the set of methods for interacting with the ledger store.
type Repository interface {
	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)

	// Transaction lookups
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetTransactionByReference(ctx context.Context, referenceID string) (*domain.Transaction, error)
	ListPendingTransactions(ctx context.Context, kind domain.TransactionKind) ([]domain.Transaction, error)
	ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error)

	// ApplyMutation applies a balance change and inserts its transaction record
	// as one atomic unit scoped to the account. A change that would drive either
	// bucket negative fails with ErrInsufficientFunds; a reused reference id
	// fails with ErrDuplicateReference. No partial write is ever visible.
	ApplyMutation(ctx context.Context, params MutationParams) (*domain.Transaction, error)

	// Approval transitions. Each flips exactly one pending transaction to its
	// terminal status together with the balance effect of that outcome, in one
	// atomic unit. A transaction that already left pending fails with
	// ErrInvalidTransition, so a double-approval race has exactly one winner.
	//
	// Deposit and withdrawal transitions are deliberately separate methods:
	// rejecting a withdrawal refunds locked funds, rejecting a deposit has no
	// balance to unwind, and sharing the rollback path would invite applying
	// the wrong one.
	CompleteDeposit(ctx context.Context, txID uuid.UUID, approvedBy string) (*domain.Transaction, error)
	RejectDeposit(ctx context.Context, txID uuid.UUID, approvedBy string, reason *string) (*domain.Transaction, error)
	CompleteWithdrawal(ctx context.Context, txID uuid.UUID, approvedBy string) (*domain.Transaction, error)
	RejectWithdrawal(ctx context.Context, txID uuid.UUID, approvedBy string, reason *string) (*domain.Transaction, error)

	// Beneficiary methods
	CreateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error
	GetBeneficiaryByID(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) (*domain.Beneficiary, error)
	ListBeneficiariesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Beneficiary, error)
	ListPendingBeneficiaries(ctx context.Context) ([]domain.Beneficiary, error)
	SetBeneficiaryStatus(ctx context.Context, beneficiaryID uuid.UUID, status domain.BeneficiaryStatus) (*domain.Beneficiary, error)
	DeleteBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) error
	SetDefaultBeneficiary(ctx context.Context, userID uuid.UUID, beneficiaryID uuid.UUID) error

	// Healthcheck reports whether the store is reachable.
	Healthcheck(ctx context.Context) error
}
