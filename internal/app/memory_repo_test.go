package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vaultpay/ledger-service/internal/domain"
	"github.com/vaultpay/ledger-service/internal/store"
)

// memoryRepo is an in-memory store.Repository with the same invariant
// semantics as the Postgres implementation: atomic mutations, non-negative
// buckets, unique reference ids, and one-shot status transitions. A single
// mutex stands in for the per-account row locks.
type memoryRepo struct {
	mu            sync.Mutex
	accounts      map[uuid.UUID]*domain.Account // keyed by user id
	transactions  map[uuid.UUID]*domain.Transaction
	beneficiaries map[uuid.UUID]*domain.Beneficiary
	healthErr     error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts:      make(map[uuid.UUID]*domain.Account),
		transactions:  make(map[uuid.UUID]*domain.Transaction),
		beneficiaries: make(map[uuid.UUID]*domain.Beneficiary),
	}
}

func (m *memoryRepo) seedAccount(userID uuid.UUID, balance string) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		Balance:       decimal.RequireFromString(balance),
		LockedBalance: decimal.Zero,
		Currency:      "USD",
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	m.accounts[userID] = account
	return account
}

func (m *memoryRepo) seedBeneficiary(userID uuid.UUID, status domain.BeneficiaryStatus, isDefault bool) *domain.Beneficiary {
	m.mu.Lock()
	defer m.mu.Unlock()
	beneficiary := &domain.Beneficiary{
		ID:                uuid.New(),
		UserID:            userID,
		AccountHolderName: "Pat Example",
		BankIdentifier:    "first-bank",
		AccountNumber:     uuid.NewString(),
		Status:            status,
		IsDefault:         isDefault,
	}
	m.beneficiaries[beneficiary.ID] = beneficiary
	return beneficiary
}

// rejectWithReason mirrors the store's description handling on rejection: the
// reason is appended to any existing description, never replacing it.
func rejectWithReason(tx *domain.Transaction, reason *string) {
	if reason == nil || strings.TrimSpace(*reason) == "" {
		return
	}
	note := "rejected: " + strings.TrimSpace(*reason)
	if tx.Description != nil && strings.TrimSpace(*tx.Description) != "" {
		note = strings.TrimSpace(*tx.Description) + "; " + note
	}
	tx.Description = &note
}

func copyTransaction(tx *domain.Transaction) *domain.Transaction {
	clone := *tx
	return &clone
}

func copyAccount(account *domain.Account) *domain.Account {
	clone := *account
	return &clone
}

func copyBeneficiary(beneficiary *domain.Beneficiary) *domain.Beneficiary {
	clone := *beneficiary
	return &clone
}

func (m *memoryRepo) CreateAccount(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	m.accounts[account.UserID] = copyAccount(account)
	return nil
}

func (m *memoryRepo) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (m *memoryRepo) GetTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

func (m *memoryRepo) GetTransactionByReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.ReferenceID == referenceID {
			return copyTransaction(tx), nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (m *memoryRepo) ListPendingTransactions(ctx context.Context, kind domain.TransactionKind) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range m.transactions {
		if tx.Status == domain.StatusPending && tx.Kind == kind {
			out = append(out, *copyTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range m.transactions {
		if tx.UserID != userID {
			continue
		}
		if opts.Kind != "" && tx.Kind != opts.Kind {
			continue
		}
		if opts.Status != "" && tx.Status != opts.Status {
			continue
		}
		out = append(out, *copyTransaction(tx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) ApplyMutation(ctx context.Context, params store.MutationParams) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[params.UserID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	for _, tx := range m.transactions {
		if tx.ReferenceID == params.Draft.ReferenceID {
			return nil, store.ErrDuplicateReference
		}
	}

	newBalance := account.Balance.Add(params.DeltaBalance)
	newLocked := account.LockedBalance.Add(params.DeltaLocked)
	if newBalance.IsNegative() || newLocked.IsNegative() {
		return nil, store.ErrInsufficientFunds
	}

	before := account.Balance
	after := newBalance
	if params.Draft.Status == domain.StatusPending && params.Draft.Kind == domain.KindCredit {
		after = before.Add(params.Draft.Amount)
	}

	record := &domain.Transaction{
		ID:             uuid.New(),
		AccountID:      account.ID,
		UserID:         account.UserID,
		Kind:           params.Draft.Kind,
		Amount:         params.Draft.Amount,
		BeforeBalance:  before,
		AfterBalance:   after,
		ReferenceID:    params.Draft.ReferenceID,
		Status:         params.Draft.Status,
		Source:         params.Draft.Source,
		InitiatedBy:    params.Draft.InitiatedBy,
		BeneficiaryID:  params.Draft.BeneficiaryID,
		ProofReference: params.Draft.ProofReference,
		Description:    params.Draft.Description,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	m.transactions[record.ID] = record
	account.Balance = newBalance
	account.LockedBalance = newLocked
	return copyTransaction(record), nil
}

func (m *memoryRepo) CompleteDeposit(ctx context.Context, txID uuid.UUID, approvedBy string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[txID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	if tx.Kind != domain.KindCredit || tx.Status != domain.StatusPending {
		return nil, store.ErrInvalidTransition
	}
	account := m.accounts[tx.UserID]

	tx.BeforeBalance = account.Balance
	tx.AfterBalance = account.Balance.Add(tx.Amount)
	tx.Status = domain.StatusCompleted
	account.Balance = tx.AfterBalance
	return copyTransaction(tx), nil
}

func (m *memoryRepo) RejectDeposit(ctx context.Context, txID uuid.UUID, approvedBy string, reason *string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[txID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	if tx.Kind != domain.KindCredit || tx.Status != domain.StatusPending {
		return nil, store.ErrInvalidTransition
	}
	tx.Status = domain.StatusFailed
	rejectWithReason(tx, reason)
	return copyTransaction(tx), nil
}

func (m *memoryRepo) CompleteWithdrawal(ctx context.Context, txID uuid.UUID, approvedBy string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[txID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	if tx.Kind != domain.KindDebit || tx.Status != domain.StatusPending {
		return nil, store.ErrInvalidTransition
	}
	account := m.accounts[tx.UserID]
	newLocked := account.LockedBalance.Sub(tx.Amount)
	if newLocked.IsNegative() {
		return nil, store.ErrInsufficientFunds
	}
	account.LockedBalance = newLocked
	tx.Status = domain.StatusCompleted
	return copyTransaction(tx), nil
}

func (m *memoryRepo) RejectWithdrawal(ctx context.Context, txID uuid.UUID, approvedBy string, reason *string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[txID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	if tx.Kind != domain.KindDebit || tx.Status != domain.StatusPending {
		return nil, store.ErrInvalidTransition
	}
	account := m.accounts[tx.UserID]
	newLocked := account.LockedBalance.Sub(tx.Amount)
	if newLocked.IsNegative() {
		return nil, store.ErrInsufficientFunds
	}
	account.LockedBalance = newLocked
	account.Balance = account.Balance.Add(tx.Amount)
	tx.Status = domain.StatusFailed
	rejectWithReason(tx, reason)
	return copyTransaction(tx), nil
}

func (m *memoryRepo) CreateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.beneficiaries {
		if existing.UserID == beneficiary.UserID && existing.AccountNumber == beneficiary.AccountNumber {
			return store.ErrBeneficiaryExists
		}
	}
	beneficiary.CreatedAt = time.Now().UTC()
	beneficiary.UpdatedAt = beneficiary.CreatedAt
	m.beneficiaries[beneficiary.ID] = copyBeneficiary(beneficiary)
	return nil
}

func (m *memoryRepo) GetBeneficiaryByID(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) (*domain.Beneficiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	beneficiary, ok := m.beneficiaries[beneficiaryID]
	if !ok || beneficiary.UserID != userID {
		return nil, store.ErrBeneficiaryNotFound
	}
	return copyBeneficiary(beneficiary), nil
}

func (m *memoryRepo) ListBeneficiariesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Beneficiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Beneficiary
	for _, beneficiary := range m.beneficiaries {
		if beneficiary.UserID == userID {
			out = append(out, *copyBeneficiary(beneficiary))
		}
	}
	return out, nil
}

func (m *memoryRepo) ListPendingBeneficiaries(ctx context.Context) ([]domain.Beneficiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Beneficiary
	for _, beneficiary := range m.beneficiaries {
		if beneficiary.Status == domain.BeneficiaryPending {
			out = append(out, *copyBeneficiary(beneficiary))
		}
	}
	return out, nil
}

func (m *memoryRepo) SetBeneficiaryStatus(ctx context.Context, beneficiaryID uuid.UUID, status domain.BeneficiaryStatus) (*domain.Beneficiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	beneficiary, ok := m.beneficiaries[beneficiaryID]
	if !ok {
		return nil, store.ErrBeneficiaryNotFound
	}
	if beneficiary.Status != domain.BeneficiaryPending {
		return nil, store.ErrInvalidTransition
	}
	beneficiary.Status = status
	return copyBeneficiary(beneficiary), nil
}

func (m *memoryRepo) DeleteBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	beneficiary, ok := m.beneficiaries[beneficiaryID]
	if !ok || beneficiary.UserID != userID {
		return store.ErrBeneficiaryNotFound
	}
	if beneficiary.Status == domain.BeneficiaryApproved {
		return store.ErrInvalidTransition
	}
	for _, tx := range m.transactions {
		if tx.BeneficiaryID != nil && *tx.BeneficiaryID == beneficiaryID && tx.Status == domain.StatusPending {
			return store.ErrInvalidTransition
		}
	}
	delete(m.beneficiaries, beneficiaryID)
	return nil
}

func (m *memoryRepo) SetDefaultBeneficiary(ctx context.Context, userID uuid.UUID, beneficiaryID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.beneficiaries[beneficiaryID]
	if !ok || target.UserID != userID || target.Status != domain.BeneficiaryApproved {
		return store.ErrBeneficiaryNotFound
	}
	for _, beneficiary := range m.beneficiaries {
		if beneficiary.UserID == userID {
			beneficiary.IsDefault = false
		}
	}
	target.IsDefault = true
	return nil
}

func (m *memoryRepo) Healthcheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

// totalHeld reports the sum of every account's buckets, for conservation checks.
func (m *memoryRepo) totalHeld() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, account := range m.accounts {
		total = total.Add(account.Balance).Add(account.LockedBalance)
	}
	return total
}
