/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed to persist accounts, transactions, and
 * beneficiaries, and it is the enforcement point for the ledger invariants:
 * non-negative balance buckets, unique reference ids, and one-shot status
 * transitions.
 *
 * Concurrency model: every balance-touching operation row-locks the account
 * with SELECT ... FOR UPDATE inside a single database transaction, so two
 * mutations against the same account serialize while mutations against
 * different accounts proceed independently. Approval transitions additionally
 * guard their status flip with `WHERE status = 'pending'`, which is what makes
 * a double-approval race resolve to exactly one winner.
 *
 * @dependencies
 * - context, errors, fmt, strings, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: NUMERIC values travel as text, never floats.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/vaultpay/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBeneficiaryNotFound = errors.New("beneficiary not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateReference  = errors.New("duplicate transaction reference")
	ErrInvalidTransition   = errors.New("status transition not permitted")
	ErrInvalidBeneficiary  = errors.New("beneficiary is not approved")
	ErrBeneficiaryExists   = errors.New("beneficiary account number already registered")
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transactionColumns = `id, account_id, user_id, kind, amount::text, before_balance::text,
	after_balance::text, reference_id, status, source, initiated_by, beneficiary_id,
	proof_reference, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx                    domain.Transaction
		kind, status, source  string
		amount, before, after string
	)
	err := row.Scan(
		&tx.ID, &tx.AccountID, &tx.UserID, &kind, &amount, &before, &after,
		&tx.ReferenceID, &status, &source, &tx.InitiatedBy, &tx.BeneficiaryID,
		&tx.ProofReference, &tx.Description, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount in ledger row: %w", err)
	}
	if tx.BeforeBalance, err = decimal.NewFromString(before); err != nil {
		return nil, fmt.Errorf("invalid before_balance in ledger row: %w", err)
	}
	if tx.AfterBalance, err = decimal.NewFromString(after); err != nil {
		return nil, fmt.Errorf("invalid after_balance in ledger row: %w", err)
	}
	tx.Kind = domain.TransactionKind(kind)
	tx.Status = domain.TransactionStatus(status)
	tx.Source = domain.TransactionSource(source)
	return &tx, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || strings.Contains(pgErr.ConstraintName, constraint)
}

// CreateAccount inserts a new account row. One account per user; a second
// insert for the same user fails on the unique index.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, balance, locked_balance, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		account.ID,
		account.UserID,
		account.Balance.String(),
		account.LockedBalance.String(),
		account.Currency,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByUserID retrieves a user's account. Missing accounts are an error,
// never silently created.
func (r *PostgresRepository) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, user_id, balance::text, locked_balance::text, currency, created_at, updated_at
		FROM accounts WHERE user_id = $1
	`
	return scanAccount(r.db.QueryRow(ctx, query, userID))
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		account         domain.Account
		balance, locked string
	)
	err := row.Scan(&account.ID, &account.UserID, &balance, &locked,
		&account.Currency, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if account.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("invalid balance in account row: %w", err)
	}
	if account.LockedBalance, err = decimal.NewFromString(locked); err != nil {
		return nil, fmt.Errorf("invalid locked_balance in account row: %w", err)
	}
	return &account, nil
}

// lockAccount reads an account under FOR UPDATE inside an open transaction.
// This is the per-account serialization point: the row lock is held until the
// surrounding transaction commits or rolls back.
func lockAccount(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, user_id, balance::text, locked_balance::text, currency, created_at, updated_at
		FROM accounts WHERE user_id = $1 FOR UPDATE
	`
	return scanAccount(tx.QueryRow(ctx, query, userID))
}

func lockAccountByID(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, user_id, balance::text, locked_balance::text, currency, created_at, updated_at
		FROM accounts WHERE id = $1 FOR UPDATE
	`
	return scanAccount(tx.QueryRow(ctx, query, accountID))
}

func updateAccountBuckets(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance, locked decimal.Decimal) error {
	result, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1, locked_balance = $2, updated_at = NOW() WHERE id = $3`,
		balance.String(), locked.String(), accountID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GetTransactionByID retrieves a single transaction by its primary id.
func (r *PostgresRepository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// GetTransactionByReference retrieves a transaction by its idempotency key.
func (r *PostgresRepository) GetTransactionByReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference_id = $1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, referenceID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListPendingTransactions returns all pending transactions of one kind, oldest
// first, for the admin review queue.
func (r *PostgresRepository) ListPendingTransactions(ctx context.Context, kind domain.TransactionKind) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'pending' AND kind = $1
		ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// ListTransactionsByUserID retrieves a user's transaction history, newest first.
func (r *PostgresRepository) ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []any{userID}
	if opts.Kind != "" {
		args = append(args, string(opts.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, opts.Limit, opts.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// ApplyMutation applies one balance change and writes its transaction record as
// a single atomic unit. The before/after balances are captured from the locked
// account state at this moment, not recomputed later. For a pending credit the
// delta is zero, so the after balance is a projection of what approval will
// credit; the completion path recomputes it against live state.
func (r *PostgresRepository) ApplyMutation(ctx context.Context, params MutationParams) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	account, err := lockAccount(ctx, dbtx, params.UserID)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(params.DeltaBalance)
	newLocked := account.LockedBalance.Add(params.DeltaLocked)
	if newBalance.IsNegative() || newLocked.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	before := account.Balance
	after := newBalance
	if params.Draft.Status == domain.StatusPending && params.Draft.Kind == domain.KindCredit {
		after = before.Add(params.Draft.Amount)
	}

	record, err := insertTransaction(ctx, dbtx, account, params.Draft, before, after)
	if err != nil {
		return nil, err
	}

	if !params.DeltaBalance.IsZero() || !params.DeltaLocked.IsZero() {
		if err := updateAccountBuckets(ctx, dbtx, account.ID, newBalance, newLocked); err != nil {
			return nil, err
		}
	}

	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func insertTransaction(ctx context.Context, dbtx pgx.Tx, account *domain.Account, draft TransactionDraft, before, after decimal.Decimal) (*domain.Transaction, error) {
	record := &domain.Transaction{
		ID:             uuid.New(),
		AccountID:      account.ID,
		UserID:         account.UserID,
		Kind:           draft.Kind,
		Amount:         draft.Amount,
		BeforeBalance:  before,
		AfterBalance:   after,
		ReferenceID:    draft.ReferenceID,
		Status:         draft.Status,
		Source:         draft.Source,
		InitiatedBy:    draft.InitiatedBy,
		BeneficiaryID:  draft.BeneficiaryID,
		ProofReference: draft.ProofReference,
		Description:    draft.Description,
	}

	query := `
		INSERT INTO transactions (
			id, account_id, user_id, kind, amount, before_balance, after_balance,
			reference_id, status, source, initiated_by, beneficiary_id, proof_reference, description
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	err := dbtx.QueryRow(ctx, query,
		record.ID,
		record.AccountID,
		record.UserID,
		string(record.Kind),
		record.Amount.String(),
		record.BeforeBalance.String(),
		record.AfterBalance.String(),
		record.ReferenceID,
		string(record.Status),
		string(record.Source),
		record.InitiatedBy,
		record.BeneficiaryID,
		record.ProofReference,
		record.Description,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "reference") {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}
	return record, nil
}

// lockPendingTransaction reads a transaction under FOR UPDATE and verifies it is
// still pending and of the expected kind. Locking the transaction row before the
// account row keeps lock ordering consistent across all transition methods.
func lockPendingTransaction(ctx context.Context, dbtx pgx.Tx, txID uuid.UUID, kind domain.TransactionKind) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	record, err := scanTransaction(dbtx.QueryRow(ctx, query, txID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if record.Kind != kind {
		return nil, ErrInvalidTransition
	}
	if record.Status != domain.StatusPending {
		return nil, ErrInvalidTransition
	}
	return record, nil
}

// finalizeTransaction flips a pending transaction to its terminal status. The
// status guard in the WHERE clause is the last line of defense against a
// concurrent approval that slipped past the row lock.
func finalizeTransaction(ctx context.Context, dbtx pgx.Tx, txID uuid.UUID, status domain.TransactionStatus, before, after *decimal.Decimal, description *string) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    before_balance = COALESCE($3, before_balance),
		    after_balance = COALESCE($4, after_balance),
		    description = COALESCE($5, description),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	var beforeArg, afterArg any
	if before != nil {
		beforeArg = before.String()
	}
	if after != nil {
		afterArg = after.String()
	}
	result, err := dbtx.Exec(ctx, query, txID, string(status), beforeArg, afterArg, description)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func appendReason(record *domain.Transaction, reason *string) *string {
	if reason == nil || strings.TrimSpace(*reason) == "" {
		return record.Description
	}
	note := "rejected: " + strings.TrimSpace(*reason)
	if record.Description != nil && strings.TrimSpace(*record.Description) != "" {
		note = strings.TrimSpace(*record.Description) + "; " + note
	}
	return &note
}

// CompleteDeposit credits the account and completes a pending deposit. The
// before/after balances are recomputed from the live, row-locked balance, not
// taken from the projection stored at request time.
func (r *PostgresRepository) CompleteDeposit(ctx context.Context, txID uuid.UUID, approvedBy string) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	record, err := lockPendingTransaction(ctx, dbtx, txID, domain.KindCredit)
	if err != nil {
		return nil, err
	}
	account, err := lockAccountByID(ctx, dbtx, record.AccountID)
	if err != nil {
		return nil, err
	}

	before := account.Balance
	after := before.Add(record.Amount)

	if err := finalizeTransaction(ctx, dbtx, record.ID, domain.StatusCompleted, &before, &after, nil); err != nil {
		return nil, err
	}
	if err := updateAccountBuckets(ctx, dbtx, account.ID, after, account.LockedBalance); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}

	record.Status = domain.StatusCompleted
	record.BeforeBalance = before
	record.AfterBalance = after
	return record, nil
}

// RejectDeposit fails a pending deposit. There is no balance to unwind: the
// request never touched the account.
func (r *PostgresRepository) RejectDeposit(ctx context.Context, txID uuid.UUID, approvedBy string, reason *string) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	record, err := lockPendingTransaction(ctx, dbtx, txID, domain.KindCredit)
	if err != nil {
		return nil, err
	}

	description := appendReason(record, reason)
	if err := finalizeTransaction(ctx, dbtx, record.ID, domain.StatusFailed, nil, nil, description); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}

	record.Status = domain.StatusFailed
	record.Description = description
	return record, nil
}

/// CompleteWithdrawal releases the reserved funds out of the system: the locked
// bucket drops by the withdrawal amount and the transaction completes.
func (r *PostgresRepository) CompleteWithdrawal(ctx context.Context, txID uuid.UUID, approvedBy string) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	record, err := lockPendingTransaction(ctx, dbtx, txID, domain.KindDebit)
	if err != nil {
		return nil, err
	}
	account, err := lockAccountByID(ctx, dbtx, record.AccountID)
	if err != nil {
		return nil, err
	}

	newLocked := account.LockedBalance.Sub(record.Amount)
	if newLocked.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	if err := finalizeTransaction(ctx, dbtx, record.ID, domain.StatusCompleted, nil, nil, nil); err != nil {
		return nil, err
	}
	if err := updateAccountBuckets(ctx, dbtx, account.ID, account.Balance, newLocked); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}

	record.Status = domain.StatusCompleted
	return record, nil
}

// RejectWithdrawal returns the reserved funds to the available bucket and fails
// the transaction.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, txID uuid.UUID, approvedBy string, reason *string) (*domain.Transaction, error) {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer dbtx.Rollback(ctx)

	record, err := lockPendingTransaction(ctx, dbtx, txID, domain.KindDebit)
	if err != nil {
		return nil, err
	}
	account, err := lockAccountByID(ctx, dbtx, record.AccountID)
	if err != nil {
		return nil, err
	}

	newLocked := account.LockedBalance.Sub(record.Amount)
	if newLocked.IsNegative() {
		return nil, ErrInsufficientFunds
	}
	newBalance := account.Balance.Add(record.Amount)

	description := appendReason(record, reason)
	if err := finalizeTransaction(ctx, dbtx, record.ID, domain.StatusFailed, nil, nil, description); err != nil {
		return nil, err
	}
	if err := updateAccountBuckets(ctx, dbtx, account.ID, newBalance, newLocked); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}

	record.Status = domain.StatusFailed
	record.Description = description
	return record, nil
}

const beneficiaryColumns = `id, user_id, account_holder_name, bank_identifier, account_number,
	routing_code, status, is_default, created_at, updated_at`

func scanBeneficiary(row rowScanner) (*domain.Beneficiary, error) {
	var (
		beneficiary domain.Beneficiary
		status      string
	)
	err := row.Scan(
		&beneficiary.ID, &beneficiary.UserID, &beneficiary.AccountHolderName,
		&beneficiary.BankIdentifier, &beneficiary.AccountNumber, &beneficiary.RoutingCode,
		&status, &beneficiary.IsDefault, &beneficiary.CreatedAt, &beneficiary.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	beneficiary.Status = domain.BeneficiaryStatus(status)
	return &beneficiary, nil
}

// CreateBeneficiary inserts a new pending beneficiary. The unique index on
// (user_id, account_number) rejects duplicates.
func (r *PostgresRepository) CreateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error {
	query := `
		INSERT INTO beneficiaries (
			id, user_id, account_holder_name, bank_identifier, account_number, routing_code, status, is_default
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		beneficiary.ID,
		beneficiary.UserID,
		beneficiary.AccountHolderName,
		beneficiary.BankIdentifier,
		beneficiary.AccountNumber,
		beneficiary.RoutingCode,
		string(beneficiary.Status),
		beneficiary.IsDefault,
	).Scan(&beneficiary.CreatedAt, &beneficiary.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "account_number") {
			return ErrBeneficiaryExists
		}
		return fmt.Errorf("failed to create beneficiary: %w", err)
	}
	return nil
}

// GetBeneficiaryByID retrieves a specific beneficiary owned by a user.
func (r *PostgresRepository) GetBeneficiaryByID(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) (*domain.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE id = $1 AND user_id = $2`
	beneficiary, err := scanBeneficiary(r.db.QueryRow(ctx, query, beneficiaryID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, err
	}
	return beneficiary, nil
}

// ListBeneficiariesByUserID retrieves all beneficiaries for a user.
func (r *PostgresRepository) ListBeneficiariesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + `
		FROM beneficiaries
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beneficiaries []domain.Beneficiary
	for rows.Next() {
		beneficiary, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}
		beneficiaries = append(beneficiaries, *beneficiary)
	}
	return beneficiaries, rows.Err()
}

// ListPendingBeneficiaries returns the admin review queue, oldest first.
func (r *PostgresRepository) ListPendingBeneficiaries(ctx context.Context) ([]domain.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + `
		FROM beneficiaries
		WHERE status = 'pending'
		ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beneficiaries []domain.Beneficiary
	for rows.Next() {
		beneficiary, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}
		beneficiaries = append(beneficiaries, *beneficiary)
	}
	return beneficiaries, rows.Err()
}

// SetBeneficiaryStatus flips a pending beneficiary to approved or rejected.
// The status guard makes the transition one-shot under concurrent admins.
func (r *PostgresRepository) SetBeneficiaryStatus(ctx context.Context, beneficiaryID uuid.UUID, status domain.BeneficiaryStatus) (*domain.Beneficiary, error) {
	query := `
		UPDATE beneficiaries
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + beneficiaryColumns
	beneficiary, err := scanBeneficiary(r.db.QueryRow(ctx, query, beneficiaryID, string(status)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, r.classifyMissingBeneficiary(ctx, beneficiaryID)
		}
		return nil, err
	}
	return beneficiary, nil
}

func (r *PostgresRepository) classifyMissingBeneficiary(ctx context.Context, beneficiaryID uuid.UUID) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM beneficiaries WHERE id = $1)`, beneficiaryID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrInvalidTransition
	}
	return ErrBeneficiaryNotFound
}

// DeleteBeneficiary removes a beneficiary owned by the user. Deletion is only
// permitted while pending or rejected and while no pending withdrawal
// references it; both guards live in the DELETE itself so the check and the
// delete cannot race apart.
func (r *PostgresRepository) DeleteBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) error {
	query := `
		DELETE FROM beneficiaries
		WHERE id = $1 AND user_id = $2
		  AND status IN ('pending', 'rejected')
		  AND NOT EXISTS (
			SELECT 1 FROM transactions
			WHERE beneficiary_id = $1 AND status = 'pending'
		  )
	`
	result, err := r.db.Exec(ctx, query, beneficiaryID, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM beneficiaries WHERE id = $1 AND user_id = $2)`,
			beneficiaryID, userID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrInvalidTransition
		}
		return ErrBeneficiaryNotFound
	}
	return nil
}

// SetDefaultBeneficiary marks one approved beneficiary as the user's default,
// clearing any previous default atomically.
func (r *PostgresRepository) SetDefaultBeneficiary(ctx context.Context, userID uuid.UUID, beneficiaryID uuid.UUID) error {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)

	if _, err := dbtx.Exec(ctx,
		`UPDATE beneficiaries SET is_default = false, updated_at = NOW() WHERE user_id = $1 AND is_default = true`,
		userID,
	); err != nil {
		return err
	}

	result, err := dbtx.Exec(ctx,
		`UPDATE beneficiaries SET is_default = true, updated_at = NOW() WHERE id = $1 AND user_id = $2 AND status = 'approved'`,
		beneficiaryID, userID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBeneficiaryNotFound
	}

	return dbtx.Commit(ctx)
}

// Healthcheck pings the pool with a bounded deadline.
func (r *PostgresRepository) Healthcheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.db.Ping(ctx)
}
