package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/vaultpay/ledger-service/internal/domain"
	"github.com/vaultpay/ledger-service/internal/store"
)

// Full lifecycle: onboarding, deposit claim, approval, and history.
func TestScenario_DepositLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	service, audit, notifier := newTestService(repo)
	ctx := context.Background()
	userID := uuid.New()

	account, err := service.CreateAccount(ctx, userID, "usd")
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if account.Currency != "USD" || !account.Balance.IsZero() {
		t.Fatalf("expected empty USD account, got currency=%q balance=%s", account.Currency, account.Balance)
	}

	tx, err := service.Deposit(ctx, domain.DepositRequest{
		UserID:      userID,
		Amount:      amount("200.00"),
		ProofUpload: "upload-handle-123",
		Description: "wire transfer from checking",
	})
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	if tx.ProofReference == nil || *tx.ProofReference != "upload-handle-123" {
		t.Fatal("expected proof reference stored on the transaction")
	}
	if tx.ReferenceID == "" {
		t.Fatal("expected a reference id to be generated")
	}

	pending, err := service.ListPendingDeposits(ctx)
	if err != nil {
		t.Fatalf("ListPendingDeposits returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != tx.ID {
		t.Fatalf("expected the deposit in the review queue, got %d entries", len(pending))
	}

	approved, err := service.ApproveDeposit(ctx, tx.ID, "admin-1", domain.ApprovalDecision{Approve: true})
	if err != nil {
		t.Fatalf("ApproveDeposit returned error: %v", err)
	}
	if !approved.AfterBalance.Equal(amount("200.00")) {
		t.Fatalf("expected after balance 200, got %s", approved.AfterBalance)
	}

	balance, _ := service.GetBalance(ctx, userID)
	if !balance.Balance.Equal(amount("200.00")) {
		t.Fatalf("expected balance 200, got %s", balance.Balance)
	}

	history, err := service.ListTransactions(ctx, userID, domain.TransactionListOptions{})
	if err != nil {
		t.Fatalf("ListTransactions returned error: %v", err)
	}
	if len(history) != 1 || history[0].Status != domain.StatusCompleted {
		t.Fatalf("expected one completed transaction in history, got %+v", history)
	}

	audit.mu.Lock()
	auditCount := len(audit.entries)
	audit.mu.Unlock()
	if auditCount != 2 {
		t.Fatalf("expected audit entries for request and approval, got %d", auditCount)
	}
	kinds := notifier.kinds()
	if len(kinds) != 2 || kinds[0] != NotifyDepositPending || kinds[1] != NotifyDepositApproved {
		t.Fatalf("unexpected notification sequence: %v", kinds)
	}
}

// Full lifecycle: withdrawal request, rejection, and refund.
func TestScenario_WithdrawalRejectedAndRefunded(t *testing.T) {
	repo := newMemoryRepo()
	userID := uuid.New()
	repo.seedAccount(userID, "200.00")
	beneficiary := repo.seedBeneficiary(userID, domain.BeneficiaryApproved, true)
	service, _, notifier := newTestService(repo)
	ctx := context.Background()

	tx, err := service.RequestWithdrawal(ctx, domain.WithdrawalRequest{
		UserID:        userID,
		Amount:        amount("80.00"),
		BeneficiaryID: &beneficiary.ID,
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}
	if !tx.BeforeBalance.Equal(amount("200.00")) || !tx.AfterBalance.Equal(amount("120.00")) {
		t.Fatalf("expected before=200 after=120, got before=%s after=%s", tx.BeforeBalance, tx.AfterBalance)
	}

	mid, _ := service.GetBalance(ctx, userID)
	if !mid.Balance.Equal(amount("120.00")) || !mid.LockedBalance.Equal(amount("80.00")) {
		t.Fatalf("expected balance=120 locked=80 while pending, got balance=%s locked=%s",
			mid.Balance, mid.LockedBalance)
	}

	reason := "beneficiary account name mismatch"
	rejected, err := service.ApproveWithdrawal(ctx, tx.ID, "admin-1", domain.ApprovalDecision{Approve: false, Reason: &reason})
	if err != nil {
		t.Fatalf("ApproveWithdrawal(reject) returned error: %v", err)
	}
	if rejected.Status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %q", rejected.Status)
	}
	if rejected.Description == nil || *rejected.Description == "" {
		t.Fatal("expected rejection reason recorded on the transaction")
	}

	final, _ := service.GetBalance(ctx, userID)
	if !final.Balance.Equal(amount("200.00")) || !final.LockedBalance.IsZero() {
		t.Fatalf("expected full refund, got balance=%s locked=%s", final.Balance, final.LockedBalance)
	}
	if !repo.totalHeld().Equal(amount("200.00")) {
		t.Fatalf("expected funds conserved at 200, got %s", repo.totalHeld())
	}

	kinds := notifier.kinds()
	if kinds[len(kinds)-1] != NotifyWithdrawalRejected {
		t.Fatalf("expected withdrawal.rejected notification last, got %v", kinds)
	}
}

// Full lifecycle: adjustment with an idempotent retry.
func TestScenario_AdjustmentIdempotentRetry(t *testing.T) {
	repo := newMemoryRepo()
	userID := uuid.New()
	repo.seedAccount(userID, "500.00")
	service, _, _ := newTestService(repo)
	ctx := context.Background()

	req := domain.AdjustmentRequest{
		UserID:      userID,
		Amount:      amount("50.00"),
		Kind:        domain.KindDebit,
		Reason:      "disputed charge reversal",
		ReferenceID: "txn_dispute_4711",
	}
	first, err := service.Adjust(ctx, "admin-1", req)
	if err != nil {
		t.Fatalf("Adjust returned error: %v", err)
	}
	if first.Status != domain.StatusCompleted || first.Kind != domain.KindAdjustment {
		t.Fatalf("expected completed adjustment, got status=%q kind=%q", first.Status, first.Kind)
	}
	if !first.BeforeBalance.Equal(amount("500.00")) || !first.AfterBalance.Equal(amount("450.00")) {
		t.Fatalf("expected before=500 after=450, got before=%s after=%s",
			first.BeforeBalance, first.AfterBalance)
	}

	// A client retry with the same reference must not double-debit.
	if _, err := service.Adjust(ctx, "admin-1", req); !errors.Is(err, store.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference on retry, got %v", err)
	}

	original, err := repo.GetTransactionByReference(ctx, req.ReferenceID)
	if err != nil {
		t.Fatalf("GetTransactionByReference returned error: %v", err)
	}
	if original.ID != first.ID {
		t.Fatal("expected the reference to resolve to the original transaction")
	}

	balance, _ := service.GetBalance(ctx, userID)
	if !balance.Balance.Equal(amount("450.00")) {
		t.Fatalf("expected exactly one debit applied, got balance %s", balance.Balance)
	}
}
