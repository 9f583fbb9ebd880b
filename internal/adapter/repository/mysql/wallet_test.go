package mysql

import (
	"context"
	"errors"
	"testing"

	"receivables-engine/internal/domain/funds"

	"github.com/shopspring/decimal"
)

func TestWalletLedger_TransferCredits(t *testing.T) {
	db := openTestDB(t)
	w := NewWalletLedger(db)
	ctx := context.Background()

	if err := w.Transfer(ctx, buyerC, decimal.NewFromInt(600)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := w.Transfer(ctx, buyerC, decimal.NewFromInt(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	bal, err := w.Balance(ctx, buyerC)
	if err != nil {
		t.Fatal(err)
	}
	if bal.IntPart() != 1000 {
		t.Fatalf("balance = %s, want 1000", bal)
	}
	if bal, _ := w.Balance(ctx, issuerA); !bal.IsZero() {
		t.Fatalf("untouched wallet = %s", bal)
	}
}

func TestWalletLedger_RejectsInvalidTransfer(t *testing.T) {
	db := openTestDB(t)
	w := NewWalletLedger(db)
	ctx := context.Background()

	if err := w.Transfer(ctx, "", decimal.NewFromInt(1)); !errors.Is(err, funds.ErrTransferFailed) {
		t.Fatalf("empty recipient: %v", err)
	}
	if err := w.Transfer(ctx, buyerC, decimal.Zero); !errors.Is(err, funds.ErrTransferFailed) {
		t.Fatalf("zero amount: %v", err)
	}
}

func TestWalletLedger_TransferDoesNotReadFirst(t *testing.T) {
	db := openTestDB(t)
	w := NewWalletLedger(db)
	ctx := context.Background()
	reads := countReads(t, db)

	for _, amt := range []int64{1, 2, 3} {
		if err := w.Transfer(ctx, issuerA, decimal.NewFromInt(amt)); err != nil {
			t.Fatalf("Transfer: %v", err)
		}
	}
	if *reads != 0 {
		t.Fatalf("Transfer issued %d reads, want none", *reads)
	}
	if bal, err := w.Balance(ctx, issuerA); err != nil || bal.IntPart() != 6 {
		t.Fatalf("balance = %s (%v), want 6", bal, err)
	}
}
