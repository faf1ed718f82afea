package wallet

import (
	"testing"

	"github.com/shopspring/decimal"
)

func activeWallet(available, max int64) Wallet {
	return Wallet{
		ID:         "w1",
		UserID:     "u1",
		Available:  decimal.NewFromInt(available),
		MaxBalance: decimal.NewFromInt(max),
		IsActive:   true,
	}
}

func TestCanCredit(t *testing.T) {
	w := activeWallet(100, 1000)
	if err := w.CanCredit(decimal.NewFromInt(900)); err != nil {
		t.Fatalf("credit up to ceiling should pass: %v", err)
	}
	if err := w.CanCredit(decimal.NewFromInt(901)); err != ErrMaxBalanceExceeded {
		t.Fatalf("expected ErrMaxBalanceExceeded, got %v", err)
	}

	w.IsActive = false
	if err := w.CanCredit(decimal.NewFromInt(1)); err != ErrWalletInactive {
		t.Fatalf("expected ErrWalletInactive, got %v", err)
	}

	w.IsActive = true
	w.IsFrozen = true
	if err := w.CanCredit(decimal.NewFromInt(1)); err != ErrWalletFrozen {
		t.Fatalf("expected ErrWalletFrozen, got %v", err)
	}
}

func TestCanCreditNoCeiling(t *testing.T) {
	w := activeWallet(100, 0) // zero ceiling means unlimited
	if err := w.CanCredit(decimal.NewFromInt(1_000_000)); err != nil {
		t.Fatalf("expected no ceiling, got %v", err)
	}
}

func TestCanDebit(t *testing.T) {
	w := activeWallet(100, 1000)
	if err := w.CanDebit(decimal.NewFromInt(100)); err != nil {
		t.Fatalf("exact debit should pass: %v", err)
	}
	if err := w.CanDebit(decimal.NewFromFloat(100.01)); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	w.IsFrozen = true
	if err := w.CanDebit(decimal.NewFromInt(1)); err != ErrWalletFrozen {
		t.Fatalf("expected ErrWalletFrozen, got %v", err)
	}
}
