package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/state"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func newLedger() *Ledger {
	return New(state.NewMemoryStore())
}

func TestDepositWithdraw(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	if err := l.Deposit(ctx, "alice", d(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := l.Withdraw(ctx, "alice", d(400)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	acc, _ := l.Account(ctx, "alice")
	if !acc.Collateral.Equal(d(600)) {
		t.Errorf("expected collateral 600, got %s", acc.Collateral)
	}
}

func TestWithdraw_InsufficientFree(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	l.Deposit(ctx, "alice", d(1000))
	if err := l.LockMargin(ctx, "alice", d(800)); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Free = 200; withdrawing 201 must be rejected with no state change.
	err := l.Withdraw(ctx, "alice", d(201))
	if !errors.Is(err, ErrInsufficientFree) {
		t.Fatalf("expected ErrInsufficientFree, got %v", err)
	}
	acc, _ := l.Account(ctx, "alice")
	if !acc.Collateral.Equal(d(1000)) || !acc.LockedMargin.Equal(d(800)) {
		t.Errorf("rejected withdraw must not mutate: %+v", acc)
	}

	if err := l.Withdraw(ctx, "alice", d(200)); err != nil {
		t.Errorf("withdrawing exactly free balance should succeed: %v", err)
	}
}

func TestLockMargin_InsufficientFree(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	l.Deposit(ctx, "bob", d(100))
	if err := l.LockMargin(ctx, "bob", d(101)); !errors.Is(err, ErrInsufficientFree) {
		t.Fatalf("expected ErrInsufficientFree, got %v", err)
	}
	acc, _ := l.Account(ctx, "bob")
	if !acc.LockedMargin.IsZero() {
		t.Errorf("rejected lock must not mutate, locked=%s", acc.LockedMargin)
	}
}

func TestSolvencyInvariantAcrossOps(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	check := func(step string) {
		t.Helper()
		acc, _ := l.Account(ctx, "carol")
		if acc.Collateral.LessThan(acc.LockedMargin) {
			t.Fatalf("%s: collateral %s < locked %s", step, acc.Collateral, acc.LockedMargin)
		}
	}

	l.Deposit(ctx, "carol", d(500))
	check("deposit")
	l.LockMargin(ctx, "carol", d(500))
	check("lock all")
	l.Withdraw(ctx, "carol", d(1)) // rejected
	check("rejected withdraw")
	l.ReleaseMargin(ctx, "carol", d(200))
	check("release")
	l.Withdraw(ctx, "carol", d(200))
	check("withdraw freed")
}

func TestReleaseMargin_FloorsAtZero(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	l.Deposit(ctx, "dave", d(100))
	l.LockMargin(ctx, "dave", d(50))
	l.ReleaseMargin(ctx, "dave", d(500))

	acc, _ := l.Account(ctx, "dave")
	if !acc.LockedMargin.IsZero() {
		t.Errorf("expected locked margin floored at 0, got %s", acc.LockedMargin)
	}
}

func TestSettle_ClampsCollateralFloor(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	l.Deposit(ctx, "eve", d(1000))
	l.LockMargin(ctx, "eve", d(1000))

	if err := l.Settle(ctx, "eve", d(-5000), true); err != nil {
		t.Fatalf("settle: %v", err)
	}
	acc, _ := l.Account(ctx, "eve")
	if !acc.Collateral.IsZero() {
		t.Errorf("clamped settle must floor collateral at 0, got %s", acc.Collateral)
	}
	if !acc.LockedMargin.IsZero() {
		t.Errorf("settle must release all locked margin, got %s", acc.LockedMargin)
	}
}

func TestSettle_UnclampedPolicy(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	l.Deposit(ctx, "frank", d(1000))
	l.Settle(ctx, "frank", d(-5000), false)

	acc, _ := l.Account(ctx, "frank")
	if !acc.Collateral.Equal(d(-4000)) {
		t.Errorf("unclamped settle must carry the loss, got %s", acc.Collateral)
	}
}

func TestFeePot(t *testing.T) {
	l := newLedger()

	l.AccrueFees(d(30))
	l.AccrueFees(d(12))
	if !l.AccruedFees().Equal(d(42)) {
		t.Fatalf("expected pot 42, got %s", l.AccruedFees())
	}

	taken, err := l.WithdrawFees(d(100))
	if err != nil {
		t.Fatalf("withdraw fees: %v", err)
	}
	if !taken.Equal(d(42)) {
		t.Errorf("withdrawal must clamp to pot balance, got %s", taken)
	}
	if !l.AccruedFees().IsZero() {
		t.Errorf("pot should be empty, got %s", l.AccruedFees())
	}

	if _, err := l.WithdrawFees(d(-1)); err == nil {
		t.Error("negative withdrawal must be rejected")
	}
}
