// Package ledger implements per-trader collateral and margin accounting.
//
// The ledger owns one exclusive region: every read-modify-write of an
// account happens under its mutex, against whichever state.Store backs the
// process. The solvency invariant collateral >= locked_margin holds for every
// reachable state except inside the single Settle step of a liquidation.
//
// Operations are not idempotent. The caller must invoke each at most once
// per intended effect; deduplication, when needed, belongs at the
// integration layer.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
	"github.com/arbz/zeroday-engine/internal/state"
)

// ErrInsufficientFree is returned when a withdrawal or margin lock exceeds
// the trader's free collateral (collateral - locked_margin).
var ErrInsufficientFree = errors.New("ledger: insufficient free collateral")

// Ledger holds trader accounts and the venue-owned accrued fee pot.
type Ledger struct {
	mu sync.Mutex
	st state.Store

	feeMu       sync.Mutex
	accruedFees decimal.Decimal
}

// New creates a ledger backed by the given store.
func New(st state.Store) *Ledger {
	return &Ledger{st: st}
}

// account loads a trader's account, treating a missing record as a zero
// account. Callers must hold l.mu.
func (l *Ledger) account(ctx context.Context, trader string) (model.Account, error) {
	acc, err := l.st.GetAccount(ctx, trader)
	if errors.Is(err, state.ErrNotFound) {
		return model.Account{Collateral: decimal.Zero, LockedMargin: decimal.Zero}, nil
	}
	return acc, err
}

// Deposit credits collateral unconditionally.
func (l *Ledger) Deposit(ctx context.Context, trader string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(ctx, trader)
	if err != nil {
		return err
	}
	acc.Collateral = acc.Collateral.Add(amount)
	return l.st.PutAccount(ctx, trader, acc)
}

// Withdraw debits collateral, failing with ErrInsufficientFree when the
// amount exceeds free collateral. A rejected withdrawal changes nothing.
func (l *Ledger) Withdraw(ctx context.Context, trader string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(ctx, trader)
	if err != nil {
		return err
	}
	if acc.Free().LessThan(amount) {
		return ErrInsufficientFree
	}
	acc.Collateral = acc.Collateral.Sub(amount)
	return l.st.PutAccount(ctx, trader, acc)
}

// LockMargin moves free collateral into locked margin. It fails with
// ErrInsufficientFree when the trader's free collateral cannot cover the
// amount; collateral itself is untouched either way.
func (l *Ledger) LockMargin(ctx context.Context, trader string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(ctx, trader)
	if err != nil {
		return err
	}
	if acc.Free().LessThan(amount) {
		return ErrInsufficientFree
	}
	acc.LockedMargin = acc.LockedMargin.Add(amount)
	return l.st.PutAccount(ctx, trader, acc)
}

// ReleaseMargin reduces locked margin without touching collateral, flooring
// at zero.
func (l *Ledger) ReleaseMargin(ctx context.Context, trader string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(ctx, trader)
	if err != nil {
		return err
	}
	acc.LockedMargin = acc.LockedMargin.Sub(amount)
	if acc.LockedMargin.IsNegative() {
		acc.LockedMargin = decimal.Zero
	}
	return l.st.PutAccount(ctx, trader, acc)
}

// DebitFee takes a trade fee out of collateral. Fees come from collateral,
// never from locked margin.
func (l *Ledger) DebitFee(ctx context.Context, trader string, fee decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(ctx, trader)
	if err != nil {
		return err
	}
	acc.Collateral = acc.Collateral.Sub(fee)
	return l.st.PutAccount(ctx, trader, acc)
}

// Settle applies liquidation PnL as one atomic step: collateral absorbs the
// PnL (clamped at zero when clampFloor is set) and all locked margin is
// released. This is the only operation allowed to momentarily breach the
// solvency invariant.
func (l *Ledger) Settle(ctx context.Context, trader string, pnl decimal.Decimal, clampFloor bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(ctx, trader)
	if err != nil {
		return err
	}
	acc.Collateral = acc.Collateral.Add(pnl)
	if clampFloor && acc.Collateral.IsNegative() {
		acc.Collateral = decimal.Zero
	}
	acc.LockedMargin = decimal.Zero
	return l.st.PutAccount(ctx, trader, acc)
}

// Account returns a copy of the trader's account (zero if unknown).
func (l *Ledger) Account(ctx context.Context, trader string) (model.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account(ctx, trader)
}

// Accounts returns a copy of every account keyed by trader.
func (l *Ledger) Accounts(ctx context.Context) (map[string]model.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.ListAccounts(ctx)
}

// AccrueFees adds collected maker+taker fees to the venue-owned pot.
func (l *Ledger) AccrueFees(amount decimal.Decimal) {
	l.feeMu.Lock()
	defer l.feeMu.Unlock()
	l.accruedFees = l.accruedFees.Add(amount)
}

// AccruedFees returns the current fee pot balance.
func (l *Ledger) AccruedFees() decimal.Decimal {
	l.feeMu.Lock()
	defer l.feeMu.Unlock()
	return l.accruedFees
}

// WithdrawFees removes up to amount from the fee pot and returns how much
// was actually taken (never more than the pot holds).
func (l *Ledger) WithdrawFees(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("ledger: negative fee withdrawal %s", amount)
	}
	l.feeMu.Lock()
	defer l.feeMu.Unlock()

	taken := amount
	if taken.GreaterThan(l.accruedFees) {
		taken = l.accruedFees
	}
	l.accruedFees = l.accruedFees.Sub(taken)
	return taken, nil
}
