// Package risk implements the margin and liquidation math for the venue.
//
// Every function here is a pure computation over decimals: required initial
// margin for a new order, unrealized PnL of a position against a mark price,
// and the margin-health ratio that drives liquidation. The functions are
// stateless; venue state is passed as arguments, not stored.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Divisions that the ledger treats as integer math use QuoRem with precision
// zero, which truncates toward zero exactly.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
)

// Default parameters, matching the on-chain contract's init values.
var (
	// DefaultLiquidationThresholdBps is the health ratio below which a
	// position is force-closed: 5000 bps = 50%.
	DefaultLiquidationThresholdBps = decimal.NewFromInt(5000)

	// DefaultMakerFeeBps is 2 bps = 0.02%.
	DefaultMakerFeeBps = decimal.NewFromInt(2)

	// DefaultTakerFeeBps is 5 bps = 0.05%.
	DefaultTakerFeeBps = decimal.NewFromInt(5)
)

var (
	bpsDenominator = decimal.NewFromInt(10_000)
	one            = decimal.NewFromInt(1)
)

// RequiredMargin returns the initial margin for an order:
//
//	margin = (|qty| * |price|) / max(leverage, 1)
//
// truncated toward zero. Leverage below 1 (including 0) is clamped to 1, so
// division by zero is impossible by construction.
func RequiredMargin(qty, price decimal.Decimal, leverage int64) decimal.Decimal {
	if leverage < 1 {
		leverage = 1
	}
	notional := qty.Abs().Mul(price.Abs())
	q, _ := notional.QuoRem(decimal.NewFromInt(leverage), 0)
	return q
}

// UnrealizedPnL returns (mark - entry) * qty under the signed-qty convention.
// The sign of qty makes the same expression correct for both longs and
// shorts; there is no separate branch.
func UnrealizedPnL(entryPrice, qty, mark decimal.Decimal) decimal.Decimal {
	return mark.Sub(entryPrice).Mul(qty)
}

// PositionPnL is UnrealizedPnL applied to a position.
func PositionPnL(pos model.Position, mark decimal.Decimal) decimal.Decimal {
	return UnrealizedPnL(pos.EntryPrice, pos.Qty, mark)
}

// HealthBps returns the margin-health ratio in basis points:
//
//	equity = collateral - locked + pnl
//	health = floor(equity * 10000 / locked), clamped at 0
//
// When lockedMargin is zero there is no position at risk and the ratio is
// infinite; the second return value is false and callers must treat the
// trader as not liquidatable.
func HealthBps(account model.Account, pnl decimal.Decimal) (decimal.Decimal, bool) {
	if account.LockedMargin.Sign() <= 0 {
		return decimal.Zero, false
	}
	equity := account.Collateral.Sub(account.LockedMargin).Add(pnl)
	if equity.Sign() <= 0 {
		return decimal.Zero, true
	}
	q, _ := equity.Mul(bpsDenominator).QuoRem(account.LockedMargin, 0)
	return q, true
}

// Engine bundles the configurable risk parameters.
type Engine struct {
	// LiquidationThresholdBps: positions with health below this are
	// force-closed.
	LiquidationThresholdBps decimal.Decimal

	// MakerFeeBps and TakerFeeBps price each side of a cross.
	MakerFeeBps decimal.Decimal
	TakerFeeBps decimal.Decimal

	// ClampCollateralFloor caps post-liquidation collateral from below at
	// zero. When false a deep loss may leave collateral negative. One
	// policy applies everywhere; the clamp is never ledger-dependent.
	ClampCollateralFloor bool
}

// NewEngine returns an Engine with the contract defaults.
func NewEngine() *Engine {
	return &Engine{
		LiquidationThresholdBps: DefaultLiquidationThresholdBps,
		MakerFeeBps:             DefaultMakerFeeBps,
		TakerFeeBps:             DefaultTakerFeeBps,
		ClampCollateralFloor:    true,
	}
}

// SetFees replaces both fee rates.
func (e *Engine) SetFees(makerBps, takerBps decimal.Decimal) {
	e.MakerFeeBps = makerBps
	e.TakerFeeBps = takerBps
}

// Fees returns the maker and taker fee for a trade, each truncated toward
// zero the way the authoritative ledger computes them:
//
//	fee = floor(|price| * |qty| * bps / 10000)
func (e *Engine) Fees(price, qty decimal.Decimal) (maker, taker decimal.Decimal) {
	notional := price.Abs().Mul(qty.Abs())
	maker, _ = notional.Mul(e.MakerFeeBps).QuoRem(bpsDenominator, 0)
	taker, _ = notional.Mul(e.TakerFeeBps).QuoRem(bpsDenominator, 0)
	return maker, taker
}

// Liquidatable reports whether an account with the given unrealized PnL is
// below the liquidation threshold. Accounts with no locked margin are never
// liquidatable.
func (e *Engine) Liquidatable(account model.Account, pnl decimal.Decimal) bool {
	health, atRisk := HealthBps(account, pnl)
	if !atRisk {
		return false
	}
	return health.LessThan(e.LiquidationThresholdBps)
}

// MidPrice returns the arithmetic midpoint of two prices: the trade price of
// a cross.
func MidPrice(buyPrice, sellPrice decimal.Decimal) decimal.Decimal {
	return buyPrice.Add(sellPrice).Div(decimal.NewFromInt(2))
}

// MinQty returns the smaller magnitude of two quantities: the trade quantity
// of a cross.
func MinQty(a, b decimal.Decimal) decimal.Decimal {
	aa, bb := a.Abs(), b.Abs()
	if aa.LessThan(bb) {
		return aa
	}
	return bb
}
