// Package model defines the core domain types shared across the venue engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order is a resting order. Orders are immutable once admitted to the book:
// they are either consumed in full by a match or discarded when found expired
// at the head of their queue. There is no in-place mutation and no
// trader-initiated cancellation.
type Order struct {
	Trader   string          `json:"trader"`
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Qty      decimal.Decimal `json:"qty"` // always positive; direction comes from Side
	Leverage int64           `json:"leverage"`
	Ts       int64           `json:"ts"`        // admission time, unix seconds
	ExpiryTs int64           `json:"expiry_ts"` // ts + ttl; checked lazily at the head
	IsLimit  bool            `json:"is_limit"`
}

// Expired reports whether the order is past its expiry at the given time.
func (o Order) Expired(now int64) bool {
	return now > o.ExpiryTs
}

// Position is a trader's aggregate net position.
// Qty is signed: positive = long, negative = short. EntryPrice is the
// notional-weighted average over increasing fills and is left unchanged by
// reducing fills. A flat position (Qty == 0) resets EntryPrice to 0 and stays
// dormant rather than being deleted.
type Position struct {
	Trader     string          `json:"trader"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Qty        decimal.Decimal `json:"qty"`
	Leverage   int64           `json:"leverage"`
	Margin     decimal.Decimal `json:"margin"`
	OpenedTs   int64           `json:"opened_ts"`
	ExpiryTs   int64           `json:"expiry_ts"`
}

// Flat reports whether the position is dormant.
func (p Position) Flat() bool {
	return p.Qty.IsZero()
}

// Account holds a trader's collateral and the margin locked against it.
// Invariant: Collateral - LockedMargin >= 0 at all times except during the
// single atomic step of liquidation settlement.
type Account struct {
	Collateral   decimal.Decimal `json:"collateral"`
	LockedMargin decimal.Decimal `json:"locked_margin"`
}

// Free returns the collateral not locked as margin.
func (a Account) Free() decimal.Decimal {
	return a.Collateral.Sub(a.LockedMargin)
}

// OraclePrice is the latest mark price snapshot.
// Ts is monotonically non-decreasing.
type OraclePrice struct {
	Price      decimal.Decimal `json:"price"`
	Confidence uint64          `json:"confidence"`
	Ts         int64           `json:"ts"`
}

// TradeExecution is the result of one confirmed cross. It is derived, not
// stored: it exists only as an event payload and sweep return value.
type TradeExecution struct {
	BuyOrderID  uint64          `json:"buy_order_id"`
	SellOrderID uint64          `json:"sell_order_id"`
	BuyTrader   string          `json:"buy_trader"`
	SellTrader  string          `json:"sell_trader"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
	MakerFee    decimal.Decimal `json:"maker_fee"`
	TakerFee    decimal.Decimal `json:"taker_fee"`
	TxRef       string          `json:"tx,omitempty"`
}

// LiquidationResult describes one force-closed position.
type LiquidationResult struct {
	Trader    string          `json:"trader"`
	MarkPrice decimal.Decimal `json:"mark_price"`
	PnL       decimal.Decimal `json:"pnl"`
	ClosedQty decimal.Decimal `json:"closed_qty"`
	TxRef     string          `json:"tx,omitempty"`
}

// TraderView is the per-trader read-model snapshot.
// HealthBps is nil when the trader has no margin at risk (the "no position"
// sentinel; the ratio would be infinite).
type TraderView struct {
	Trader       string           `json:"trader"`
	Collateral   decimal.Decimal  `json:"collateral"`
	LockedMargin decimal.Decimal  `json:"locked_margin"`
	Qty          decimal.Decimal  `json:"qty"`
	EntryPrice   decimal.Decimal  `json:"entry_price"`
	PnL          decimal.Decimal  `json:"pnl"`
	HealthBps    *decimal.Decimal `json:"health_bps"`
	Nonce        uint64           `json:"nonce"`
}
