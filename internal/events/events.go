// Package events defines the venue's append-only audit log.
//
// Every state transition emits exactly one event. The Log interface hides
// the sink: an in-memory ring for tests and the read API, a Kafka topic for
// durable downstream consumers, or both via Tee.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type enumerates the audit event kinds.
type Type string

const (
	TypeDeposit       Type = "deposit"
	TypeWithdraw      Type = "withdraw"
	TypeOrderPlaced   Type = "order_placed"
	TypeTrade         Type = "trade"
	TypeLiquidation   Type = "liquidation"
	TypeFeeAccrued    Type = "fee_accrued"
	TypeFeesWithdrawn Type = "fees_withdrawn"
	TypeOracle        Type = "oracle"
)

// Event is one audit record. Fields not relevant to a given type are left
// zero and omitted from JSON.
type Event struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
	At   int64  `json:"at"` // unix milliseconds

	Trader     string          `json:"trader,omitempty"`
	BuyTrader  string          `json:"buy_trader,omitempty"`
	SellTrader string          `json:"sell_trader,omitempty"`
	To         string          `json:"to,omitempty"`
	OrderID    uint64          `json:"order_id,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
	Price      decimal.Decimal `json:"price,omitempty"`
	Qty        decimal.Decimal `json:"qty,omitempty"`
	MarkPrice  decimal.Decimal `json:"mark_price,omitempty"`
	MakerFee   decimal.Decimal `json:"maker_fee,omitempty"`
	TakerFee   decimal.Decimal `json:"taker_fee,omitempty"`
	TxRef      string          `json:"tx,omitempty"`
}

// New creates an event with a fresh id and timestamp.
func New(t Type) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: t,
		At:   time.Now().UnixMilli(),
	}
}

// Log is an append-only event sink.
type Log interface {
	Append(ctx context.Context, e Event)
}

// Tee fans one event out to several logs.
type Tee []Log

func (t Tee) Append(ctx context.Context, e Event) {
	for _, l := range t {
		l.Append(ctx, e)
	}
}

// Func adapts a function to the Log interface.
type Func func(ctx context.Context, e Event)

func (f Func) Append(ctx context.Context, e Event) { f(ctx, e) }
