// Package venue wires the ledger, order book, position book, oracle feed,
// and settlement propagator into the trading engine proper.
//
// The venue is a mirror: the settlement layer owns sequential order ids and
// final say on every trade, liquidation, and oracle push. Local state only
// changes after the propagator confirms, so a failed propagation leaves the
// mirror untouched and the affected work is simply retried on the next
// sweep. When propagation to the authoritative layer fails at placement
// time the venue degrades to local-only operation for that order, assigning
// an id from a disjoint namespace and saying so in the ack.
package venue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/book"
	"github.com/arbz/zeroday-engine/internal/events"
	"github.com/arbz/zeroday-engine/internal/ledger"
	"github.com/arbz/zeroday-engine/internal/metrics"
	"github.com/arbz/zeroday-engine/internal/model"
	"github.com/arbz/zeroday-engine/internal/oracle"
	"github.com/arbz/zeroday-engine/internal/risk"
	"github.com/arbz/zeroday-engine/internal/settle"
	"github.com/arbz/zeroday-engine/internal/state"
)

// DefaultOrderTTL is how long an order rests before lazy expiry removes it,
// when the request does not carry its own TTL.
const DefaultOrderTTL = 86_400 // seconds

// Config carries the venue's operational parameters.
type Config struct {
	// Operator authorizes privileged operations (pause, fee changes,
	// oracle pushes, fee withdrawal).
	Operator string

	// DefaultTTL is the resting lifetime, in seconds, applied to orders
	// that do not specify one. Zero means DefaultOrderTTL.
	DefaultTTL int64

	// MakerFeeBps and TakerFeeBps override the default fee rates at
	// construction when both are non-nil. Later changes go through
	// SetFees.
	MakerFeeBps *decimal.Decimal
	TakerFeeBps *decimal.Decimal
}

// Venue is the trading engine. All methods are safe for concurrent use.
type Venue struct {
	cfg Config

	ledger    *ledger.Ledger
	positions *book.PositionBook
	book      *book.OrderBook
	feed      *oracle.Feed
	risk      *risk.Engine
	prop      settle.Propagator
	local     *settle.LocalSequencer
	log       events.Log
	st        state.Store

	riskMu  sync.RWMutex // guards fee/threshold fields on risk
	nonceMu sync.Mutex   // serializes nonce check-and-increment
	sweepMu sync.Mutex   // one sweep of either kind at a time

	paused   atomic.Bool
	degraded atomic.Bool

	now func() time.Time
}

// New builds a venue on the given store, price feed, settlement propagator,
// and audit log.
func New(cfg Config, st state.Store, feed *oracle.Feed, prop settle.Propagator, log events.Log) *Venue {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultOrderTTL
	}
	if log == nil {
		log = events.Func(func(context.Context, events.Event) {})
	}
	engine := risk.NewEngine()
	if cfg.MakerFeeBps != nil && cfg.TakerFeeBps != nil {
		engine.SetFees(*cfg.MakerFeeBps, *cfg.TakerFeeBps)
	}
	return &Venue{
		cfg:       cfg,
		ledger:    ledger.New(st),
		positions: book.NewPositionBook(st),
		book:      book.NewOrderBook(),
		feed:      feed,
		risk:      engine,
		prop:      prop,
		local:     settle.NewLocalSequencer(),
		log:       log,
		st:        st,
		now:       time.Now,
	}
}

// Paused reports whether mutating operations are currently rejected.
func (v *Venue) Paused() bool { return v.paused.Load() }

// Degraded reports whether the venue has fallen back to local order ids at
// least once since start. Ids handed out while degraded are not
// authoritative and carry no settlement-layer record.
func (v *Venue) Degraded() bool { return v.degraded.Load() }

// Authoritative reports whether the settlement propagator is backed by the
// authoritative ledger rather than the local sequencer.
func (v *Venue) Authoritative() bool { return v.prop.Authoritative() }

// AccruedFees returns the undistributed venue fee pot.
func (v *Venue) AccruedFees() decimal.Decimal { return v.ledger.AccruedFees() }

// Depth returns the number of resting orders per side.
func (v *Venue) Depth() (buys, sells int) { return v.book.Depth() }

// Mark returns the current oracle price.
func (v *Venue) Mark() model.OraclePrice { return v.feed.Snapshot() }

func (v *Venue) checkOperator(operator string) error {
	if operator == "" || operator != v.cfg.Operator {
		metrics.RejectionsTotal.WithLabelValues("unauthorized").Inc()
		return ErrUnauthorized
	}
	return nil
}

func (v *Venue) checkPaused() error {
	if v.paused.Load() {
		metrics.RejectionsTotal.WithLabelValues("paused").Inc()
		return ErrPaused
	}
	return nil
}

// Deposit credits a trader's collateral.
func (v *Venue) Deposit(ctx context.Context, trader string, amount decimal.Decimal) error {
	if err := v.checkPaused(); err != nil {
		return err
	}
	if trader == "" || !amount.IsPositive() {
		metrics.RejectionsTotal.WithLabelValues("invalid_amount").Inc()
		return ErrInvalidAmount
	}
	if err := v.ledger.Deposit(ctx, trader, amount); err != nil {
		return err
	}
	e := events.New(events.TypeDeposit)
	e.Trader = trader
	e.Amount = amount
	v.log.Append(ctx, e)
	return nil
}

// Withdraw debits a trader's free collateral. Locked margin is not
// withdrawable.
func (v *Venue) Withdraw(ctx context.Context, trader string, amount decimal.Decimal) error {
	if err := v.checkPaused(); err != nil {
		return err
	}
	if trader == "" || !amount.IsPositive() {
		metrics.RejectionsTotal.WithLabelValues("invalid_amount").Inc()
		return ErrInvalidAmount
	}
	if err := v.ledger.Withdraw(ctx, trader, amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFree) {
			metrics.RejectionsTotal.WithLabelValues("insufficient_free").Inc()
		}
		return err
	}
	e := events.New(events.TypeWithdraw)
	e.Trader = trader
	e.Amount = amount
	v.log.Append(ctx, e)
	return nil
}

// OrderRequest is one order submission.
type OrderRequest struct {
	Trader   string
	Side     model.Side
	Price    decimal.Decimal
	Qty      decimal.Decimal
	Leverage int64
	TTL      int64 // seconds; <= 0 means the venue default
	IsLimit  bool
}

// OrderAck reports the id an admitted order received. Authoritative is
// false when the id came from the local fallback sequencer, in which case
// TxRef is empty.
type OrderAck struct {
	OrderID       uint64          `json:"order_id"`
	Authoritative bool            `json:"authoritative"`
	TxRef         string          `json:"tx,omitempty"`
	Margin        decimal.Decimal `json:"margin"`
	ExpiryTs      int64           `json:"expiry_ts"`
}

// PlaceOrder locks the order's margin, registers it with the settlement
// layer, and admits it to the book. Margin is locked before propagation and
// stays locked even when the venue degrades to a local id, so the order is
// always fully collateralized while it rests.
func (v *Venue) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	if err := v.checkPaused(); err != nil {
		return OrderAck{}, err
	}
	if req.Trader == "" || !req.Qty.IsPositive() || !req.Price.IsPositive() ||
		(req.Side != model.Buy && req.Side != model.Sell) {
		metrics.RejectionsTotal.WithLabelValues("invalid_order").Inc()
		return OrderAck{}, ErrInvalidOrder
	}
	if req.Leverage < 1 {
		req.Leverage = 1
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = v.cfg.DefaultTTL
	}
	now := v.now().Unix()

	ord := model.Order{
		Trader:   req.Trader,
		Side:     req.Side,
		Price:    req.Price,
		Qty:      req.Qty,
		Leverage: req.Leverage,
		Ts:       now,
		ExpiryTs: now + ttl,
		IsLimit:  req.IsLimit,
	}

	margin := risk.RequiredMargin(ord.Qty, ord.Price, ord.Leverage)
	if err := v.ledger.LockMargin(ctx, ord.Trader, margin); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFree) {
			metrics.RejectionsTotal.WithLabelValues("insufficient_collateral").Inc()
			return OrderAck{}, ErrInsufficientCollateral
		}
		return OrderAck{}, err
	}

	id, txRef, err := v.prop.PlaceOrder(ctx, ord)
	auth := v.prop.Authoritative()
	if err != nil {
		metrics.SettlementFailuresTotal.WithLabelValues("place_order").Inc()
		slog.Warn("order placement not propagated, falling back to local id",
			"trader", ord.Trader, "error", err)
		id, txRef, _ = v.local.PlaceOrder(ctx, ord)
		auth = false
		v.degraded.Store(true)
	}

	v.book.Admit(book.Resting{ID: id, Authoritative: auth, Order: ord})
	v.gaugeDepth()
	metrics.OrdersPlacedTotal.WithLabelValues(string(ord.Side)).Inc()

	e := events.New(events.TypeOrderPlaced)
	e.Trader = ord.Trader
	e.OrderID = id
	e.Price = ord.Price
	e.Qty = ord.Qty
	e.TxRef = txRef
	v.log.Append(ctx, e)

	return OrderAck{
		OrderID:       id,
		Authoritative: auth,
		TxRef:         txRef,
		Margin:        margin,
		ExpiryTs:      ord.ExpiryTs,
	}, nil
}

// PlaceSignedOrder is PlaceOrder behind replay protection: the submitted
// nonce must equal the trader's stored nonce exactly, and a successful check
// increments it. A nonce consumed by a check is spent even if the order is
// subsequently rejected.
func (v *Venue) PlaceSignedOrder(ctx context.Context, req OrderRequest, nonce uint64) (OrderAck, error) {
	if err := v.checkPaused(); err != nil {
		return OrderAck{}, err
	}
	if err := v.consumeNonce(ctx, req.Trader, nonce); err != nil {
		return OrderAck{}, err
	}
	return v.PlaceOrder(ctx, req)
}

func (v *Venue) consumeNonce(ctx context.Context, trader string, nonce uint64) error {
	v.nonceMu.Lock()
	defer v.nonceMu.Unlock()

	cur, err := v.st.GetNonce(ctx, trader)
	if err != nil {
		return err
	}
	if nonce != cur {
		metrics.RejectionsTotal.WithLabelValues("nonce").Inc()
		return ErrNonceMismatch
	}
	return v.st.PutNonce(ctx, trader, cur+1)
}

// UpdateOracle replaces the mark price. The mirror updates immediately; the
// push to the authoritative ledger happens in the background because the
// mirror's own feed is what sweeps read.
func (v *Venue) UpdateOracle(ctx context.Context, operator string, price decimal.Decimal) (model.OraclePrice, error) {
	if err := v.checkOperator(operator); err != nil {
		return model.OraclePrice{}, err
	}
	if !price.IsPositive() {
		metrics.RejectionsTotal.WithLabelValues("invalid_amount").Inc()
		return model.OraclePrice{}, ErrInvalidAmount
	}

	p := v.feed.Update(price)

	e := events.New(events.TypeOracle)
	e.MarkPrice = p.Price
	v.log.Append(ctx, e)

	if v.prop.Authoritative() {
		go func() {
			pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := v.prop.UpdateOracle(pctx, price); err != nil {
				metrics.SettlementFailuresTotal.WithLabelValues("update_oracle").Inc()
				slog.Warn("oracle push not propagated", "error", err)
			}
		}()
	}
	return p, nil
}

// SetFees replaces the maker and taker fee rates, in basis points.
func (v *Venue) SetFees(operator string, makerBps, takerBps decimal.Decimal) error {
	if err := v.checkOperator(operator); err != nil {
		return err
	}
	if makerBps.IsNegative() || takerBps.IsNegative() {
		return ErrInvalidAmount
	}
	v.riskMu.Lock()
	v.risk.SetFees(makerBps, takerBps)
	v.riskMu.Unlock()
	slog.Info("fee rates updated", "maker_bps", makerBps, "taker_bps", takerBps)
	return nil
}

// WithdrawFees pays out accrued venue fees, clamped at the pot. Returns the
// amount actually withdrawn.
func (v *Venue) WithdrawFees(ctx context.Context, operator, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := v.checkOperator(operator); err != nil {
		return decimal.Zero, err
	}
	taken, err := v.ledger.WithdrawFees(amount)
	if err != nil {
		return decimal.Zero, err
	}
	e := events.New(events.TypeFeesWithdrawn)
	e.To = to
	e.Amount = taken
	v.log.Append(ctx, e)
	return taken, nil
}

// Pause halts deposits, withdrawals, order placement, and matching.
// Liquidation sweeps keep running: a halted venue still cannot carry
// positions below the risk threshold.
func (v *Venue) Pause(operator string) error {
	if err := v.checkOperator(operator); err != nil {
		return err
	}
	v.paused.Store(true)
	slog.Warn("venue paused")
	return nil
}

// Unpause resumes normal operation.
func (v *Venue) Unpause(operator string) error {
	if err := v.checkOperator(operator); err != nil {
		return err
	}
	v.paused.Store(false)
	slog.Info("venue unpaused")
	return nil
}

func (v *Venue) gaugeDepth() {
	buys, sells := v.book.Depth()
	metrics.RestingOrders.WithLabelValues(string(model.Buy)).Set(float64(buys))
	metrics.RestingOrders.WithLabelValues(string(model.Sell)).Set(float64(sells))
}
