package venue

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/events"
	"github.com/arbz/zeroday-engine/internal/metrics"
	"github.com/arbz/zeroday-engine/internal/model"
	"github.com/arbz/zeroday-engine/internal/risk"
)

// SweepMatch crosses head orders until a side runs dry. The heads always
// cross: price is the midpoint of the two order prices and quantity the
// smaller of the two sizes, and both orders leave the book in full once the
// settlement layer confirms. Orders found expired at the head are discarded
// without trading. A propagation failure ends the sweep with both heads
// still resting; the next sweep retries them.
func (v *Venue) SweepMatch(ctx context.Context) ([]model.TradeExecution, error) {
	v.sweepMu.Lock()
	defer v.sweepMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
		v.gaugeDepth()
	}()

	if v.paused.Load() {
		return nil, nil
	}

	var out []model.TradeExecution
	for {
		buy, sell := v.book.Heads()
		if buy == nil || sell == nil {
			return out, nil
		}

		now := v.now().Unix()
		if buy.Order.Expired(now) {
			v.book.DropHead(model.Buy, buy.ID)
			metrics.OrdersExpiredTotal.Inc()
			slog.Info("expired order discarded", "order_id", buy.ID, "side", model.Buy)
			continue
		}
		if sell.Order.Expired(now) {
			v.book.DropHead(model.Sell, sell.ID)
			metrics.OrdersExpiredTotal.Inc()
			slog.Info("expired order discarded", "order_id", sell.ID, "side", model.Sell)
			continue
		}

		price := risk.MidPrice(buy.Order.Price, sell.Order.Price)
		qty := risk.MinQty(buy.Order.Qty, sell.Order.Qty)

		v.riskMu.RLock()
		makerFee, takerFee := v.risk.Fees(price, qty)
		v.riskMu.RUnlock()

		// The earlier-admitted order is the maker.
		buyFee, sellFee := takerFee, makerFee
		if buy.Seq < sell.Seq {
			buyFee, sellFee = makerFee, takerFee
		}

		// Propagate with no locks held; the book may change underneath
		// and PopMatched guards against that.
		txRef, err := v.prop.Match(ctx, buy.ID, sell.ID, price)
		if err != nil {
			metrics.SettlementFailuresTotal.WithLabelValues("match").Inc()
			slog.Warn("match not propagated, orders stay resting",
				"buy_order_id", buy.ID, "sell_order_id", sell.ID, "error", err)
			return out, nil
		}
		if !v.book.PopMatched(buy.ID, sell.ID) {
			slog.Warn("book changed during propagation, skipping fill",
				"buy_order_id", buy.ID, "sell_order_id", sell.ID)
			return out, nil
		}

		if err := v.applyFill(ctx, buy.Order, sell.Order, price, qty, buyFee, sellFee, now); err != nil {
			return out, err
		}

		fe := events.New(events.TypeFeeAccrued)
		fe.MakerFee = makerFee
		fe.TakerFee = takerFee
		fe.Amount = makerFee.Add(takerFee)
		v.log.Append(ctx, fe)

		trade := model.TradeExecution{
			BuyOrderID:  buy.ID,
			SellOrderID: sell.ID,
			BuyTrader:   buy.Order.Trader,
			SellTrader:  sell.Order.Trader,
			Price:       price,
			Qty:         qty,
			MakerFee:    makerFee,
			TakerFee:    takerFee,
			TxRef:       txRef,
		}
		out = append(out, trade)
		metrics.TradesTotal.Inc()

		e := events.New(events.TypeTrade)
		e.BuyTrader = trade.BuyTrader
		e.SellTrader = trade.SellTrader
		e.Price = price
		e.Qty = qty
		e.MakerFee = makerFee
		e.TakerFee = takerFee
		e.TxRef = txRef
		v.log.Append(ctx, e)
	}
}

func (v *Venue) applyFill(ctx context.Context, buy, sell model.Order, price, qty, buyFee, sellFee decimal.Decimal, now int64) error {
	if err := v.ledger.DebitFee(ctx, buy.Trader, buyFee); err != nil {
		return err
	}
	if err := v.ledger.DebitFee(ctx, sell.Trader, sellFee); err != nil {
		return err
	}
	v.ledger.AccrueFees(buyFee.Add(sellFee))

	if _, err := v.positions.ApplyFill(ctx, buy.Trader, qty, price, buy.Leverage, now, buy.ExpiryTs); err != nil {
		return err
	}
	if _, err := v.positions.ApplyFill(ctx, sell.Trader, qty.Neg(), price, sell.Leverage, now, sell.ExpiryTs); err != nil {
		return err
	}
	return nil
}

// SweepLiquidate force-closes every account whose health is below the
// threshold, evaluated against one oracle snapshot taken at sweep start.
// Liquidation is all or nothing: the position's pnl settles into
// collateral, the quantity zeroes, and all locked margin releases. Each
// trader's closure is propagated before the mirror mutates; a propagation
// failure skips that trader until the next sweep.
func (v *Venue) SweepLiquidate(ctx context.Context) ([]model.LiquidationResult, error) {
	v.sweepMu.Lock()
	defer v.sweepMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("liquidate").Observe(time.Since(start).Seconds())
	}()

	mark := v.feed.Snapshot()

	accounts, err := v.ledger.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := v.positions.All(ctx)
	if err != nil {
		return nil, err
	}

	traders := make([]string, 0, len(accounts))
	for t := range accounts {
		traders = append(traders, t)
	}
	sort.Strings(traders)

	v.riskMu.RLock()
	clampFloor := v.risk.ClampCollateralFloor
	v.riskMu.RUnlock()

	var out []model.LiquidationResult
	for _, trader := range traders {
		acc := accounts[trader]
		pos := positions[trader]
		pnl := risk.PositionPnL(pos, mark.Price)

		v.riskMu.RLock()
		atRisk := v.risk.Liquidatable(acc, pnl)
		v.riskMu.RUnlock()
		if !atRisk {
			continue
		}

		txRef, err := v.prop.Liquidate(ctx, trader, mark.Price)
		if err != nil {
			metrics.SettlementFailuresTotal.WithLabelValues("liquidate").Inc()
			slog.Warn("liquidation not propagated, retrying next sweep",
				"trader", trader, "error", err)
			continue
		}

		if err := v.ledger.Settle(ctx, trader, pnl, clampFloor); err != nil {
			return out, err
		}
		closed, err := v.positions.Close(ctx, trader)
		if err != nil {
			return out, err
		}

		res := model.LiquidationResult{
			Trader:    trader,
			MarkPrice: mark.Price,
			PnL:       pnl,
			ClosedQty: closed.Qty,
			TxRef:     txRef,
		}
		out = append(out, res)
		metrics.LiquidationsTotal.Inc()
		slog.Warn("position liquidated",
			"trader", trader, "mark", mark.Price, "pnl", pnl, "qty", closed.Qty)

		e := events.New(events.TypeLiquidation)
		e.Trader = trader
		e.MarkPrice = mark.Price
		e.Amount = pnl
		e.Qty = closed.Qty
		e.TxRef = txRef
		v.log.Append(ctx, e)
	}
	return out, nil
}

// Sweeper runs matching and liquidation sweeps on a fixed interval until
// its context is cancelled.
type Sweeper struct {
	Venue    *Venue
	Interval time.Duration
}

// Run blocks until ctx is done. Sweep errors are logged, not fatal; state
// store failures on one pass do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Venue.SweepMatch(ctx); err != nil {
				slog.Error("match sweep failed", "error", err)
			}
			if _, err := s.Venue.SweepLiquidate(ctx); err != nil {
				slog.Error("liquidation sweep failed", "error", err)
			}
		}
	}
}
