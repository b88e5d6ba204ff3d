package venue

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
	"github.com/arbz/zeroday-engine/internal/risk"
)

// Snapshot is the venue read model: one oracle price and the derived state
// of every trader, all computed against that single price.
type Snapshot struct {
	Oracle        model.OraclePrice  `json:"oracle"`
	Paused        bool               `json:"paused"`
	Authoritative bool               `json:"authoritative"`
	Degraded      bool               `json:"degraded"`
	AccruedFees   decimal.Decimal    `json:"accrued_fees"`
	RestingBuys   int                `json:"resting_buys"`
	RestingSells  int                `json:"resting_sells"`
	Traders       []model.TraderView `json:"traders"`
}

// Snapshot assembles the read model. Traders are sorted by name so repeated
// calls over unchanged state are byte-identical.
func (v *Venue) Snapshot(ctx context.Context) (Snapshot, error) {
	mark := v.feed.Snapshot()

	accounts, err := v.ledger.Accounts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	positions, err := v.positions.All(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	names := make(map[string]struct{}, len(accounts)+len(positions))
	for t := range accounts {
		names[t] = struct{}{}
	}
	for t := range positions {
		names[t] = struct{}{}
	}
	traders := make([]string, 0, len(names))
	for t := range names {
		traders = append(traders, t)
	}
	sort.Strings(traders)

	views := make([]model.TraderView, 0, len(traders))
	for _, t := range traders {
		view, err := v.traderView(ctx, t, accounts[t], positions[t], mark.Price)
		if err != nil {
			return Snapshot{}, err
		}
		views = append(views, view)
	}

	buys, sells := v.book.Depth()
	return Snapshot{
		Oracle:        mark,
		Paused:        v.paused.Load(),
		Authoritative: v.prop.Authoritative(),
		Degraded:      v.degraded.Load(),
		AccruedFees:   v.ledger.AccruedFees(),
		RestingBuys:   buys,
		RestingSells:  sells,
		Traders:       views,
	}, nil
}

// Trader returns one trader's view against the current mark price.
func (v *Venue) Trader(ctx context.Context, trader string) (model.TraderView, error) {
	mark := v.feed.Snapshot()
	acc, err := v.ledger.Account(ctx, trader)
	if err != nil {
		return model.TraderView{}, err
	}
	pos, err := v.positions.Get(ctx, trader)
	if err != nil {
		return model.TraderView{}, err
	}
	return v.traderView(ctx, trader, acc, pos, mark.Price)
}

func (v *Venue) traderView(ctx context.Context, trader string, acc model.Account, pos model.Position, mark decimal.Decimal) (model.TraderView, error) {
	pnl := risk.PositionPnL(pos, mark)

	// A nil health means nothing is at risk; the ratio would be infinite.
	var health *decimal.Decimal
	if h, atRisk := risk.HealthBps(acc, pnl); atRisk {
		health = &h
	}

	nonce, err := v.st.GetNonce(ctx, trader)
	if err != nil {
		return model.TraderView{}, err
	}

	return model.TraderView{
		Trader:       trader,
		Collateral:   acc.Collateral,
		LockedMargin: acc.LockedMargin,
		Qty:          pos.Qty,
		EntryPrice:   pos.EntryPrice,
		PnL:          pnl,
		HealthBps:    health,
		Nonce:        nonce,
	}, nil
}
