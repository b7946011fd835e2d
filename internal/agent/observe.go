// Package agent is the boundary the core exposes to learned or scripted
// traders (arbitrage, mean-reversion, random, feed-forward agents, and the
// evolutionary breeder that culls and respawns them are all out-of-scope
// collaborators per spec §1). The core only has to produce an Observations
// value and accept whatever Actions come back.
package agent

import (
	"matchbroker/internal/ledger"
	"matchbroker/internal/matcher"
)

// Observations is what a (trader, asset) pair sees of the world: its own
// account (a defensive copy, never live broker state) and the asset's
// current top-of-book plus rolling statistics.
type Observations struct {
	Account      *ledger.Account
	Level1       matcher.Level1MarketData
	TradableCash int64
}

// Actions is whatever a trader/agent decides to do in response to an
// Observations value: zero or more orders to submit via PlaceOrder. The
// core does not care how they were computed.
type Actions struct {
	Orders []matcher.Order
}

const absent = -1.0

// Vectorize flattens o into the fixed-width float64 feature vector learned
// agents expect (spec §6): best_bid, best_ask, MA5, SD5, MA10, SD10, MA50,
// SD50, MA100, SD100, cashBalanceCents, earMarkedCashCents,
// tradable_balance_cents. Any absent optional value maps to -1.
func (o Observations) Vectorize() []float64 {
	v := make([]float64, 0, 13)
	v = append(v, optionalInt(o.Level1.BestBid))
	v = append(v, optionalInt(o.Level1.BestAsk))

	for _, pair := range [4][2]*float64{
		{o.Level1.MovingAverage5, o.Level1.StandardDeviation5},
		{o.Level1.MovingAverage10, o.Level1.StandardDeviation10},
		{o.Level1.MovingAverage50, o.Level1.StandardDeviation50},
		{o.Level1.MovingAverage100, o.Level1.StandardDeviation100},
	} {
		v = append(v, optionalFloat(pair[0]), optionalFloat(pair[1]))
	}

	cash := float64(absent)
	earmarked := float64(absent)
	if o.Account != nil {
		cash = float64(o.Account.CashBalanceCents)
		earmarked = float64(o.Account.EarMarkedCashCents)
	}
	v = append(v, cash, earmarked, float64(o.TradableCash))
	return v
}

func optionalInt(p *int64) float64 {
	if p == nil {
		return absent
	}
	return float64(*p)
}

func optionalFloat(p *float64) float64 {
	if p == nil {
		return absent
	}
	return *p
}
