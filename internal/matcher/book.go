package matcher

import (
	"errors"
	"fmt"

	"github.com/tidwall/btree"
)

var (
	// ErrNotEnoughLiquidity names the case of a market order that cannot be
	// fully filled against the opposite book, or whose caps would be
	// exceeded. MatchMarketOrder reports that case as (false, nil) and does
	// not return this error.
	ErrNotEnoughLiquidity = errors.New("not enough liquidity")
	// ErrDuplicateOrderID defends invariant I7: no two resting limit
	// orders in one Matcher may share an id.
	ErrDuplicateOrderID = errors.New("order id already resting in this market")
	// ErrWrongOrderType is a programmer error: the wrong Order.Type was
	// passed to PlaceLimitOrder/MatchMarketOrder.
	ErrWrongOrderType = errors.New("wrong order type for this operation")
)

// PriceLevel is every resting order at a single price, ordered by arrival
// tick (price-time priority, invariant I5).
type PriceLevel struct {
	PriceCents int64
	Orders     []*Order
}

type priceLevels = btree.BTreeG[*PriceLevel]

// Matcher owns the two sorted books for a single asset.
type Matcher struct {
	bids *priceLevels
	asks *priceLevels

	restingIDs map[int64]struct{}

	matchQueue []Match

	stats rollingStats
}

// New builds an empty Matcher: bids sorted price-descending, asks sorted
// price-ascending, both then tick-ascending within a level.
func New() *Matcher {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.PriceCents > b.PriceCents
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.PriceCents < b.PriceCents
	})
	return &Matcher{
		bids:       bids,
		asks:       asks,
		restingIDs: make(map[int64]struct{}),
		stats:      newRollingStats(),
	}
}

func (m *Matcher) levelsFor(side Side) *priceLevels {
	if side == Buy {
		return m.bids
	}
	return m.asks
}

// PlaceLimitOrder inserts a resting limit order into the correct side,
// re-establishing I5. It fails only when the order is not a LIMIT order or
// its id already rests in this market (I7).
func (m *Matcher) PlaceLimitOrder(order Order) error {
	if order.Type != LimitOrder {
		return fmt.Errorf("%w: PlaceLimitOrder requires a LIMIT order", ErrWrongOrderType)
	}
	if _, exists := m.restingIDs[order.ID]; exists {
		return fmt.Errorf("%w: id %d", ErrDuplicateOrderID, order.ID)
	}

	levels := m.levelsFor(order.Side)
	o := order
	level, ok := levels.Get(&PriceLevel{PriceCents: order.PriceCents})
	if ok {
		level.Orders = append(level.Orders, &o)
	} else {
		levels.Set(&PriceLevel{PriceCents: order.PriceCents, Orders: []*Order{&o}})
	}
	m.restingIDs[order.ID] = struct{}{}
	return nil
}

// MatchMarketOrder attempts to fully fill order against the opposite book
// within the given caps. Returns true and enqueues a Match on success; on
// any shortfall (book exhausted or a cap tripped) the book is restored to
// its pre-call state and false is returned. Market orders are fill-or-kill
// (I6): there is no partial-fill outcome visible to the caller.
func (m *Matcher) MatchMarketOrder(order Order, availableCash, availableAssets int64) (bool, error) {
	if order.Type != MarketOrder {
		return false, fmt.Errorf("%w: MatchMarketOrder requires a MARKET order", ErrWrongOrderType)
	}

	oppositeSide := Sell
	var opposite *priceLevels
	if order.Side == Buy {
		opposite = m.asks
	} else {
		oppositeSide = Buy
		opposite = m.bids
	}
	snapshot := m.snapshotSide(oppositeSide)

	remaining := order.Amount
	var fragments []Order
	var consumedCost, consumedQty int64
	var removedIDs []int64

	for remaining > 0 {
		level, ok := opposite.Min()
		if !ok {
			m.restoreSide(oppositeSide, snapshot)
			return false, nil
		}

		idx := 0
		for idx < len(level.Orders) && remaining > 0 {
			resting := level.Orders[idx]
			matchAmount := min64(remaining, resting.Amount)

			cost := matchAmount * resting.PriceCents
			if order.Side == Buy && consumedCost+cost > availableCash {
				m.restoreSide(oppositeSide, snapshot)
				return false, nil
			}
			if order.Side == Sell && consumedQty+matchAmount > availableAssets {
				m.restoreSide(oppositeSide, snapshot)
				return false, nil
			}

			consumedCost += cost
			consumedQty += matchAmount
			remaining -= matchAmount

			fragment := *resting
			fragment.Amount = matchAmount
			fragments = append(fragments, fragment)

			resting.Amount -= matchAmount
			if resting.Amount == 0 {
				removedIDs = append(removedIDs, resting.ID)
				idx++
			} else {
				break
			}
		}

		if idx > 0 {
			level.Orders = level.Orders[idx:]
		}
		if len(level.Orders) == 0 {
			opposite.Delete(level)
		}
	}

	for _, id := range removedIDs {
		delete(m.restingIDs, id)
	}

	match := Match{MarketOrder: order, LimitOrders: fragments}
	if !match.FulfilsMarketOrder() {
		// Should be unreachable given the loop invariants above; treat as
		// a failed-to-complete match rather than silently settling a
		// partial fill (I6).
		m.restoreSide(oppositeSide, snapshot)
		return false, nil
	}

	m.matchQueue = append(m.matchQueue, match)
	m.stats.update(match.WeightedFillPriceCents())
	return true, nil
}

// DequeueMatch removes and returns the oldest pending match, FIFO.
func (m *Matcher) DequeueMatch() (*Match, bool) {
	if len(m.matchQueue) == 0 {
		return nil, false
	}
	match := m.matchQueue[0]
	m.matchQueue = m.matchQueue[1:]
	return &match, true
}

// GetHighestBid returns the best (highest) resting bid price, if any.
func (m *Matcher) GetHighestBid() (int64, bool) {
	level, ok := m.bids.Min()
	if !ok {
		return 0, false
	}
	return level.PriceCents, true
}

// GetLowestAsk returns the best (lowest) resting ask price, if any.
func (m *Matcher) GetLowestAsk() (int64, bool) {
	level, ok := m.asks.Min()
	if !ok {
		return 0, false
	}
	return level.PriceCents, true
}

// DepthLevel is a single row of Level 2 depth: a price, the cumulative
// quantity resting at or better than it, and the tick of the earliest order
// still resting at this price (the arrival-time axis spec §4.1 and the
// original's _get_depth both expose alongside price/amount).
type DepthLevel struct {
	PriceCents int64
	CumAmount  int64
	Tick       int64
}

// GetBidDepth returns bid depth, best (highest) price first.
func (m *Matcher) GetBidDepth() []DepthLevel {
	return depthOf(m.bids)
}

// GetAskDepth returns ask depth, best (lowest) price first.
func (m *Matcher) GetAskDepth() []DepthLevel {
	return depthOf(m.asks)
}

func depthOf(levels *priceLevels) []DepthLevel {
	var depth []DepthLevel
	var cum int64
	levels.Scan(func(level *PriceLevel) bool {
		if len(level.Orders) == 0 {
			return true
		}
		for _, o := range level.Orders {
			cum += o.Amount
		}
		// Orders within a level are kept in arrival order (I5), so the
		// first entry is the earliest resting order at this price.
		depth = append(depth, DepthLevel{PriceCents: level.PriceCents, CumAmount: cum, Tick: level.Orders[0].Tick})
		return true
	})
	return depth
}

// CancelAllOrdersForTrader removes every resting order belonging to
// traderID from both books and returns the removed orders so the broker can
// unearmark the reserved cash/assets.
func (m *Matcher) CancelAllOrdersForTrader(traderID int) []Order {
	removed := cancelFromSide(m.bids, traderID, m.restingIDs)
	removed = append(removed, cancelFromSide(m.asks, traderID, m.restingIDs)...)
	return removed
}

func cancelFromSide(levels *priceLevels, traderID int, restingIDs map[int64]struct{}) []Order {
	var removed []Order
	var emptyLevels []*PriceLevel

	levels.Scan(func(level *PriceLevel) bool {
		kept := level.Orders[:0]
		for _, o := range level.Orders {
			if o.TraderID == traderID {
				removed = append(removed, *o)
				delete(restingIDs, o.ID)
			} else {
				kept = append(kept, o)
			}
		}
		level.Orders = kept
		if len(level.Orders) == 0 {
			emptyLevels = append(emptyLevels, level)
		}
		return true
	})
	for _, level := range emptyLevels {
		levels.Delete(level)
	}
	return removed
}

// ClearOrderBook drops every resting order and pending match (end of day).
// Returns the removed orders so the broker can unearmark every trader.
func (m *Matcher) ClearOrderBook() []Order {
	var removed []Order
	m.bids.Scan(func(level *PriceLevel) bool {
		for _, o := range level.Orders {
			removed = append(removed, *o)
		}
		return true
	})
	m.asks.Scan(func(level *PriceLevel) bool {
		for _, o := range level.Orders {
			removed = append(removed, *o)
		}
		return true
	})

	m.bids = btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.PriceCents > b.PriceCents })
	m.asks = btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.PriceCents < b.PriceCents })
	m.restingIDs = make(map[int64]struct{})
	m.matchQueue = nil
	return removed
}

// TotalAssetsHeldInAskLimits sums the resting quantity across every ask.
func (m *Matcher) TotalAssetsHeldInAskLimits() int64 {
	var total int64
	m.asks.Scan(func(level *PriceLevel) bool {
		for _, o := range level.Orders {
			total += o.Amount
		}
		return true
	})
	return total
}

// TotalCashHeldInBidLimits sums amount*priceCents across every resting bid.
func (m *Matcher) TotalCashHeldInBidLimits() int64 {
	var total int64
	m.bids.Scan(func(level *PriceLevel) bool {
		for _, o := range level.Orders {
			total += o.Amount * o.PriceCents
		}
		return true
	})
	return total
}

// GetLevel1MarketData combines top-of-book with the current rolling stats.
func (m *Matcher) GetLevel1MarketData() Level1MarketData {
	data := m.stats.level1()
	if bid, ok := m.GetHighestBid(); ok {
		v := bid
		data.BestBid = &v
	}
	if ask, ok := m.GetLowestAsk(); ok {
		v := ask
		data.BestAsk = &v
	}
	return data
}

// bookSnapshot captures one side of the book well enough to restore it
// after an aborted market match.
type bookSnapshot struct {
	levels []*PriceLevel
}

func (m *Matcher) snapshotSide(side Side) bookSnapshot {
	levels := m.levelsFor(side)
	var snap bookSnapshot
	levels.Scan(func(level *PriceLevel) bool {
		ordersCopy := make([]*Order, len(level.Orders))
		for i, o := range level.Orders {
			cp := *o
			ordersCopy[i] = &cp
		}
		snap.levels = append(snap.levels, &PriceLevel{PriceCents: level.PriceCents, Orders: ordersCopy})
		return true
	})
	return snap
}

func (m *Matcher) restoreSide(side Side, snap bookSnapshot) {
	var less func(a, b *PriceLevel) bool
	if side == Buy {
		less = func(a, b *PriceLevel) bool { return a.PriceCents > b.PriceCents }
	} else {
		less = func(a, b *PriceLevel) bool { return a.PriceCents < b.PriceCents }
	}
	restored := btree.NewBTreeG(less)
	for _, level := range snap.levels {
		restored.Set(level)
	}
	if side == Buy {
		m.bids = restored
	} else {
		m.asks = restored
	}
	// The aborts inside the matching loop never touch restingIDs, but the
	// FulfilsMarketOrder abort runs after fully-consumed ids were deleted,
	// so every id in the snapshot is reinstated here.
	for _, level := range snap.levels {
		for _, o := range level.Orders {
			m.restingIDs[o.ID] = struct{}{}
		}
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
