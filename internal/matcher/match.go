package matcher

// Match pairs an incoming (market) order with the ordered sequence of
// resting-limit fragments it consumed. A fragment equals the resting order
// when fully consumed, or a copy with its Amount reduced to the consumed
// quantity when only part of the resting order was taken.
type Match struct {
	MarketOrder Order
	LimitOrders []Order
}

// FulfilsMarketOrder reports whether the fragments sum to the market
// order's requested amount.
func (m Match) FulfilsMarketOrder() bool {
	return m.MarketOrder.Amount == m.LimitOrdersTotalAmount()
}

// LimitOrdersTotalAmount sums fragment quantities.
func (m Match) LimitOrdersTotalAmount() int64 {
	var total int64
	for _, o := range m.LimitOrders {
		total += o.Amount
	}
	return total
}

// LimitOrdersTotalValueCents sums amount*priceCents across fragments — the
// total cash that changes hands in this match.
func (m Match) LimitOrdersTotalValueCents() int64 {
	var total int64
	for _, o := range m.LimitOrders {
		total += o.Amount * o.PriceCents
	}
	return total
}

// WeightedFillPriceCents is the amount-weighted average price across the
// match's fragments. This is the fill-price convention fed to the rolling
// statistics buffer (see DESIGN.md: the original source mistakenly stamps
// the market order's own zero price here; we use the fragments' own
// prices instead).
func (m Match) WeightedFillPriceCents() int64 {
	totalAmount := m.LimitOrdersTotalAmount()
	if totalAmount == 0 {
		return 0
	}
	return m.LimitOrdersTotalValueCents() / totalAmount
}
