package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placeTestOrders helps insert a batch of limit orders at a specific
// price/side, mirroring the teacher's table-style order-placement helper.
func placeTestOrders(t *testing.T, book *Matcher, startID int64, price int64, side Side, quantities ...int64) int64 {
	t.Helper()
	id := startID
	for _, qty := range quantities {
		err := book.PlaceLimitOrder(Order{
			ID:         id,
			Side:       side,
			Type:       LimitOrder,
			PriceCents: price,
			Amount:     qty,
		})
		require.NoError(t, err)
		id++
	}
	return id
}

func TestPlaceLimitOrder_SortsBySideAndPrice(t *testing.T) {
	book := New()

	placeTestOrders(t, book, 1, 99, Buy, 100, 90, 80)
	placeTestOrders(t, book, 101, 100, Sell, 100, 90, 80)

	bid, ok := book.GetHighestBid()
	require.True(t, ok)
	assert.EqualValues(t, 99, bid)

	ask, ok := book.GetLowestAsk()
	require.True(t, ok)
	assert.EqualValues(t, 100, ask)
}

func TestPlaceLimitOrder_RejectsDuplicateID(t *testing.T) {
	book := New()
	require.NoError(t, book.PlaceLimitOrder(Order{ID: 1, Side: Buy, Type: LimitOrder, PriceCents: 10, Amount: 1}))
	err := book.PlaceLimitOrder(Order{ID: 1, Side: Sell, Type: LimitOrder, PriceCents: 11, Amount: 1})
	assert.ErrorIs(t, err, ErrDuplicateOrderID)
}

func TestMatchMarketOrder_FullFillSingleLevel(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 100, Sell, 5)

	ok, err := book.MatchMarketOrder(Order{ID: 1000, Side: Buy, Type: MarketOrder, Amount: 5}, 1_000_000, 0)
	require.NoError(t, err)
	require.True(t, ok)

	match, hasMatch := book.DequeueMatch()
	require.True(t, hasMatch)
	assert.EqualValues(t, 5, match.LimitOrdersTotalAmount())
	assert.EqualValues(t, 500, match.LimitOrdersTotalValueCents())

	_, hasAsk := book.GetLowestAsk()
	assert.False(t, hasAsk)
}

func TestMatchMarketOrder_SweepsMultipleLevels(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 100, Sell, 2, 2) // level 100: two orders totalling 4
	placeTestOrders(t, book, 3, 101, Sell, 20)

	ok, err := book.MatchMarketOrder(Order{ID: 1000, Side: Buy, Type: MarketOrder, Amount: 8}, 1_000_000, 0)
	require.NoError(t, err)
	require.True(t, ok)

	depth := book.GetAskDepth()
	require.Len(t, depth, 1)
	assert.EqualValues(t, 101, depth[0].PriceCents)
	assert.EqualValues(t, 16, depth[0].CumAmount) // 20 - 4 consumed
}

func TestMatchMarketOrder_PartialLevelConsumedThenStops(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 100, Sell, 2, 2, 2, 2, 2) // five sellers, 2 each

	ok, err := book.MatchMarketOrder(Order{ID: 1000, Side: Buy, Type: MarketOrder, Amount: 8}, 1_000_000, 0)
	require.NoError(t, err)
	require.True(t, ok)

	depth := book.GetAskDepth()
	require.Len(t, depth, 1)
	assert.EqualValues(t, 2, depth[0].CumAmount)
}

func TestMatchMarketOrder_InsufficientLiquidityRollsBack(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 100, Sell, 5)

	ok, err := book.MatchMarketOrder(Order{ID: 1000, Side: Buy, Type: MarketOrder, Amount: 10}, 1_000_000, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ask, hasAsk := book.GetLowestAsk()
	require.True(t, hasAsk)
	assert.EqualValues(t, 100, ask)
	depth := book.GetAskDepth()
	require.Len(t, depth, 1)
	assert.EqualValues(t, 5, depth[0].CumAmount)
}

func TestMatchMarketOrder_ExceedsAvailableCashRollsBack(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 100, Sell, 10)

	ok, err := book.MatchMarketOrder(Order{ID: 1000, Side: Buy, Type: MarketOrder, Amount: 10}, 500, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	depth := book.GetAskDepth()
	require.Len(t, depth, 1)
	assert.EqualValues(t, 10, depth[0].CumAmount)
}

func TestCancelAllOrdersForTrader(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 99, Buy, 10)
	require.NoError(t, book.PlaceLimitOrder(Order{ID: 50, TraderID: 2, Side: Buy, Type: LimitOrder, PriceCents: 98, Amount: 5}))

	removed := book.CancelAllOrdersForTrader(0)
	assert.Len(t, removed, 1)

	bid, ok := book.GetHighestBid()
	require.True(t, ok)
	assert.EqualValues(t, 98, bid)
}

func TestClearOrderBook(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 99, Buy, 10)
	placeTestOrders(t, book, 2, 100, Sell, 10)

	removed := book.ClearOrderBook()
	assert.Len(t, removed, 2)

	_, hasBid := book.GetHighestBid()
	_, hasAsk := book.GetLowestAsk()
	assert.False(t, hasBid)
	assert.False(t, hasAsk)
}

func TestGetBidDepth_ReportsEarliestTickAtEachLevel(t *testing.T) {
	book := New()
	require.NoError(t, book.PlaceLimitOrder(Order{ID: 1, Side: Buy, Type: LimitOrder, PriceCents: 99, Amount: 10, Tick: 5}))
	require.NoError(t, book.PlaceLimitOrder(Order{ID: 2, Side: Buy, Type: LimitOrder, PriceCents: 99, Amount: 10, Tick: 8}))
	require.NoError(t, book.PlaceLimitOrder(Order{ID: 3, Side: Buy, Type: LimitOrder, PriceCents: 98, Amount: 5, Tick: 3}))

	depth := book.GetBidDepth()
	require.Len(t, depth, 2)
	assert.EqualValues(t, 99, depth[0].PriceCents)
	assert.EqualValues(t, 5, depth[0].Tick)
	assert.EqualValues(t, 98, depth[1].PriceCents)
	assert.EqualValues(t, 3, depth[1].Tick)
}

func TestTotalsHeldInLimits(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 100, Buy, 50)
	placeTestOrders(t, book, 2, 150, Sell, 30)

	assert.EqualValues(t, 5000, book.TotalCashHeldInBidLimits())
	assert.EqualValues(t, 30, book.TotalAssetsHeldInAskLimits())
}
