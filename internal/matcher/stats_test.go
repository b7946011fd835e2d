package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingStats_AbsentBeforeAnyMatch(t *testing.T) {
	book := New()
	data := book.GetLevel1MarketData()
	assert.Nil(t, data.MovingAverage5)
	assert.Nil(t, data.StandardDeviation5)
}

func TestRollingStats_WindowSmallerThanIdealUsesAvailableSamples(t *testing.T) {
	stats := newRollingStats()
	stats.update(100)
	stats.update(200)

	data := stats.level1()
	require.NotNil(t, data.MovingAverage5)
	assert.InDelta(t, 150, *data.MovingAverage5, 0.0001)
	require.NotNil(t, data.StandardDeviation5)
	assert.InDelta(t, 50, *data.StandardDeviation5, 0.0001)
}

func TestRollingStats_WrapsAfterMaxBuffer(t *testing.T) {
	stats := newRollingStats()
	for i := int64(0); i < maxBufferSize; i++ {
		stats.update(100)
	}
	// Buffer is now full of 100s; push one more distinct value which wraps
	// into slot 0.
	stats.update(200)

	data := stats.level1()
	require.NotNil(t, data.MovingAverage100)
	expected := (float64(99*100) + 200) / 100
	assert.InDelta(t, expected, *data.MovingAverage100, 0.0001)
}

func TestMatchMarketOrder_UpdatesRollingStatsOnSuccess(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 100, Sell, 5)

	ok, err := book.MatchMarketOrder(Order{ID: 1000, Side: Buy, Type: MarketOrder, Amount: 5}, 1_000_000, 0)
	require.NoError(t, err)
	require.True(t, ok)

	data := book.GetLevel1MarketData()
	require.NotNil(t, data.MovingAverage5)
	assert.InDelta(t, 100, *data.MovingAverage5, 0.0001)
}

func TestMatchMarketOrder_DoesNotUpdateStatsOnFailure(t *testing.T) {
	book := New()
	placeTestOrders(t, book, 1, 100, Sell, 5)

	ok, err := book.MatchMarketOrder(Order{ID: 1000, Side: Buy, Type: MarketOrder, Amount: 10}, 1_000_000, 0)
	require.NoError(t, err)
	require.False(t, ok)

	data := book.GetLevel1MarketData()
	assert.Nil(t, data.MovingAverage5)
}
