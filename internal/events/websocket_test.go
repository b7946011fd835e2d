package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbroker/internal/matcher"
)

func TestFrameMarshalling_OmitsAbsentBar(t *testing.T) {
	f := frame{Subject: "orderbook/ABC/order_executed", Order: toOrderFrame(matcher.Order{
		ID: 1, TraderID: 2, Side: matcher.Buy, Type: matcher.LimitOrder, Amount: 5, PriceCents: 100, Tick: 7,
	})}

	raw, err := marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"side":"BUY"`)
	assert.Contains(t, string(raw), `"type":"LIMIT"`)
	assert.NotContains(t, string(raw), `"bar"`)
}

func TestBroadcastSink_DropsWhenSubscriberQueueIsFull(t *testing.T) {
	sink := NewBroadcastSink("orderbook")
	ch := make(chan frame, 1)
	sink.clients[nil] = ch

	order := matcher.Order{ID: 1, Side: matcher.Sell, Type: matcher.LimitOrder, Amount: 1, PriceCents: 10}
	sink.OrderExecuted("ABC", order)
	sink.OrderExecuted("ABC", order) // second publish must not block on the full channel

	assert.Len(t, ch, 1)
}
