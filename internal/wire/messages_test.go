package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbroker/internal/matcher"
)

func TestParseMessage_RoundTripsNewOrder(t *testing.T) {
	raw := EncodeNewOrder(42, matcher.Sell, matcher.LimitOrder, 1250, 7, "ABC", "alice")

	msg, err := ParseMessage(raw)
	require.NoError(t, err)

	order, ok := msg.(NewOrderMessage)
	require.True(t, ok)
	assert.Equal(t, int64(42), order.OrderID)
	assert.Equal(t, matcher.Sell, order.Side)
	assert.Equal(t, matcher.LimitOrder, order.Type)
	assert.Equal(t, int64(1250), order.PriceCents)
	assert.Equal(t, int64(7), order.Amount)
	assert.Equal(t, "ABC", order.Ticker)
	assert.Equal(t, "alice", order.Username)
}

func TestParseMessage_RoundTripsCancelOrder(t *testing.T) {
	raw := EncodeCancelOrder(1, "XYZ", "bob")

	msg, err := ParseMessage(raw)
	require.NoError(t, err)

	cancel, ok := msg.(CancelOrderMessage)
	require.True(t, ok)
	assert.Equal(t, "XYZ", cancel.Ticker)
	assert.Equal(t, "bob", cancel.Username)
}

func TestParseMessage_RejectsTruncatedFrame(t *testing.T) {
	raw := EncodeNewOrder(1, matcher.Buy, matcher.LimitOrder, 100, 1, "ABC", "alice")

	_, err := ParseMessage(raw[:len(raw)-2])
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestReport_RoundTripsThroughSerialize(t *testing.T) {
	report := NewReport(OrderAck, 99, false, "insufficient tradable cash")

	parsed, err := ParseReport(report.Serialize())
	require.NoError(t, err)

	assert.Equal(t, report.OrderID, parsed.OrderID)
	assert.Equal(t, report.CorrelationID, parsed.CorrelationID)
	assert.False(t, parsed.Success)
	assert.Equal(t, "insufficient tradable cash", parsed.Err)
}

func TestNewReport_StampsUniqueCorrelationIDs(t *testing.T) {
	a := NewReport(OrderAck, 1, true, "")
	b := NewReport(OrderAck, 1, true, "")
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
}
