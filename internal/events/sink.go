// Package events defines the optional, fire-and-forget event sink the
// broker publishes to. A sink failure must never roll back a settled trade
// (spec §9) — the Broker only ever calls through these methods after a
// trade already committed or was rejected; it does not inspect return
// values because there are none to inspect.
package events

import "matchbroker/internal/matcher"

// TickBar is the OHLC+ticks bar the downstream aggregation collaborator
// (out of core scope, spec §1) produces from a rolling window of Level1
// snapshots. The core only needs the shape to hand it to a Sink.
type TickBar struct {
	Asset      string
	OpenCents  int64
	HighCents  int64
	LowCents   int64
	CloseCents int64
	TickCount  int
}

// Sink is the capability set an optional external event publisher
// implements: order_executed, order_cancelled, and bars/tick, each
// published under "{topic}/{asset}/..." (spec §6).
type Sink interface {
	OrderExecuted(asset string, order matcher.Order)
	OrderCancelled(asset string, order matcher.Order)
	PublishTickBar(asset string, bar TickBar)
}

// NoopSink drops every event. It is the Broker's default so the core never
// depends on a live publisher to function.
type NoopSink struct{}

func (NoopSink) OrderExecuted(string, matcher.Order)  {}
func (NoopSink) OrderCancelled(string, matcher.Order) {}
func (NoopSink) PublishTickBar(string, TickBar)       {}
