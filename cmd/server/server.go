// Command server is the exchange process: it wires together configuration,
// the broker, the websocket event sink, Prometheus metrics, and the TCP
// order-entry listener. Adapted from the teacher's cmd/main.go and
// cmd/server/server.go, which carried two near-identical entry points for
// the same engine/net.Server pairing; this consolidates them into one.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"matchbroker/internal/broker"
	"matchbroker/internal/config"
	"matchbroker/internal/events"
	"matchbroker/internal/metrics"
	"matchbroker/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)

	sink := events.NewBroadcastSink(cfg.EventTopic)

	b := broker.New(broker.WithSink(sink), broker.WithMetrics(collectors))
	for _, asset := range cfg.Markets {
		if err := b.CreateMarket(asset); err != nil {
			log.Fatal().Err(err).Str("asset", asset).Msg("failed to create market")
		}
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/", sink)
		log.Info().Str("address", cfg.WebsocketAddress).Msg("event sink listening")
		if err := http.ListenAndServe(cfg.WebsocketAddress, mux); err != nil {
			log.Error().Err(err).Msg("websocket listener stopped")
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		log.Info().Str("address", cfg.MetricsAddress).Msg("metrics listening")
		if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()

	srv := server.New(cfg.ListenAddress, cfg.ListenPort, b)
	go srv.Run(ctx)

	<-ctx.Done()
}
