// Package config loads server configuration via viper, grounded on
// 0xtitan6-polymarket-mm's env/file-backed config loading.
package config

import "github.com/spf13/viper"

// Config is every knob the exchange server binary needs.
type Config struct {
	ListenAddress string
	ListenPort    int

	EventTopic       string
	WebsocketAddress string

	MetricsAddress string

	// Markets is the set of assets a fresh Broker opens a market for at
	// startup. There is no wire operation for create_market/destroy_market
	// (spec §4.2 exposes them as Broker-level calls, not client commands),
	// so the server provisions them once from config instead.
	Markets []string
}

// Load reads configuration from environment variables (prefixed
// MATCHBROKER_) and an optional config file, falling back to sane
// defaults for local/simulated use.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MATCHBROKER")
	v.AutomaticEnv()

	v.SetDefault("listen_address", "0.0.0.0")
	v.SetDefault("listen_port", 9001)
	v.SetDefault("event_topic", "orderbook")
	v.SetDefault("websocket_address", "0.0.0.0:9002")
	v.SetDefault("metrics_address", "0.0.0.0:9090")
	v.SetDefault("markets", []string{"ABC", "XYZ"})

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	return Config{
		ListenAddress:    v.GetString("listen_address"),
		ListenPort:       v.GetInt("listen_port"),
		EventTopic:       v.GetString("event_topic"),
		WebsocketAddress: v.GetString("websocket_address"),
		MetricsAddress:   v.GetString("metrics_address"),
		Markets:          v.GetStringSlice("markets"),
	}, nil
}
