// Package config loads engine configuration via viper, grounded on
// 0xtitan6-polymarket-mm/internal/config's mapstructure-tagged nested
// struct pattern.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// VenueConfig is one venue's enable flag and endpoint override.
type VenueConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Config is the full set of tunables spec.md §6 enumerates, plus the
// per-venue enable/endpoint table SPEC_FULL.md's ambient stack adds.
type Config struct {
	Symbol string `mapstructure:"symbol"`

	ImbalanceThreshold    float64       `mapstructure:"imbalance_threshold"`
	BigOrderThreshold     float64       `mapstructure:"big_order_threshold"`
	TradeDisplayDuration  time.Duration `mapstructure:"trade_display_duration"`
	CancelDisplayDuration time.Duration `mapstructure:"cancel_display_duration"`
	MaxTradeRecords       int           `mapstructure:"max_trade_records"`
	TradesWindowSize      int           `mapstructure:"trades_window_size"`
	CleanupIntervalMs     int           `mapstructure:"cleanup_interval_ms"`
	HistoryResetHour      int           `mapstructure:"history_reset_hour"`

	RingBufferCapacity uint64 `mapstructure:"ring_buffer_capacity"`

	HTTPAddr string `mapstructure:"http_addr"`

	Venues map[string]VenueConfig `mapstructure:"venues"`

	Development bool `mapstructure:"development"`
}

// DefaultVenues is the eight venues spec.md §1/§6 names.
var DefaultVenues = []string{
	"binance", "okx", "bybit", "coinbase", "bitget", "bitfinex", "gateio", "mexc",
}

var defaultEndpoints = map[string]string{
	"binance":  "wss://fstream.binance.com/ws",
	"okx":      "wss://ws.okx.com:8443/ws/v5/public",
	"bybit":    "wss://stream.bybit.com/v5/public/linear",
	"coinbase": "wss://ws-feed.exchange.coinbase.com",
	"bitget":   "wss://ws.bitget.com/v2/ws/public",
	"bitfinex": "wss://api-pub.bitfinex.com/ws/2",
	"gateio":   "wss://fx-ws.gateio.ws/v4/ws/usdt",
	"mexc":     "wss://contract.mexc.com/edge",
}

// Default returns the compiled-in defaults spec.md §6 documents.
func Default() Config {
	venues := make(map[string]VenueConfig, len(DefaultVenues))
	for _, v := range DefaultVenues {
		venues[v] = VenueConfig{Enabled: true, Endpoint: defaultEndpoints[v]}
	}
	return Config{
		Symbol:                "BTCUSDT",
		ImbalanceThreshold:    0.75,
		BigOrderThreshold:     10.0,
		TradeDisplayDuration:  10 * time.Second,
		CancelDisplayDuration: 5 * time.Second,
		MaxTradeRecords:       1000,
		TradesWindowSize:      10_000,
		CleanupIntervalMs:     60_000,
		HistoryResetHour:      5,
		RingBufferCapacity:    4096,
		HTTPAddr:              ":8080",
		Venues:                venues,
	}
}

// Load reads configPath (if present) layered over the compiled-in
// defaults, then applies MDENGINE_-prefixed and plain SYMBOL environment
// overrides per spec.md §6.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("MDENGINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v, cfg)

	// configPath is optional: every setting has a compiled-in default, so a
	// missing or unreadable file is not fatal. A malformed file that does
	// exist is reported as an error.
	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	// SYMBOL is documented unprefixed, unlike every other override.
	if sym := os.Getenv("SYMBOL"); sym != "" {
		cfg.Symbol = sym
	}

	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("symbol", cfg.Symbol)
	v.SetDefault("imbalance_threshold", cfg.ImbalanceThreshold)
	v.SetDefault("big_order_threshold", cfg.BigOrderThreshold)
	v.SetDefault("trade_display_duration", cfg.TradeDisplayDuration)
	v.SetDefault("cancel_display_duration", cfg.CancelDisplayDuration)
	v.SetDefault("max_trade_records", cfg.MaxTradeRecords)
	v.SetDefault("trades_window_size", cfg.TradesWindowSize)
	v.SetDefault("cleanup_interval_ms", cfg.CleanupIntervalMs)
	v.SetDefault("history_reset_hour", cfg.HistoryResetHour)
	v.SetDefault("ring_buffer_capacity", cfg.RingBufferCapacity)
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("venues", cfg.Venues)
}

// Validate enforces spec.md §6's exit-code conditions: a nonzero exit is
// required for an empty symbol or zero enabled venues.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("config: symbol must not be empty")
	}
	enabled := 0
	for _, vc := range c.Venues {
		if vc.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("config: at least one venue must be enabled")
	}
	return nil
}

// EnabledVenues lists the venue IDs enabled in this configuration.
func (c Config) EnabledVenues() []string {
	var out []string
	for id, vc := range c.Venues {
		if vc.Enabled {
			out = append(out, id)
		}
	}
	return out
}
