// Package orderflow implements the per-venue order-flow engine (the
// hardest component in this system): a price-keyed order-book mirror
// that applies depth/trade/book-ticker frames under strict cross-side
// sweep and true-cancellation-accounting invariants, and derives
// imbalance, cancel-pressure, big-order, and iceberg signals from the
// resulting state.
//
// One Engine instance owns exactly one venue's book; per the
// concurrency model it is mutated by a single consumer goroutine and
// read by others only through its snapshot-producing methods, which take
// a brief read lock rather than handing out internal pointers.
package orderflow

import "time"

// PriceLevel holds both sides' displayed quantity at one price. Both
// sides may be transiently nonzero while a depth frame is being applied,
// but never after the frame completes — the cross-side sweep clears
// whichever side was crossed by the new top of book.
type PriceLevel struct {
	Bid         float64
	Ask         float64
	TimestampMs int64
}

// TradeRecord aggregates observed trade volume at a price. Each
// OrderFlow keeps two: a sliding-window "realtime" record that expires
// after TradeDisplayDuration, and a cumulative "history" record that
// only resets on the daily reset hour.
type TradeRecord struct {
	BuyVolume   float64
	SellVolume  float64
	TimestampMs int64
}

// CancelRecord aggregates true-cancellation volume at a price. Realtime
// only; expires after CancelDisplayDuration.
type CancelRecord struct {
	BidCancel   float64
	AskCancel   float64
	TimestampMs int64
}

// OrderFlow is the composite value stored per price in the engine's
// ordered map.
type OrderFlow struct {
	Level         PriceLevel
	HistoryTrade  TradeRecord
	RealtimeTrade TradeRecord
	RealtimeCancel CancelRecord
}

func (of *OrderFlow) isEmpty() bool {
	return of.Level.Bid == 0 && of.Level.Ask == 0 &&
		of.RealtimeTrade.BuyVolume == 0 && of.RealtimeTrade.SellVolume == 0 &&
		of.RealtimeCancel.BidCancel == 0 && of.RealtimeCancel.AskCancel == 0
}

// activeTrade accumulates trade volume matched at a price since the last
// depth frame, consumed (and cleared) by the next depth frame's
// true-cancellation accounting.
type activeTrade struct {
	buyVolume  float64
	sellVolume float64
}

// DepthEntry is one (price, quantity) pair from a depth frame.
type DepthEntry struct {
	Price float64
	Qty   float64
}

// DepthFrame is the canonical payload for a DepthUpdate event. UpdateID
// of zero means the venue does not supply one.
type DepthFrame struct {
	Bids     []DepthEntry
	Asks     []DepthEntry
	UpdateID int64
}

// TradeFrame is the canonical payload for a Trade event. Side is exactly
// "buy" or "sell".
type TradeFrame struct {
	Price       float64
	Qty         float64
	Side        string
	TimestampMs int64
	TradeID     string
}

// BookTickerFrame is the canonical payload for a BookTicker event.
type BookTickerFrame struct {
	BidPrice float64
	BidSize  float64
	AskPrice float64
	AskSize  float64
}

// TradeEntry is one record in the bounded trades window.
type TradeEntry struct {
	Price       float64
	Qty         float64
	Side        string
	TimestampMs int64
	TradeID     string
}

// Signal is a derived analytic event, carried onward as an
// eventmodel.Signal event by the caller.
type Signal struct {
	TimestampMs int64
	Type        string // "buy" | "sell" | "bid_cancel" | "ask_cancel"
	Ratio       float64
}

// BigOrder is a transient snapshot of a resting level whose size exceeds
// the configured threshold, excluding the very top of book.
type BigOrder struct {
	Side        string // "buy" | "sell"
	Price       float64
	Volume      float64
	TimestampMs int64
}

// Stats is a point-in-time counter snapshot for one engine.
type Stats struct {
	DepthUpdates        uint64
	Trades              uint64
	BookTickerUpdates   uint64
	MalformedDropped    uint64
	UpdateIDRegressions uint64
	LastUpdateMs        int64
}

// Config tunes the engine's thresholds and windows. Defaults mirror
// spec.md §6.
type Config struct {
	ImbalanceThreshold    float64
	BigOrderThreshold     float64
	TradeDisplayDuration  time.Duration
	CancelDisplayDuration time.Duration
	MaxTradeRecords       int
	TradesWindowSize      int
	ExpirationSweepPeriod time.Duration
	HistoryResetHour      int // 0-23 UTC
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ImbalanceThreshold:    0.75,
		BigOrderThreshold:     10.0,
		TradeDisplayDuration:  10 * time.Second,
		CancelDisplayDuration: 5 * time.Second,
		MaxTradeRecords:       1000,
		TradesWindowSize:      10_000,
		ExpirationSweepPeriod: 60 * time.Second,
		HistoryResetHour:      5,
	}
}
