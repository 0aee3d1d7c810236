package marketdata

import (
	"testing"

	"github.com/rishav/mdengine/internal/eventmodel"
	"github.com/rishav/mdengine/internal/orderflow"
)

func TestAggregatorRoutesByVenue(t *testing.T) {
	a := New(orderflow.DefaultConfig(), []string{"binance", "okx"})

	a.Handle(eventmodel.New(eventmodel.DepthUpdate, "binance", map[string]any{
		"bids": []any{map[string]any{"price": 100.0, "qty": 1.0}},
		"asks": []any{map[string]any{"price": 101.0, "qty": 1.0}},
	}))

	binance := a.Engine("binance")
	if binance == nil {
		t.Fatalf("expected binance engine to exist")
	}
	bestBid, ok := binance.BestBid()
	if !ok || bestBid != 100.0 {
		t.Fatalf("expected binance best bid 100.0, got %v", bestBid)
	}

	okx := a.Engine("okx")
	if _, ok := okx.BestBid(); ok {
		t.Fatalf("expected okx to remain untouched")
	}

	stats := a.GlobalStatsSnapshot()
	if stats.TotalDepthUpdates != 1 {
		t.Fatalf("expected one global depth update, got %d", stats.TotalDepthUpdates)
	}
}

func TestAggregatorCreatesUnknownVenueLazily(t *testing.T) {
	a := New(orderflow.DefaultConfig(), nil)
	a.Handle(eventmodel.New(eventmodel.Trade, "bitfinex", map[string]any{
		"price": 50.0, "qty": 1.0, "side": "buy",
	}))

	if a.Engine("bitfinex") == nil {
		t.Fatalf("expected bitfinex engine to be created lazily on first observation")
	}
}
