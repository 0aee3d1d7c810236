package marketdata

import (
	"testing"
	"time"

	"github.com/rishav/mdengine/internal/eventbus"
	"github.com/rishav/mdengine/internal/eventmodel"
	"github.com/rishav/mdengine/internal/orderflow"
)

// TestPipelineDecoderToBusToAggregatorToSnapshot exercises the full
// ingestion path: canonical events published onto the bus are drained
// into the aggregator, routed to the right venue's engine, and surface
// through the read-only snapshot views (C3 -> C7/C8).
func TestPipelineDecoderToBusToAggregatorToSnapshot(t *testing.T) {
	bus := eventbus.New(64)
	aggregator := New(orderflow.DefaultConfig(), []string{"binance", "okx"})
	bus.SubscribeGlobal(aggregator.Handle)

	depth := eventmodel.New(eventmodel.DepthUpdate, "binance", map[string]any{
		"bids": []any{map[string]any{"price": 100.0, "qty": 1.5}},
		"asks": []any{map[string]any{"price": 101.0, "qty": 2.0}},
	})
	if !bus.Publish(depth) {
		t.Fatal("expected depth event to publish")
	}

	trade := eventmodel.New(eventmodel.Trade, "binance", map[string]any{
		"price": 100.5, "qty": 0.3, "side": "buy",
	})
	if !bus.Publish(trade) {
		t.Fatal("expected trade event to publish")
	}

	okxDepth := eventmodel.New(eventmodel.DepthUpdate, "okx", map[string]any{
		"bids": []any{map[string]any{"price": 200.0, "qty": 1.0}},
		"asks": []any{map[string]any{"price": 201.0, "qty": 1.0}},
	})
	if !bus.Publish(okxDepth) {
		t.Fatal("expected okx depth event to publish")
	}

	processed := bus.ProcessAll()
	if processed != 3 {
		t.Fatalf("expected 3 events processed, got %d", processed)
	}

	snap := aggregator.AllSnapshots(10)
	binanceSnap, ok := snap["binance"]
	if !ok {
		t.Fatal("expected a binance snapshot")
	}
	if len(binanceSnap.Bids) != 1 || binanceSnap.Bids[0].Price != 100.0 {
		t.Fatalf("unexpected binance bids: %+v", binanceSnap.Bids)
	}

	okxSnap, ok := snap["okx"]
	if !ok || len(okxSnap.Bids) != 1 || okxSnap.Bids[0].Price != 200.0 {
		t.Fatalf("unexpected okx snapshot: %+v", okxSnap)
	}

	trades := aggregator.AllRecentTrades(10)
	if len(trades["binance"]) != 1 || trades["binance"][0].Price != 100.5 {
		t.Fatalf("unexpected binance trades: %+v", trades["binance"])
	}

	stats := aggregator.GlobalStatsSnapshot()
	if stats.TotalDepthUpdates != 2 || stats.TotalTrades != 1 {
		t.Fatalf("unexpected global stats: %+v", stats)
	}
	if stats.ActiveExchanges != 2 {
		t.Fatalf("expected 2 active exchanges, got %d", stats.ActiveExchanges)
	}
}

// TestPipelineUnknownVenueCreatedLazily exercises C7's lazy venue
// creation: a venue absent from the known-venue set at construction
// still gets routed correctly on first observation.
func TestPipelineUnknownVenueCreatedLazily(t *testing.T) {
	bus := eventbus.New(16)
	aggregator := New(orderflow.DefaultConfig(), nil)
	bus.SubscribeGlobal(aggregator.Handle)

	bus.Publish(eventmodel.New(eventmodel.BookTicker, "bitget", map[string]any{
		"bid_price": 10.0, "bid_size": 1.0, "ask_price": 10.5, "ask_size": 1.0,
	}))
	bus.ProcessAll()

	if aggregator.Engine("bitget") == nil {
		t.Fatal("expected bitget engine to be created lazily")
	}
	bid, ok := aggregator.Engine("bitget").BestBid()
	if !ok || bid != 10.0 {
		t.Fatalf("expected best bid 10.0, got %v (%v)", bid, ok)
	}
}

// TestPipelineSignalFanOutIsNonBlocking exercises the aggregator's
// signal subscription: a slow or absent reader never stalls ingestion,
// per spec.md §4.7's non-blocking publish requirement.
func TestPipelineSignalFanOutIsNonBlocking(t *testing.T) {
	aggregator := New(orderflow.DefaultConfig(), []string{"binance"})
	ch := aggregator.SubscribeSignals(0) // zero-buffer: every send would block without the select/default guard

	now := time.Now()
	engine := aggregator.Engine("binance")
	engine.ApplyDepth(orderflow.DepthFrame{
		Bids: []orderflow.DepthEntry{{Price: 100, Qty: 8}},
		Asks: []orderflow.DepthEntry{{Price: 101, Qty: 1}},
	}, now)

	done := make(chan struct{})
	go func() {
		aggregator.Tick(now.Add(500 * time.Millisecond))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Tick blocked on signal fan-out with no subscriber draining the channel")
	}
	select {
	case <-ch:
	default:
	}
}
