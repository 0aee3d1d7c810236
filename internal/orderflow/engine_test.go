package orderflow

import (
	"testing"
	"time"

	"github.com/rishav/mdengine/internal/pricemap"
)

func newTestEngine() *Engine {
	return New("binance", DefaultConfig())
}

// TestS1_DepthThenCrossSideSweep exercises spec.md §8 scenario S1.
func TestS1_DepthThenCrossSideSweep(t *testing.T) {
	e := newTestEngine()
	now := time.Unix(1_700_000_000, 0)

	e.ApplyDepth(DepthFrame{
		Bids: []DepthEntry{{Price: 100.00, Qty: 1.5}, {Price: 99.00, Qty: 2.0}},
		Asks: []DepthEntry{{Price: 101.00, Qty: 1.0}, {Price: 102.00, Qty: 2.5}},
	}, now)

	bestBid, ok := e.BestBid()
	if !ok || bestBid != 100.00 {
		t.Fatalf("expected best bid 100.00, got %v (%v)", bestBid, ok)
	}
	bestAsk, ok := e.BestAsk()
	if !ok || bestAsk != 101.00 {
		t.Fatalf("expected best ask 101.00, got %v (%v)", bestAsk, ok)
	}

	snap := e.SnapshotDepth(10)
	if len(snap.Bids) != 2 || snap.Bids[0].Price != 100.00 || snap.Bids[1].Price != 99.00 {
		t.Fatalf("unexpected bids snapshot: %+v", snap.Bids)
	}
	if len(snap.Asks) != 2 || snap.Asks[0].Price != 101.00 || snap.Asks[1].Price != 102.00 {
		t.Fatalf("unexpected asks snapshot: %+v", snap.Asks)
	}

	// Second frame: bid at 101 appears, ask at 101 goes to zero.
	e.ApplyDepth(DepthFrame{
		Bids: []DepthEntry{{Price: 101.00, Qty: 0.5}},
		Asks: []DepthEntry{{Price: 101.00, Qty: 0}},
	}, now.Add(time.Second))

	bestBid, _ = e.BestBid()
	if bestBid != 101.00 {
		t.Fatalf("expected best bid to become 101.00, got %v", bestBid)
	}

	snap = e.SnapshotDepth(10)
	for _, ask := range snap.Asks {
		if ask.Price == 101.00 {
			t.Fatalf("expected ask at 101.00 to be cleared, found qty %v", ask.Qty)
		}
	}

	// The ask at 101.00 was both swept (crossed by the new 101.00 bid)
	// and explicitly reported at qty 0 in the same frame. With no
	// matched trades at that price, the true-cancellation remainder must
	// be the full pre-frame ask quantity (1.0), per spec.md §8 S1.
	pp, err := pricemap.NewPrice(101.00)
	if err != nil {
		t.Fatalf("unexpected price error: %v", err)
	}
	of, ok := e.book.Get(pp)
	if !ok {
		t.Fatal("expected a level at 101.00")
	}
	if of.RealtimeCancel.AskCancel != 1.0 {
		t.Fatalf("expected ask_cancel remainder 1.0 at 101.00, got %v", of.RealtimeCancel.AskCancel)
	}
}

// TestS2_TrueCancellationVsConsumption exercises spec.md §8 scenario S2.
func TestS2_TrueCancellationVsConsumption(t *testing.T) {
	e := newTestEngine()
	now := time.Unix(1_700_000_000, 0)

	e.ApplyDepth(DepthFrame{
		Bids: []DepthEntry{{Price: 100.00, Qty: 2.0}},
		Asks: []DepthEntry{{Price: 101.00, Qty: 1.0}},
	}, now)

	e.ApplyTrade(TradeFrame{Price: 100.00, Qty: 0.7, Side: "sell", TimestampMs: now.Add(100 * time.Millisecond).UnixMilli()})

	e.ApplyDepth(DepthFrame{
		Bids: []DepthEntry{{Price: 100.00, Qty: 1.0}},
		Asks: []DepthEntry{{Price: 101.00, Qty: 1.0}},
	}, now.Add(200*time.Millisecond))

	of, ok := e.orderFlowAtLocked(100.00)
	if !ok {
		t.Fatalf("expected order flow at 100.00 to exist")
	}
	if diff := of.RealtimeCancel.BidCancel - 0.3; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected bid_cancel ~0.3, got %v", of.RealtimeCancel.BidCancel)
	}

	if len(e.activeTrades) != 0 {
		t.Fatalf("expected active-trade buffer cleared after depth frame, got %+v", e.activeTrades)
	}
}

// TestS3_TradesWindowEviction exercises spec.md §8 scenario S3.
func TestS3_TradesWindowEviction(t *testing.T) {
	e := newTestEngine()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 10_005; i++ {
		e.ApplyTrade(TradeFrame{Price: 100.00, Qty: 1, Side: "buy", TimestampMs: now.UnixMilli() + int64(i)})
	}

	recent := e.RecentTrades(0)
	if len(recent) != 10_000 {
		t.Fatalf("expected trades window capped at 10000, got %d", len(recent))
	}
	if recent[0].TimestampMs != now.UnixMilli()+5 {
		t.Fatalf("expected the first five trades to have been evicted, oldest remaining ts=%d", recent[0].TimestampMs)
	}
}

// TestS4_ImbalanceDebounce exercises spec.md §8 scenario S4: a continuous
// 0.80 bid ratio held across six 100ms evaluations (500ms) emits exactly
// one buy signal, not five.
func TestS4_ImbalanceDebounce(t *testing.T) {
	e := newTestEngine()
	start := time.Unix(1_700_000_000, 0)

	e.ApplyDepth(DepthFrame{
		Bids: []DepthEntry{{Price: 100.00, Qty: 8.0}},
		Asks: []DepthEntry{{Price: 101.00, Qty: 2.0}},
	}, start)

	var all []Signal
	for i := 1; i <= 6; i++ {
		now := start.Add(time.Duration(i) * 100 * time.Millisecond)
		all = append(all, e.Tick(now)...)
	}

	buySignals := 0
	for _, s := range all {
		if s.Type == "buy" {
			buySignals++
		}
	}
	if buySignals != 1 {
		t.Fatalf("expected exactly one buy signal across six 100ms ticks, got %d (%+v)", buySignals, all)
	}
}

// TestInvariant_NoAskBelowBestAsk verifies spec.md §3 invariant 3: after
// the cross-side sweep, no price below the new best ask may still carry
// nonzero ask quantity.
func TestInvariant_NoAskBelowBestAsk(t *testing.T) {
	e := newTestEngine()
	now := time.Unix(1_700_000_000, 0)

	e.ApplyDepth(DepthFrame{
		Bids: []DepthEntry{{Price: 99.00, Qty: 1.0}},
		Asks: []DepthEntry{{Price: 100.00, Qty: 1.0}, {Price: 101.00, Qty: 1.0}},
	}, now)

	// A buy-driven print raises the effective best bid to 100.50, which
	// must sweep the stale ask resting at 100.00.
	e.ApplyDepth(DepthFrame{
		Bids: []DepthEntry{{Price: 100.50, Qty: 1.0}},
		Asks: []DepthEntry{{Price: 101.00, Qty: 1.0}},
	}, now.Add(time.Second))

	bestAsk, ok := e.BestAsk()
	if !ok || bestAsk != 101.00 {
		t.Fatalf("expected best ask 101.00, got %v (%v)", bestAsk, ok)
	}
	snap := e.SnapshotDepth(10)
	for _, ask := range snap.Asks {
		if ask.Price < bestAsk {
			t.Fatalf("invariant violated: ask at %v below best ask %v still nonzero", ask.Price, bestAsk)
		}
	}
}

func TestApplyBookTickerDoesNotMutateVolumes(t *testing.T) {
	e := newTestEngine()
	now := time.Unix(1_700_000_000, 0)
	e.ApplyTrade(TradeFrame{Price: 100.00, Qty: 1.0, Side: "buy", TimestampMs: now.UnixMilli()})

	before, _ := e.orderFlowAtLocked(100.00)
	beforeVol := before.RealtimeTrade.BuyVolume

	e.ApplyBookTicker(BookTickerFrame{BidPrice: 99, BidSize: 1, AskPrice: 101, AskSize: 1})
	e.ApplyBookTicker(BookTickerFrame{BidPrice: 99, BidSize: 1, AskPrice: 101, AskSize: 1})

	after, _ := e.orderFlowAtLocked(100.00)
	if after.RealtimeTrade.BuyVolume != beforeVol {
		t.Fatalf("expected book-ticker application to leave trade volumes untouched")
	}
	bestBid, _ := e.BestBid()
	if bestBid != 99 {
		t.Fatalf("expected idempotent book-ticker application, got best bid %v", bestBid)
	}
}
