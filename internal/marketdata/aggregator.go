// Package marketdata implements the basic-layer aggregator (C7) and the
// read-only snapshot interface (C8): a thin multiplexer that routes bus
// events to per-venue order-flow engines, keeps cross-venue counters, and
// composes read-only views for external presenters.
//
// Grounded on the teacher's internal/marketdata/publisher.go subscriber
// fan-out shape, generalized from per-symbol L1/L2/trade channel
// broadcast to venue-keyed engine ownership plus a signal-broadcast hook
// for presenters that want push delivery alongside pull-snapshot reads.
package marketdata

import (
	"sync"
	"time"

	"github.com/rishav/mdengine/internal/eventmodel"
	"github.com/rishav/mdengine/internal/metrics"
	"github.com/rishav/mdengine/internal/orderflow"
)

// GlobalStats mirrors spec.md §4.7's cross-venue counters.
type GlobalStats struct {
	TotalTrades            uint64
	TotalDepthUpdates      uint64
	TotalBookTickerUpdates uint64
	LastUpdateMs           int64
	ActiveExchanges        int
}

// Aggregator owns one orderflow.Engine per venue and maintains the
// cross-venue counters and views spec.md §4.7 describes.
type Aggregator struct {
	mu     sync.RWMutex
	config orderflow.Config
	venues map[string]*orderflow.Engine

	totalTrades            uint64
	totalDepthUpdates      uint64
	totalBookTickerUpdates uint64
	lastUpdateMs           int64

	signalSubsMu sync.RWMutex
	signalSubs   []chan SignalNotification
}

// SignalNotification is pushed to subscribers when C6 derives a signal.
type SignalNotification struct {
	Venue  string
	Signal orderflow.Signal
}

// New creates an aggregator. knownVenues are created eagerly, per
// spec.md §3's lifecycle note ("VenueState is created eagerly at startup
// for the known venue set, then lazily on observing an unknown venue").
func New(config orderflow.Config, knownVenues []string) *Aggregator {
	a := &Aggregator{
		config: config,
		venues: make(map[string]*orderflow.Engine, len(knownVenues)),
	}
	for _, v := range knownVenues {
		a.venues[v] = orderflow.New(v, config)
	}
	return a
}

func (a *Aggregator) engineFor(venue string) *orderflow.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.venues[venue]
	if !ok {
		e = orderflow.New(venue, a.config)
		a.venues[venue] = e
	}
	return e
}

// Handle routes one event to its venue's engine and updates the global
// counters, per spec.md §4.7.
func (a *Aggregator) Handle(event eventmodel.Event) {
	start := time.Now()
	engine := a.engineFor(event.Venue)
	now := time.UnixMilli(event.TimestampMs)
	if event.TimestampMs == 0 {
		now = time.Now()
	}
	signals := engine.Handle(event, now)

	a.mu.Lock()
	switch event.Kind {
	case eventmodel.DepthUpdate:
		a.totalDepthUpdates++
	case eventmodel.Trade:
		a.totalTrades++
	case eventmodel.BookTicker:
		a.totalBookTickerUpdates++
	}
	a.lastUpdateMs = event.TimestampMs
	a.mu.Unlock()

	if bid, ok := engine.BestBid(); ok {
		metrics.BestBid.WithLabelValues(event.Venue).Set(bid)
	}
	if ask, ok := engine.BestAsk(); ok {
		metrics.BestAsk.WithLabelValues(event.Venue).Set(ask)
	}

	for _, s := range signals {
		metrics.SignalsEmitted.WithLabelValues(event.Venue, s.Type).Inc()
		a.publishSignal(event.Venue, s)
	}

	metrics.MessageProcessingLatency.WithLabelValues(event.Kind.String()).Observe(time.Since(start).Seconds())
}

// Tick drives periodic housekeeping (imbalance/cancel/big-order/
// expiration/history-reset) across every known venue engine.
func (a *Aggregator) Tick(now time.Time) {
	a.mu.RLock()
	engines := make([]*orderflow.Engine, 0, len(a.venues))
	for _, e := range a.venues {
		engines = append(engines, e)
	}
	a.mu.RUnlock()

	for _, e := range engines {
		venue := e.Venue()
		for _, s := range e.Tick(now) {
			a.publishSignal(venue, s)
		}
	}
}

func (a *Aggregator) publishSignal(venue string, s orderflow.Signal) {
	a.signalSubsMu.RLock()
	defer a.signalSubsMu.RUnlock()
	for _, ch := range a.signalSubs {
		select {
		case ch <- SignalNotification{Venue: venue, Signal: s}:
		default:
			// Non-blocking: a slow subscriber never stalls ingestion.
		}
	}
}

// SubscribeSignals registers a channel that receives every derived
// signal across all venues, non-blocking on send.
func (a *Aggregator) SubscribeSignals(bufferSize int) <-chan SignalNotification {
	ch := make(chan SignalNotification, bufferSize)
	a.signalSubsMu.Lock()
	a.signalSubs = append(a.signalSubs, ch)
	a.signalSubsMu.Unlock()
	return ch
}

// Engine returns the per-venue engine for direct read access, or nil if
// the venue has not been observed yet.
func (a *Aggregator) Engine(venue string) *orderflow.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.venues[venue]
}

// Venues lists every venue known to the aggregator.
func (a *Aggregator) Venues() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.venues))
	for v := range a.venues {
		out = append(out, v)
	}
	return out
}

// AllSnapshots composes a snapshot per venue.
func (a *Aggregator) AllSnapshots(depth int) map[string]orderflow.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]orderflow.Snapshot, len(a.venues))
	for v, e := range a.venues {
		out[v] = e.SnapshotDepth(depth)
	}
	return out
}

// AllRecentTrades composes up to n recent trades per venue.
func (a *Aggregator) AllRecentTrades(n int) map[string][]orderflow.TradeEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string][]orderflow.TradeEntry, len(a.venues))
	for v, e := range a.venues {
		out[v] = e.RecentTrades(n)
	}
	return out
}

// GlobalStatsSnapshot returns the cross-venue counters, with
// ActiveExchanges counted as venues whose engine holds non-empty state.
func (a *Aggregator) GlobalStatsSnapshot() GlobalStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	active := 0
	for _, e := range a.venues {
		stats := e.StatsSnapshot()
		if stats.DepthUpdates > 0 || stats.Trades > 0 || stats.BookTickerUpdates > 0 {
			active++
		}
	}

	return GlobalStats{
		TotalTrades:            a.totalTrades,
		TotalDepthUpdates:      a.totalDepthUpdates,
		TotalBookTickerUpdates: a.totalBookTickerUpdates,
		LastUpdateMs:           a.lastUpdateMs,
		ActiveExchanges:        active,
	}
}
