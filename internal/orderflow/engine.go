package orderflow

import (
	"sync"
	"time"

	"github.com/rishav/mdengine/internal/eventmodel"
	"github.com/rishav/mdengine/internal/pricemap"
)

// Engine is the unified per-venue order-flow engine and venue state: the
// spec treats these as one object ("the engine's state and the venue
// state are one object"), so best-bid/best-ask, the trades window, and
// the price ladder all live here rather than in a separate wrapper.
type Engine struct {
	venue  string
	config Config

	mu   sync.RWMutex
	book *pricemap.Tree[*OrderFlow]

	bestBid    float64 // 0 means undefined
	bestAsk    float64
	hasBestBid bool
	hasBestAsk bool

	lastUpdateID    int64
	lastTradeSide   string
	currentPrice    float64
	activeTrades    map[float64]*activeTrade
	tradesWindow    []TradeEntry
	bigOrders       []BigOrder
	recentSignals   []Signal
	stats           Stats

	imbalanceHoldSide  string
	imbalanceHoldSince time.Time
	lastImbalanceEval  time.Time
	lastCancelEval     time.Time
	lastBigOrderScan   time.Time
	lastExpirySweep    time.Time
	lastHistoryReset   int // day-of-year the reset last ran, -1 if never
}

// New creates an engine for one venue.
func New(venue string, config Config) *Engine {
	return &Engine{
		venue:            venue,
		config:           config,
		book:             pricemap.New[*OrderFlow](),
		activeTrades:     make(map[float64]*activeTrade),
		lastHistoryReset: -1,
	}
}

func (e *Engine) Venue() string { return e.venue }

// Handle dispatches a canonical event to the relevant frame-application
// method. Any other kind is a no-op, per spec.md §4.6.
func (e *Engine) Handle(event eventmodel.Event, now time.Time) []Signal {
	switch event.Kind {
	case eventmodel.DepthUpdate:
		frame, ok := depthFrameFromPayload(event.Payload)
		if !ok {
			e.mu.Lock()
			e.stats.MalformedDropped++
			e.mu.Unlock()
			return nil
		}
		return e.ApplyDepth(frame, now)
	case eventmodel.Trade:
		frame, ok := tradeFrameFromPayload(event.Payload)
		if !ok {
			e.mu.Lock()
			e.stats.MalformedDropped++
			e.mu.Unlock()
			return nil
		}
		e.ApplyTrade(frame)
		return nil
	case eventmodel.BookTicker:
		frame, ok := bookTickerFromPayload(event.Payload)
		if !ok {
			e.mu.Lock()
			e.stats.MalformedDropped++
			e.mu.Unlock()
			return nil
		}
		e.ApplyBookTicker(frame)
		return nil
	case eventmodel.TickPrice:
		if price, ok := event.Payload["price"].(float64); ok {
			e.mu.Lock()
			e.currentPrice = price
			e.mu.Unlock()
		}
		return nil
	default:
		return nil
	}
}

func (e *Engine) getOrCreate(price float64) (*OrderFlow, pricemap.Price, bool) {
	pp, err := pricemap.NewPrice(price)
	if err != nil {
		return nil, pricemap.Price{}, false
	}
	if existing, ok := e.book.Get(pp); ok {
		return existing, pp, true
	}
	of := &OrderFlow{}
	e.book.Upsert(pp, of)
	return of, pp, true
}

// ApplyDepth applies a depth frame per spec.md §4.6: determine new top of
// book, cross-side sweep, per-entry true-cancellation accounting, update
// best bid/ask, then clear the active-trade buffer.
func (e *Engine) ApplyDepth(frame DepthFrame, now time.Time) []Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	if frame.UpdateID != 0 && e.lastUpdateID != 0 && frame.UpdateID < e.lastUpdateID {
		e.stats.UpdateIDRegressions++
		return nil
	}
	if frame.UpdateID != 0 {
		e.lastUpdateID = frame.UpdateID
	}

	newBestBid, hasBid := firstUsable(frame.Bids)
	newBestAsk, hasAsk := firstUsable(frame.Asks)

	nowMs := now.UnixMilli()

	// Cross-side sweep: zero the ask side for every price <= new best
	// bid, and the bid side for every price >= new best ask, touching
	// only levels that actually carry nonzero opposite-side quantity.
	// The pre-sweep quantity of every touched level is captured here so
	// applyDepthEntry's cancellation math below still sees this frame's
	// starting state even for a price the sweep already zeroed — without
	// this, a level that is both swept and explicitly reported in the
	// same frame would always compute trueCancel as 0.
	sweptAskPrev := make(map[float64]float64)
	sweptBidPrev := make(map[float64]float64)
	if hasBid {
		if bound, err := pricemap.NewPrice(newBestBid); err == nil {
			e.book.AscendLEQ(bound, func(price pricemap.Price, of *OrderFlow) bool {
				if of.Level.Ask > 0 {
					sweptAskPrev[price.Float64()] = of.Level.Ask
					of.Level.Ask = 0
					of.Level.TimestampMs = nowMs
				}
				return true
			})
		}
	}
	if hasAsk {
		if bound, err := pricemap.NewPrice(newBestAsk); err == nil {
			e.book.DescendGEQ(bound, func(price pricemap.Price, of *OrderFlow) bool {
				if of.Level.Bid > 0 {
					sweptBidPrev[price.Float64()] = of.Level.Bid
					of.Level.Bid = 0
					of.Level.TimestampMs = nowMs
				}
				return true
			})
		}
	}

	for _, entry := range frame.Bids {
		e.applyDepthEntry(entry, true, nowMs, sweptBidPrev)
	}
	for _, entry := range frame.Asks {
		e.applyDepthEntry(entry, false, nowMs, sweptAskPrev)
	}

	if hasBid {
		e.bestBid = newBestBid
		e.hasBestBid = true
	}
	if hasAsk {
		e.bestAsk = newBestAsk
		e.hasBestAsk = true
	}

	e.activeTrades = make(map[float64]*activeTrade)

	e.stats.DepthUpdates++
	e.stats.LastUpdateMs = nowMs

	return e.evaluateSignalsLocked(now)
}

func firstUsable(entries []DepthEntry) (float64, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	return entries[0].Price, true
}

// applyDepthEntry performs the per-entry true-cancellation accounting
// from spec.md §4.6 step 3. Must be called with e.mu held. sweptPrev
// carries each level's quantity as it stood before this frame's
// cross-side sweep ran, keyed by price — the sweep may have already
// zeroed of.Level for a price this frame also reports explicitly, so
// the cancellation math below must use the pre-sweep value, not the
// (possibly already-zeroed) current one.
func (e *Engine) applyDepthEntry(entry DepthEntry, isBid bool, nowMs int64, sweptPrev map[float64]float64) {
	of, pp, ok := e.getOrCreate(entry.Price)
	if !ok {
		return
	}

	var previousQty float64
	if prev, swept := sweptPrev[entry.Price]; swept {
		previousQty = prev
	} else if isBid {
		previousQty = of.Level.Bid
	} else {
		previousQty = of.Level.Ask
	}

	matched := 0.0
	if at, ok := e.activeTrades[entry.Price]; ok {
		if isBid {
			matched = at.sellVolume // sell-side trades consume resting bid liquidity
		} else {
			matched = at.buyVolume // buy-side trades consume resting ask liquidity
		}
	}

	switch {
	case entry.Qty == 0:
		trueCancel := previousQty - matched
		if trueCancel < 0 {
			trueCancel = 0
		}
		if trueCancel > 0 {
			if isBid {
				of.RealtimeCancel.BidCancel += trueCancel
			} else {
				of.RealtimeCancel.AskCancel += trueCancel
			}
			of.RealtimeCancel.TimestampMs = nowMs
		}
		if isBid {
			of.Level.Bid = 0
		} else {
			of.Level.Ask = 0
		}
		of.Level.TimestampMs = nowMs

	case entry.Qty < previousQty:
		trueCancel := previousQty - entry.Qty - matched
		if trueCancel < 0 {
			trueCancel = 0
		}
		if trueCancel > 0 {
			if isBid {
				of.RealtimeCancel.BidCancel += trueCancel
			} else {
				of.RealtimeCancel.AskCancel += trueCancel
			}
			of.RealtimeCancel.TimestampMs = nowMs
		}
		if isBid {
			of.Level.Bid = entry.Qty
		} else {
			of.Level.Ask = entry.Qty
		}
		of.Level.TimestampMs = nowMs

	default: // growth or unchanged
		if isBid {
			of.Level.Bid = entry.Qty
		} else {
			of.Level.Ask = entry.Qty
		}
		of.Level.TimestampMs = nowMs
	}

	_ = pp
}

// ApplyTrade applies a trade frame per spec.md §4.6.
func (e *Engine) ApplyTrade(frame TradeFrame) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowMs := frame.TimestampMs
	if nowMs == 0 {
		nowMs = eventmodel.NowMs()
	}

	entry := TradeEntry{
		Price:       frame.Price,
		Qty:         frame.Qty,
		Side:        frame.Side,
		TimestampMs: nowMs,
		TradeID:     frame.TradeID,
	}
	e.tradesWindow = append(e.tradesWindow, entry)
	if len(e.tradesWindow) > e.config.TradesWindowSize {
		overflow := len(e.tradesWindow) - e.config.TradesWindowSize
		e.tradesWindow = e.tradesWindow[overflow:]
	}

	of, _, ok := e.getOrCreate(frame.Price)
	if ok {
		if frame.Side == "buy" {
			of.RealtimeTrade.BuyVolume += frame.Qty
			of.HistoryTrade.BuyVolume += frame.Qty
		} else {
			of.RealtimeTrade.SellVolume += frame.Qty
			of.HistoryTrade.SellVolume += frame.Qty
		}
		of.RealtimeTrade.TimestampMs = nowMs
		of.HistoryTrade.TimestampMs = nowMs

		at, ok := e.activeTrades[frame.Price]
		if !ok {
			at = &activeTrade{}
			e.activeTrades[frame.Price] = at
		}
		if frame.Side == "buy" {
			at.buyVolume += frame.Qty
		} else {
			at.sellVolume += frame.Qty
		}
	}

	e.lastTradeSide = frame.Side
	e.currentPrice = frame.Price
	e.stats.Trades++
	e.stats.LastUpdateMs = nowMs
}

// ApplyBookTicker overwrites best bid/ask directly without mutating
// order-flow volumes.
func (e *Engine) ApplyBookTicker(frame BookTickerFrame) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bestBid = frame.BidPrice
	e.hasBestBid = frame.BidPrice > 0
	e.bestAsk = frame.AskPrice
	e.hasBestAsk = frame.AskPrice > 0
	e.stats.BookTickerUpdates++
	e.stats.LastUpdateMs = eventmodel.NowMs()
}

// BestBid returns the current best bid, if defined.
func (e *Engine) BestBid() (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bestBid, e.hasBestBid
}

// BestAsk returns the current best ask, if defined.
func (e *Engine) BestAsk() (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bestAsk, e.hasBestAsk
}

// Snapshot is an immutable copy of the book's top levels.
type Snapshot struct {
	Venue   string
	BestBid float64
	BestAsk float64
	Bids    []PriceQty
	Asks    []PriceQty
}

// PriceQty is one displayed level in a Snapshot.
type PriceQty struct {
	Price float64
	Qty   float64
}

// SnapshotDepth returns bids sorted descending and asks ascending,
// each truncated to depth.
func (e *Engine) SnapshotDepth(depth int) Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{Venue: e.venue, BestBid: e.bestBid, BestAsk: e.bestAsk}

	e.book.ForEachDescending(func(price pricemap.Price, of *OrderFlow) bool {
		if of.Level.Bid > 0 && len(snap.Bids) < depth {
			snap.Bids = append(snap.Bids, PriceQty{Price: price.Float64(), Qty: of.Level.Bid})
		}
		return len(snap.Bids) < depth
	})
	e.book.ForEachAscending(func(price pricemap.Price, of *OrderFlow) bool {
		if of.Level.Ask > 0 && len(snap.Asks) < depth {
			snap.Asks = append(snap.Asks, PriceQty{Price: price.Float64(), Qty: of.Level.Ask})
		}
		return len(snap.Asks) < depth
	})

	return snap
}

// RecentTrades returns up to the last n trades, newest last.
func (e *Engine) RecentTrades(n int) []TradeEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if n <= 0 || n > len(e.tradesWindow) {
		n = len(e.tradesWindow)
	}
	out := make([]TradeEntry, n)
	copy(out, e.tradesWindow[len(e.tradesWindow)-n:])
	return out
}

// TradesInRange returns trades with t0 <= TimestampMs <= t1.
func (e *Engine) TradesInRange(t0, t1 int64) []TradeEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []TradeEntry
	for _, tr := range e.tradesWindow {
		if tr.TimestampMs >= t0 && tr.TimestampMs <= t1 {
			out = append(out, tr)
		}
	}
	return out
}

// StatsSnapshot returns a point-in-time counter read.
func (e *Engine) StatsSnapshot() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// BigOrders returns the current big-order table.
func (e *Engine) BigOrders() []BigOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]BigOrder, len(e.bigOrders))
	copy(out, e.bigOrders)
	return out
}

// RecentSignals returns the bounded recent-signal buffer.
func (e *Engine) RecentSignals() []Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Signal, len(e.recentSignals))
	copy(out, e.recentSignals)
	return out
}

const maxRecentSignals = 200

func (e *Engine) recordSignal(s Signal) {
	e.recentSignals = append(e.recentSignals, s)
	if len(e.recentSignals) > maxRecentSignals {
		e.recentSignals = e.recentSignals[len(e.recentSignals)-maxRecentSignals:]
	}
}
