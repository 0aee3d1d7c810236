package orderflow

import (
	"time"

	"github.com/rishav/mdengine/internal/pricemap"
)

// Tick drives the engine's time-based housekeeping: imbalance/cancel
// signal evaluation, the big-order scan, the expiration sweep, and the
// daily history reset. Call it periodically (e.g. every 100ms) from the
// aggregator; it is also invoked opportunistically after every applied
// depth frame.
func (e *Engine) Tick(now time.Time) []Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluateSignalsLocked(now)
}

func (e *Engine) evaluateSignalsLocked(now time.Time) []Signal {
	var emitted []Signal

	if now.Sub(e.lastImbalanceEval) >= 500*time.Millisecond {
		e.lastImbalanceEval = now
		if s, ok := e.evaluateImbalanceLocked(now); ok {
			emitted = append(emitted, s)
		}
	}

	if now.Sub(e.lastCancelEval) >= 500*time.Millisecond {
		e.lastCancelEval = now
		emitted = append(emitted, e.evaluateCancelPressureLocked(now)...)
	}

	if now.Sub(e.lastBigOrderScan) >= 1*time.Second {
		e.lastBigOrderScan = now
		emitted = append(emitted, e.scanBigOrdersAndIcebergsLocked(now)...)
	}

	if now.Sub(e.lastExpirySweep) >= e.config.ExpirationSweepPeriod {
		e.lastExpirySweep = now
		e.expirationSweepLocked(now)
	}

	if utc := now.UTC(); utc.Hour() == e.config.HistoryResetHour && utc.YearDay() != e.lastHistoryReset {
		e.lastHistoryReset = utc.YearDay()
		e.resetHistoryLocked()
	}

	for _, s := range emitted {
		e.recordSignal(s)
	}
	return emitted
}

// evaluateImbalanceLocked implements spec.md §4.6's debounced imbalance
// signal: a side's ratio must hold >= threshold continuously for at
// least 300ms before it emits, and emitting resets the hold timer.
func (e *Engine) evaluateImbalanceLocked(now time.Time) (Signal, bool) {
	if !e.hasBestBid || !e.hasBestAsk {
		return Signal{}, false
	}
	bidQty := e.levelBidQtyLocked(e.bestBid)
	askQty := e.levelAskQtyLocked(e.bestAsk)
	total := bidQty + askQty
	if total <= 0 {
		e.imbalanceHoldSide = ""
		return Signal{}, false
	}

	bidRatio := bidQty / total
	askRatio := 1 - bidRatio

	var side string
	var ratio float64
	switch {
	case bidRatio >= e.config.ImbalanceThreshold:
		side, ratio = "buy", bidRatio
	case askRatio >= e.config.ImbalanceThreshold:
		side, ratio = "sell", askRatio
	default:
		e.imbalanceHoldSide = ""
		return Signal{}, false
	}

	if e.imbalanceHoldSide != side {
		e.imbalanceHoldSide = side
		e.imbalanceHoldSince = now
		return Signal{}, false
	}

	if now.Sub(e.imbalanceHoldSince) < 300*time.Millisecond {
		return Signal{}, false
	}

	// Debounce: reset the continuous-hold timer so the next emission
	// requires another full hold period.
	e.imbalanceHoldSince = now

	return Signal{TimestampMs: now.UnixMilli(), Type: side, Ratio: ratio}, true
}

// evaluateCancelPressureLocked implements the cancel signal: heavy
// cancellation at the best price implies pressure from the other side.
func (e *Engine) evaluateCancelPressureLocked(now time.Time) []Signal {
	var out []Signal
	if e.hasBestBid {
		if of, ok := e.orderFlowAtLocked(e.bestBid); ok {
			if of.Level.Bid > 0 && of.RealtimeCancel.BidCancel > 0.9*of.Level.Bid {
				out = append(out, Signal{TimestampMs: now.UnixMilli(), Type: "sell", Ratio: of.RealtimeCancel.BidCancel / of.Level.Bid})
			}
		}
	}
	if e.hasBestAsk {
		if of, ok := e.orderFlowAtLocked(e.bestAsk); ok {
			if of.Level.Ask > 0 && of.RealtimeCancel.AskCancel > 0.9*of.Level.Ask {
				out = append(out, Signal{TimestampMs: now.UnixMilli(), Type: "buy", Ratio: of.RealtimeCancel.AskCancel / of.Level.Ask})
			}
		}
	}
	return out
}

// scanBigOrdersAndIcebergsLocked rebuilds the big-order table and emits
// iceberg hints. The top-of-book price is excluded from the big-order
// table to suppress top-of-book noise.
func (e *Engine) scanBigOrdersAndIcebergsLocked(now time.Time) []Signal {
	var signals []Signal
	nowMs := now.UnixMilli()
	bigOrders := make([]BigOrder, 0, len(e.bigOrders))

	e.book.ForEachAscending(func(price pricemap.Price, of *OrderFlow) bool {
		p := price.Float64()

		if of.Level.Bid >= e.config.BigOrderThreshold && !(e.hasBestBid && p == e.bestBid) {
			bigOrders = append(bigOrders, BigOrder{Side: "buy", Price: p, Volume: of.Level.Bid, TimestampMs: nowMs})
		}
		if of.Level.Ask >= e.config.BigOrderThreshold && !(e.hasBestAsk && p == e.bestAsk) {
			bigOrders = append(bigOrders, BigOrder{Side: "sell", Price: p, Volume: of.Level.Ask, TimestampMs: nowMs})
		}

		if of.Level.Bid >= 5 && of.HistoryTrade.BuyVolume > 2*of.Level.Bid {
			signals = append(signals, Signal{TimestampMs: nowMs, Type: "buy", Ratio: of.HistoryTrade.BuyVolume / of.Level.Bid})
		}
		if of.Level.Ask >= 5 && of.HistoryTrade.SellVolume > 2*of.Level.Ask {
			signals = append(signals, Signal{TimestampMs: nowMs, Type: "sell", Ratio: of.HistoryTrade.SellVolume / of.Level.Ask})
		}
		return true
	})

	e.bigOrders = bigOrders
	return signals
}

// expirationSweepLocked zeroes realtime trade/cancel records past their
// display duration and evicts levels that are fully empty and not the
// current top of book, bounded by MaxTradeRecords evictions per sweep.
func (e *Engine) expirationSweepLocked(now time.Time) {
	nowMs := now.UnixMilli()
	var toEvict []pricemap.Price
	evicted := 0

	e.book.ForEachAscending(func(price pricemap.Price, of *OrderFlow) bool {
		if of.RealtimeTrade.TimestampMs != 0 && nowMs-of.RealtimeTrade.TimestampMs > e.config.TradeDisplayDuration.Milliseconds() {
			of.RealtimeTrade = TradeRecord{}
		}
		if of.RealtimeCancel.TimestampMs != 0 && nowMs-of.RealtimeCancel.TimestampMs > e.config.CancelDisplayDuration.Milliseconds() {
			of.RealtimeCancel = CancelRecord{}
		}

		p := price.Float64()
		isTopOfBook := (e.hasBestBid && p == e.bestBid) || (e.hasBestAsk && p == e.bestAsk)
		if !isTopOfBook && of.isEmpty() && evicted < e.config.MaxTradeRecords {
			toEvict = append(toEvict, price)
			evicted++
		}
		return true
	})

	for _, price := range toEvict {
		e.book.Delete(price)
	}
}

func (e *Engine) resetHistoryLocked() {
	e.book.ForEachAscending(func(price pricemap.Price, of *OrderFlow) bool {
		of.HistoryTrade = TradeRecord{}
		return true
	})
}

func (e *Engine) levelBidQtyLocked(price float64) float64 {
	if of, ok := e.orderFlowAtLocked(price); ok {
		return of.Level.Bid
	}
	return 0
}

func (e *Engine) levelAskQtyLocked(price float64) float64 {
	if of, ok := e.orderFlowAtLocked(price); ok {
		return of.Level.Ask
	}
	return 0
}

func (e *Engine) orderFlowAtLocked(price float64) (*OrderFlow, bool) {
	pp, err := pricemap.NewPrice(price)
	if err != nil {
		return nil, false
	}
	return e.book.Get(pp)
}
