package orderflow

// depthFrameFromPayload extracts a DepthFrame from a decoder's canonical
// JSON-equivalent payload. An absent bids or asks side is read as empty;
// any other missing or unparsable field returns false — the caller counts
// this as a malformed-payload drop rather than
// propagating an error, per spec.md §4.6.
func depthFrameFromPayload(payload map[string]any) (DepthFrame, bool) {
	bids, ok := depthEntriesFrom(payload["bids"])
	if !ok {
		return DepthFrame{}, false
	}
	asks, ok := depthEntriesFrom(payload["asks"])
	if !ok {
		return DepthFrame{}, false
	}

	var updateID int64
	if raw, ok := payload["update_id"]; ok {
		if v, ok := raw.(float64); ok {
			updateID = int64(v)
		} else if v, ok := raw.(int64); ok {
			updateID = v
		}
	}

	return DepthFrame{Bids: bids, Asks: asks, UpdateID: updateID}, true
}

func depthEntriesFrom(raw any) ([]DepthEntry, bool) {
	list, ok := raw.([]DepthEntry)
	if ok {
		return list, true
	}
	anyList, ok := raw.([]any)
	if !ok {
		// Absent side is valid (a frame may update only one side).
		if raw == nil {
			return nil, true
		}
		return nil, false
	}
	out := make([]DepthEntry, 0, len(anyList))
	for _, item := range anyList {
		pair, ok := item.([]float64)
		if ok && len(pair) == 2 {
			out = append(out, DepthEntry{Price: pair[0], Qty: pair[1]})
			continue
		}
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		price, ok1 := m["price"].(float64)
		qty, ok2 := m["qty"].(float64)
		if !ok1 || !ok2 {
			return nil, false
		}
		out = append(out, DepthEntry{Price: price, Qty: qty})
	}
	return out, true
}

func tradeFrameFromPayload(payload map[string]any) (TradeFrame, bool) {
	price, ok1 := payload["price"].(float64)
	qty, ok2 := payload["qty"].(float64)
	side, ok3 := payload["side"].(string)
	if !ok1 || !ok2 || !ok3 {
		return TradeFrame{}, false
	}
	frame := TradeFrame{Price: price, Qty: qty, Side: side}
	if ts, ok := payload["timestamp_ms"].(float64); ok {
		frame.TimestampMs = int64(ts)
	}
	if id, ok := payload["trade_id"].(string); ok {
		frame.TradeID = id
	}
	return frame, true
}

func bookTickerFromPayload(payload map[string]any) (BookTickerFrame, bool) {
	bidPrice, ok1 := payload["bid_price"].(float64)
	bidSize, ok2 := payload["bid_size"].(float64)
	askPrice, ok3 := payload["ask_price"].(float64)
	askSize, ok4 := payload["ask_size"].(float64)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return BookTickerFrame{}, false
	}
	return BookTickerFrame{BidPrice: bidPrice, BidSize: bidSize, AskPrice: askPrice, AskSize: askSize}, true
}
