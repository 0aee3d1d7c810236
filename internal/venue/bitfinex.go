package venue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Bitfinex v2 decoder. Bitfinex multiplexes channels onto small integer
// channel IDs assigned at subscribe time and pushes data as bare JSON
// arrays, not objects, so classification and parsing here work off
// array shape rather than a named field.
type Bitfinex struct{}

func (Bitfinex) Name() string     { return "bitfinex" }
func (Bitfinex) Endpoint() string { return "wss://api-pub.bitfinex.com/ws/2" }

func (Bitfinex) SymbolTransform(canonical string) string {
	// BTCUSDT -> tBTCUSD (Bitfinex perpetuals trade against USD, prefixed "t")
	sym := canonical
	if strings.HasSuffix(sym, "USDT") {
		sym = sym[:len(sym)-4] + "USD"
	}
	return "t" + sym
}

func (b Bitfinex) SubscribeMessages(canonical string, streams []Stream) ([][]byte, error) {
	sym := b.SymbolTransform(canonical)
	var msgs [][]byte
	for _, s := range streams {
		var payload map[string]any
		switch s {
		case StreamDepth:
			payload = map[string]any{"event": "subscribe", "channel": "book", "symbol": sym, "prec": "P0"}
		case StreamTrades:
			payload = map[string]any{"event": "subscribe", "channel": "trades", "symbol": sym}
		default:
			continue
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, raw)
	}
	return msgs, nil
}

func (Bitfinex) HeartbeatMessage() ([]byte, bool) { return nil, false }
func (Bitfinex) PingInterval() time.Duration      { return 15 * time.Second }

// decodeBitfinexArray decodes the outer [chanID, payload-or-"hb"] shape shared
// by every data push; payload itself varies by channel (a nested array
// for book snapshots/updates, or ["te"/"tu", [...]] for trades).
func decodeBitfinexArray(raw []byte) ([]any, bool) {
	var arr []any
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 2 {
		return nil, false
	}
	return arr, true
}

func (Bitfinex) IsDepthMessage(raw []byte) bool {
	arr, ok := decodeBitfinexArray(raw)
	if !ok {
		return false
	}
	// A book update/snapshot's second element is a nested array of
	// numbers (price, count, amount), never the "te"/"tu" tag string.
	switch v := arr[1].(type) {
	case []any:
		return len(v) > 0
	case string:
		return false
	default:
		_ = v
		return false
	}
}

func (Bitfinex) IsTradeMessage(raw []byte) bool {
	arr, ok := decodeBitfinexArray(raw)
	if !ok || len(arr) < 3 {
		return false
	}
	tag, ok := arr[1].(string)
	return ok && tag == "te"
}

func (Bitfinex) IsBookTickerMessage(raw []byte) bool { return false }

func (Bitfinex) ParseDepth(raw []byte) (map[string]any, error) {
	arr, ok := decodeBitfinexArray(raw)
	if !ok {
		return nil, fmt.Errorf("bitfinex book: malformed envelope")
	}
	levels, ok := arr[1].([]any)
	if !ok {
		return nil, fmt.Errorf("bitfinex book: malformed payload")
	}
	// A snapshot is a list of levels; an update is a single level. Treat
	// both uniformly by checking whether the first element is itself a
	// slice.
	var raws [][]any
	if len(levels) > 0 {
		if _, isNested := levels[0].([]any); isNested {
			for _, l := range levels {
				if nested, ok := l.([]any); ok {
					raws = append(raws, nested)
				}
			}
		} else {
			raws = append(raws, levels)
		}
	}

	var bids, asks []any
	for _, lvl := range raws {
		if len(lvl) != 3 {
			return nil, fmt.Errorf("bitfinex book: malformed level %v", lvl)
		}
		price, ok1 := lvl[0].(float64)
		count, ok2 := lvl[1].(float64)
		amount, ok3 := lvl[2].(float64)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("bitfinex book: non-numeric level %v", lvl)
		}
		qty := amount
		if qty < 0 {
			qty = -qty
		}
		if count == 0 {
			qty = 0 // level removed
		}
		if amount > 0 {
			bids = append(bids, depthEntry(price, qty))
		} else {
			asks = append(asks, depthEntry(price, qty))
		}
	}
	return map[string]any{"bids": bids, "asks": asks, "update_id": float64(0)}, nil
}

func (Bitfinex) ParseTrade(raw []byte) (map[string]any, error) {
	arr, ok := decodeBitfinexArray(raw)
	if !ok || len(arr) < 3 {
		return nil, fmt.Errorf("bitfinex trade: malformed envelope")
	}
	tag, _ := arr[1].(string)
	if tag != "te" {
		return nil, fmt.Errorf("bitfinex trade: ignoring tag %q", tag)
	}
	fields, ok := arr[2].([]any)
	if !ok || len(fields) != 4 {
		return nil, fmt.Errorf("bitfinex trade: malformed fields %v", fields)
	}
	id, ok1 := fields[0].(float64)
	mts, ok2 := fields[1].(float64)
	amount, ok3 := fields[2].(float64)
	price, ok4 := fields[3].(float64)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("bitfinex trade: non-numeric fields %v", fields)
	}
	side := "buy"
	if amount < 0 {
		side = "sell"
		amount = -amount
	}
	return map[string]any{
		"price": price, "qty": amount, "side": side,
		"timestamp_ms": mts, "trade_id": fmt.Sprintf("%d", int64(id)),
	}, nil
}

func (Bitfinex) ParseBookTicker(raw []byte) (map[string]any, error) {
	return nil, fmt.Errorf("bitfinex: book ticker not supported")
}
