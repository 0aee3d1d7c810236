package venue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Coinbase Exchange (ws-feed) decoder: level2 channel for depth, match
// channel for trades. Coinbase has no book-ticker push; ParseBookTicker
// is unreachable because IsBookTickerMessage always reports false.
type Coinbase struct{}

func (Coinbase) Name() string     { return "coinbase" }
func (Coinbase) Endpoint() string { return "wss://ws-feed.exchange.coinbase.com" }

func (Coinbase) SymbolTransform(canonical string) string {
	// BTCUSDT -> BTC-USD (Coinbase Exchange quotes in USD, not USDT)
	if strings.HasSuffix(canonical, "USDT") {
		return canonical[:len(canonical)-4] + "-USD"
	}
	return canonical
}

func (c Coinbase) SubscribeMessages(canonical string, streams []Stream) ([][]byte, error) {
	productID := c.SymbolTransform(canonical)
	var channels []string
	for _, s := range streams {
		switch s {
		case StreamDepth:
			channels = append(channels, "level2")
		case StreamTrades:
			channels = append(channels, "matches")
		}
	}
	raw, err := json.Marshal(map[string]any{
		"type":        "subscribe",
		"product_ids": []string{productID},
		"channels":    channels,
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{raw}, nil
}

func (Coinbase) HeartbeatMessage() ([]byte, bool) { return nil, false }
func (Coinbase) PingInterval() time.Duration      { return 30 * time.Second }

type coinbaseEnvelope struct {
	Type string `json:"type"`
}

func coinbaseType(raw []byte) string {
	var env coinbaseEnvelope
	_ = json.Unmarshal(raw, &env)
	return env.Type
}

func (Coinbase) IsDepthMessage(raw []byte) bool {
	t := coinbaseType(raw)
	return t == "l2update" || t == "snapshot"
}
func (Coinbase) IsTradeMessage(raw []byte) bool {
	t := coinbaseType(raw)
	return t == "match" || t == "last_match"
}
func (Coinbase) IsBookTickerMessage(raw []byte) bool { return false }

type coinbaseL2Update struct {
	Type    string     `json:"type"`
	Changes [][]string `json:"changes"` // [side, price, size]
}

func (Coinbase) ParseDepth(raw []byte) (map[string]any, error) {
	var env coinbaseL2Update
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("coinbase l2update: %w", err)
	}
	var bids, asks []any
	for _, ch := range env.Changes {
		if len(ch) != 3 {
			return nil, fmt.Errorf("coinbase l2update: malformed change %v", ch)
		}
		price, err := parseDecimalField(ch[1])
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimalField(ch[2])
		if err != nil {
			return nil, err
		}
		switch ch[0] {
		case "buy":
			bids = append(bids, depthEntry(price, qty))
		case "sell":
			asks = append(asks, depthEntry(price, qty))
		default:
			return nil, fmt.Errorf("coinbase l2update: unrecognized side %q", ch[0])
		}
	}
	return map[string]any{"bids": bids, "asks": asks, "update_id": float64(0)}, nil
}

type coinbaseMatch struct {
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"` // side of the resting (maker) order
	Time      string `json:"time"`
	TradeID   int64  `json:"trade_id"`
}

func (Coinbase) ParseTrade(raw []byte) (map[string]any, error) {
	var m coinbaseMatch
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("coinbase match: %w", err)
	}
	price, err := parseDecimalField(m.Price)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimalField(m.Size)
	if err != nil {
		return nil, err
	}
	// Coinbase's "side" names the resting (maker) order's side; the
	// aggressor (taker) side is the opposite, matching spec.md §4.4's
	// taker-direction convention.
	var side string
	switch m.Side {
	case "buy":
		side = "sell"
	case "sell":
		side = "buy"
	default:
		return nil, fmt.Errorf("coinbase match: unrecognized side %q", m.Side)
	}
	ts, err := time.Parse(time.RFC3339Nano, m.Time)
	if err != nil {
		return nil, fmt.Errorf("coinbase match: parsing time: %w", err)
	}
	return map[string]any{
		"price": price, "qty": qty, "side": side,
		"timestamp_ms": float64(ts.UnixMilli()),
		"trade_id":     fmt.Sprintf("%d", m.TradeID),
	}, nil
}

func (Coinbase) ParseBookTicker(raw []byte) (map[string]any, error) {
	return nil, fmt.Errorf("coinbase: book ticker not supported")
}
