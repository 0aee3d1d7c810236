package venue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Binance futures (fstream.binance.com) decoder. Spot-equivalent
// contract size is 1 (pass-through); this targets the USDT-margined
// perpetual stream, which is linear (no inverse conversion needed).
type Binance struct{}

func (Binance) Name() string     { return "binance" }
func (Binance) Endpoint() string { return "wss://fstream.binance.com/ws" }

func (Binance) SymbolTransform(canonical string) string {
	return strings.ToLower(canonical)
}

func (b Binance) SubscribeMessages(canonical string, streams []Stream) ([][]byte, error) {
	sym := b.SymbolTransform(canonical)
	var names []string
	for _, s := range streams {
		switch s {
		case StreamDepth:
			names = append(names, sym+"@depth@100ms")
		case StreamTrades:
			names = append(names, sym+"@trade")
		case StreamBookTicker:
			names = append(names, sym+"@bookTicker")
		}
	}
	payload := map[string]any{
		"method": "SUBSCRIBE",
		"params": names,
		"id":     1,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return [][]byte{raw}, nil
}

func (Binance) HeartbeatMessage() ([]byte, bool) { return nil, false } // protocol-level ping/pong
func (Binance) PingInterval() time.Duration      { return 0 }

type binanceEnvelope struct {
	Event string `json:"e"`
}

func binanceEvent(raw []byte) string {
	var env binanceEnvelope
	_ = json.Unmarshal(raw, &env)
	return env.Event
}

func (Binance) IsDepthMessage(raw []byte) bool      { return binanceEvent(raw) == "depthUpdate" }
func (Binance) IsTradeMessage(raw []byte) bool      { return binanceEvent(raw) == "trade" }
func (Binance) IsBookTickerMessage(raw []byte) bool { return binanceEvent(raw) == "bookTicker" }

type binanceDepth struct {
	Bids [][2]string `json:"b"`
	Asks [][2]string `json:"a"`
	U    int64       `json:"u"`
}

func (Binance) ParseDepth(raw []byte) (map[string]any, error) {
	var d binanceDepth
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("binance depth: %w", err)
	}
	bids, err := levelsFromStringPairs(d.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := levelsFromStringPairs(d.Asks)
	if err != nil {
		return nil, err
	}
	return map[string]any{"bids": bids, "asks": asks, "update_id": float64(d.U)}, nil
}

type binanceTrade struct {
	Price     string `json:"p"`
	Qty       string `json:"q"`
	Maker     bool   `json:"m"`
	TradeID   int64  `json:"t"`
	TradeTime int64  `json:"T"`
}

func (Binance) ParseTrade(raw []byte) (map[string]any, error) {
	var tr binanceTrade
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("binance trade: %w", err)
	}
	price, err := parseDecimalField(tr.Price)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimalField(tr.Qty)
	if err != nil {
		return nil, err
	}
	side, err := normalizeTradeSide(tr.Maker)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"price": price, "qty": qty, "side": side,
		"timestamp_ms": float64(tr.TradeTime),
		"trade_id":     fmt.Sprintf("%d", tr.TradeID),
	}, nil
}

type binanceBookTicker struct {
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func (Binance) ParseBookTicker(raw []byte) (map[string]any, error) {
	var bt binanceBookTicker
	if err := json.Unmarshal(raw, &bt); err != nil {
		return nil, fmt.Errorf("binance book ticker: %w", err)
	}
	bidPrice, err := parseDecimalField(bt.BidPrice)
	if err != nil {
		return nil, err
	}
	bidQty, err := parseDecimalField(bt.BidQty)
	if err != nil {
		return nil, err
	}
	askPrice, err := parseDecimalField(bt.AskPrice)
	if err != nil {
		return nil, err
	}
	askQty, err := parseDecimalField(bt.AskQty)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"bid_price": bidPrice, "bid_size": bidQty,
		"ask_price": askPrice, "ask_size": askQty,
	}, nil
}

func levelsFromStringPairs(pairs [][2]string) ([]any, error) {
	out := make([]any, 0, len(pairs))
	for _, pair := range pairs {
		price, err := parseDecimalField(pair[0])
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimalField(pair[1])
		if err != nil {
			return nil, err
		}
		out = append(out, depthEntry(price, qty))
	}
	return out, nil
}
