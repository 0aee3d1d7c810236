package venue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Bybit v5 linear-perpetual public stream decoder. Topics are
// "orderbook.50.<symbol>" and "publicTrade.<symbol>"; Bybit's linear
// contracts carry no inverse conversion.
type Bybit struct{}

func (Bybit) Name() string     { return "bybit" }
func (Bybit) Endpoint() string { return "wss://stream.bybit.com/v5/public/linear" }

func (Bybit) SymbolTransform(canonical string) string {
	return strings.ToUpper(canonical)
}

func (b Bybit) SubscribeMessages(canonical string, streams []Stream) ([][]byte, error) {
	sym := b.SymbolTransform(canonical)
	var topics []string
	for _, s := range streams {
		switch s {
		case StreamDepth:
			topics = append(topics, "orderbook.50."+sym)
		case StreamTrades:
			topics = append(topics, "publicTrade."+sym)
		case StreamBookTicker:
			topics = append(topics, "tickers."+sym)
		}
	}
	raw, err := json.Marshal(map[string]any{"op": "subscribe", "args": topics})
	if err != nil {
		return nil, err
	}
	return [][]byte{raw}, nil
}

func (Bybit) HeartbeatMessage() ([]byte, bool) {
	raw, _ := json.Marshal(map[string]any{"op": "ping"})
	return raw, true
}
func (Bybit) PingInterval() time.Duration { return 20 * time.Second }

type bybitEnvelope struct {
	Topic string `json:"topic"`
}

func bybitTopicPrefix(raw []byte) string {
	var env bybitEnvelope
	_ = json.Unmarshal(raw, &env)
	idx := strings.IndexByte(env.Topic, '.')
	if idx < 0 {
		return env.Topic
	}
	return env.Topic[:idx]
}

func (Bybit) IsDepthMessage(raw []byte) bool      { return bybitTopicPrefix(raw) == "orderbook" }
func (Bybit) IsTradeMessage(raw []byte) bool      { return bybitTopicPrefix(raw) == "publicTrade" }
func (Bybit) IsBookTickerMessage(raw []byte) bool { return bybitTopicPrefix(raw) == "tickers" }

type bybitDepthData struct {
	Bids [][2]string `json:"b"`
	Asks [][2]string `json:"a"`
	Seq  int64       `json:"seq"`
}

type bybitDepthEnvelope struct {
	Data bybitDepthData `json:"data"`
}

func (Bybit) ParseDepth(raw []byte) (map[string]any, error) {
	var env bybitDepthEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bybit depth: %w", err)
	}
	bids, err := levelsFromStringPairs(env.Data.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := levelsFromStringPairs(env.Data.Asks)
	if err != nil {
		return nil, err
	}
	return map[string]any{"bids": bids, "asks": asks, "update_id": float64(env.Data.Seq)}, nil
}

type bybitTradeData struct {
	Price string `json:"p"`
	Size  string `json:"v"`
	Side  string `json:"S"`
	Ts    int64  `json:"T"`
	TrID  string `json:"i"`
}

type bybitTradeEnvelope struct {
	Data []bybitTradeData `json:"data"`
}

func (Bybit) ParseTrade(raw []byte) (map[string]any, error) {
	var env bybitTradeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bybit trade: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("bybit trade: empty data array")
	}
	t := env.Data[0]
	price, err := parseDecimalField(t.Price)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimalField(t.Size)
	if err != nil {
		return nil, err
	}
	side, err := normalizeTradeSide(strings.ToLower(t.Side))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"price": price, "qty": qty, "side": side,
		"timestamp_ms": float64(t.Ts), "trade_id": t.TrID,
	}, nil
}

type bybitTickerData struct {
	Bid1Price string `json:"bid1Price"`
	Bid1Size  string `json:"bid1Size"`
	Ask1Price string `json:"ask1Price"`
	Ask1Size  string `json:"ask1Size"`
}

type bybitTickerEnvelope struct {
	Data bybitTickerData `json:"data"`
}

func (Bybit) ParseBookTicker(raw []byte) (map[string]any, error) {
	var env bybitTickerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bybit ticker: %w", err)
	}
	if env.Data.Bid1Price == "" || env.Data.Ask1Price == "" {
		return nil, fmt.Errorf("bybit ticker: missing top of book")
	}
	bidPrice, err := parseDecimalField(env.Data.Bid1Price)
	if err != nil {
		return nil, err
	}
	bidSize, err := parseDecimalField(env.Data.Bid1Size)
	if err != nil {
		return nil, err
	}
	askPrice, err := parseDecimalField(env.Data.Ask1Price)
	if err != nil {
		return nil, err
	}
	askSize, err := parseDecimalField(env.Data.Ask1Size)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"bid_price": bidPrice, "bid_size": bidSize,
		"ask_price": askPrice, "ask_size": askSize,
	}, nil
}
