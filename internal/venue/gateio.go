package venue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Gate.io USDT-margined futures decoder (fx-ws.gateio.ws/v4/ws/usdt).
type Gateio struct{}

func (Gateio) Name() string     { return "gateio" }
func (Gateio) Endpoint() string { return "wss://fx-ws.gateio.ws/v4/ws/usdt" }

func (Gateio) SymbolTransform(canonical string) string {
	// BTCUSDT -> BTC_USDT
	if strings.HasSuffix(canonical, "USDT") {
		return canonical[:len(canonical)-4] + "_USDT"
	}
	return canonical
}

type gateioSubMsg struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event"`
	Payload []string `json:"payload"`
}

func (g Gateio) SubscribeMessages(canonical string, streams []Stream) ([][]byte, error) {
	sym := g.SymbolTransform(canonical)
	var msgs [][]byte
	for _, s := range streams {
		var channel string
		var payload []string
		switch s {
		case StreamDepth:
			channel, payload = "futures.order_book_update", []string{sym, "100ms"}
		case StreamTrades:
			channel, payload = "futures.trades", []string{sym}
		case StreamBookTicker:
			channel, payload = "futures.book_ticker", []string{sym}
		default:
			continue
		}
		raw, err := json.Marshal(gateioSubMsg{Channel: channel, Event: "subscribe", Payload: payload})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, raw)
	}
	return msgs, nil
}

func (Gateio) HeartbeatMessage() ([]byte, bool) {
	raw, _ := json.Marshal(gateioSubMsg{Channel: "futures.ping"})
	return raw, true
}
func (Gateio) PingInterval() time.Duration { return 10 * time.Second }

type gateioEnvelope struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
}

func gateioChannel(raw []byte) (string, string) {
	var env gateioEnvelope
	_ = json.Unmarshal(raw, &env)
	return env.Channel, env.Event
}

func (Gateio) IsDepthMessage(raw []byte) bool {
	ch, ev := gateioChannel(raw)
	return ch == "futures.order_book_update" && ev == "update"
}
func (Gateio) IsTradeMessage(raw []byte) bool {
	ch, ev := gateioChannel(raw)
	return ch == "futures.trades" && ev == "update"
}
func (Gateio) IsBookTickerMessage(raw []byte) bool {
	ch, ev := gateioChannel(raw)
	return ch == "futures.book_ticker" && ev == "update"
}

type gateioDepthLevel struct {
	Price string `json:"p"`
	Size  int64  `json:"s"`
}

type gateioDepthResult struct {
	Bids []gateioDepthLevel `json:"b"`
	Asks []gateioDepthLevel `json:"a"`
	T    int64              `json:"t"`
}

type gateioDepthEnvelope struct {
	Result gateioDepthResult `json:"result"`
}

func (Gateio) ParseDepth(raw []byte) (map[string]any, error) {
	var env gateioDepthEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("gateio depth: %w", err)
	}
	bids, err := gateioLevels(env.Result.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := gateioLevels(env.Result.Asks)
	if err != nil {
		return nil, err
	}
	return map[string]any{"bids": bids, "asks": asks, "update_id": float64(env.Result.T)}, nil
}

func gateioLevels(levels []gateioDepthLevel) ([]any, error) {
	out := make([]any, 0, len(levels))
	for _, lvl := range levels {
		price, err := parseDecimalField(lvl.Price)
		if err != nil {
			return nil, err
		}
		qty := float64(lvl.Size)
		if qty < 0 {
			qty = -qty
		}
		out = append(out, depthEntry(price, qty))
	}
	return out, nil
}

type gateioTrade struct {
	Size      float64 `json:"size"` // negative means sell (taker sold into the bid)
	Price     string  `json:"price"`
	CreateMs  int64   `json:"create_time_ms"`
	ID        int64   `json:"id"`
}

type gateioTradeEnvelope struct {
	Result []gateioTrade `json:"result"`
}

func (Gateio) ParseTrade(raw []byte) (map[string]any, error) {
	var env gateioTradeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("gateio trade: %w", err)
	}
	if len(env.Result) == 0 {
		return nil, fmt.Errorf("gateio trade: empty result array")
	}
	t := env.Result[0]
	price, err := parseDecimalField(t.Price)
	if err != nil {
		return nil, err
	}
	side := "buy"
	qty := t.Size
	if qty < 0 {
		side = "sell"
		qty = -qty
	}
	return map[string]any{
		"price": price, "qty": qty, "side": side,
		"timestamp_ms": float64(t.CreateMs), "trade_id": fmt.Sprintf("%d", t.ID),
	}, nil
}

type gateioBookTickerResult struct {
	BidPrice string `json:"b"`
	BidSize  string `json:"B"`
	AskPrice string `json:"a"`
	AskSize  string `json:"A"`
}

type gateioBookTickerEnvelope struct {
	Result gateioBookTickerResult `json:"result"`
}

func (Gateio) ParseBookTicker(raw []byte) (map[string]any, error) {
	var env gateioBookTickerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("gateio book ticker: %w", err)
	}
	bidPrice, err := parseDecimalField(env.Result.BidPrice)
	if err != nil {
		return nil, err
	}
	bidSize, err := parseDecimalField(env.Result.BidSize)
	if err != nil {
		return nil, err
	}
	askPrice, err := parseDecimalField(env.Result.AskPrice)
	if err != nil {
		return nil, err
	}
	askSize, err := parseDecimalField(env.Result.AskSize)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"bid_price": bidPrice, "bid_size": bidSize,
		"ask_price": askPrice, "ask_size": askSize,
	}, nil
}
