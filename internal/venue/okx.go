package venue

import (
	"encoding/json"
	"fmt"
	"time"
)

// OKX public WebSocket (v5) decoder. OKX envelopes every push as
// {"arg":{"channel":...},"data":[...]}; all its swap/futures instruments
// are linear, so no contract-size conversion is needed here.
type OKX struct{}

func (OKX) Name() string     { return "okx" }
func (OKX) Endpoint() string { return "wss://ws.okx.com:8443/ws/v5/public" }

func (OKX) SymbolTransform(canonical string) string {
	// BTCUSDT -> BTC-USDT-SWAP
	if len(canonical) > 4 && canonical[len(canonical)-4:] == "USDT" {
		base := canonical[:len(canonical)-4]
		return base + "-USDT-SWAP"
	}
	return canonical
}

type okxSubArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

func (o OKX) SubscribeMessages(canonical string, streams []Stream) ([][]byte, error) {
	instID := o.SymbolTransform(canonical)
	var args []okxSubArg
	for _, s := range streams {
		switch s {
		case StreamDepth:
			args = append(args, okxSubArg{Channel: "books", InstID: instID})
		case StreamTrades:
			args = append(args, okxSubArg{Channel: "trades", InstID: instID})
		case StreamBookTicker:
			args = append(args, okxSubArg{Channel: "bbo-tbt", InstID: instID})
		}
	}
	raw, err := json.Marshal(map[string]any{"op": "subscribe", "args": args})
	if err != nil {
		return nil, err
	}
	return [][]byte{raw}, nil
}

func (OKX) HeartbeatMessage() ([]byte, bool) { return []byte("ping"), true }
func (OKX) PingInterval() time.Duration      { return 25 * time.Second }

type okxEnvelope struct {
	Arg struct {
		Channel string `json:"channel"`
	} `json:"arg"`
	Event string `json:"event"`
}

func okxChannel(raw []byte) string {
	var env okxEnvelope
	_ = json.Unmarshal(raw, &env)
	return env.Arg.Channel
}

func (OKX) IsDepthMessage(raw []byte) bool      { return okxChannel(raw) == "books" }
func (OKX) IsTradeMessage(raw []byte) bool      { return okxChannel(raw) == "trades" }
func (OKX) IsBookTickerMessage(raw []byte) bool { return okxChannel(raw) == "bbo-tbt" }

type okxDepthData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Seq  int64      `json:"seqId"`
}

type okxDepthEnvelope struct {
	Data []okxDepthData `json:"data"`
}

func (OKX) ParseDepth(raw []byte) (map[string]any, error) {
	var env okxDepthEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("okx depth: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("okx depth: empty data array")
	}
	d := env.Data[0]
	bids, err := okxLevels(d.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := okxLevels(d.Asks)
	if err != nil {
		return nil, err
	}
	return map[string]any{"bids": bids, "asks": asks, "update_id": float64(d.Seq)}, nil
}

// okxLevels drops OKX's trailing order-count fields, keeping price and
// size (the first two of each four-element level array).
func okxLevels(levels [][]string) ([]any, error) {
	out := make([]any, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("okx depth: malformed level %v", lvl)
		}
		price, err := parseDecimalField(lvl[0])
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimalField(lvl[1])
		if err != nil {
			return nil, err
		}
		out = append(out, depthEntry(price, qty))
	}
	return out, nil
}

type okxTradeData struct {
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Side string `json:"side"`
	Ts   string `json:"ts"`
	TrID string `json:"tradeId"`
}

type okxTradeEnvelope struct {
	Data []okxTradeData `json:"data"`
}

func (OKX) ParseTrade(raw []byte) (map[string]any, error) {
	var env okxTradeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("okx trade: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("okx trade: empty data array")
	}
	t := env.Data[0]
	price, err := parseDecimalField(t.Px)
	if err != nil {
		return nil, err
	}
	qty, err := parseDecimalField(t.Sz)
	if err != nil {
		return nil, err
	}
	side, err := normalizeTradeSide(t.Side)
	if err != nil {
		return nil, err
	}
	ts, err := parseDecimalField(t.Ts)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"price": price, "qty": qty, "side": side,
		"timestamp_ms": ts, "trade_id": t.TrID,
	}, nil
}

type okxBBOData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

type okxBBOEnvelope struct {
	Data []okxBBOData `json:"data"`
}

func (OKX) ParseBookTicker(raw []byte) (map[string]any, error) {
	var env okxBBOEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("okx bbo: %w", err)
	}
	if len(env.Data) == 0 || len(env.Data[0].Bids) == 0 || len(env.Data[0].Asks) == 0 {
		return nil, fmt.Errorf("okx bbo: missing top of book")
	}
	bid := env.Data[0].Bids[0]
	ask := env.Data[0].Asks[0]
	bidPrice, err := parseDecimalField(bid[0])
	if err != nil {
		return nil, err
	}
	bidSize, err := parseDecimalField(bid[1])
	if err != nil {
		return nil, err
	}
	askPrice, err := parseDecimalField(ask[0])
	if err != nil {
		return nil, err
	}
	askSize, err := parseDecimalField(ask[1])
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"bid_price": bidPrice, "bid_size": bidSize,
		"ask_price": askPrice, "ask_size": askSize,
	}, nil
}
