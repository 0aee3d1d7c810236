package venue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bitget v2 public WebSocket decoder (USDT-margined futures).
type Bitget struct{}

func (Bitget) Name() string     { return "bitget" }
func (Bitget) Endpoint() string { return "wss://ws.bitget.com/v2/ws/public" }

func (Bitget) SymbolTransform(canonical string) string { return canonical }

type bitgetArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

func (b Bitget) SubscribeMessages(canonical string, streams []Stream) ([][]byte, error) {
	sym := b.SymbolTransform(canonical)
	var args []bitgetArg
	for _, s := range streams {
		switch s {
		case StreamDepth:
			args = append(args, bitgetArg{InstType: "USDT-FUTURES", Channel: "books15", InstID: sym})
		case StreamTrades:
			args = append(args, bitgetArg{InstType: "USDT-FUTURES", Channel: "trade", InstID: sym})
		case StreamBookTicker:
			args = append(args, bitgetArg{InstType: "USDT-FUTURES", Channel: "ticker", InstID: sym})
		}
	}
	raw, err := json.Marshal(map[string]any{"op": "subscribe", "args": args})
	if err != nil {
		return nil, err
	}
	return [][]byte{raw}, nil
}

func (Bitget) HeartbeatMessage() ([]byte, bool) { return []byte("ping"), true }
func (Bitget) PingInterval() time.Duration      { return 25 * time.Second }

type bitgetEnvelope struct {
	Arg struct {
		Channel string `json:"channel"`
	} `json:"arg"`
}

func bitgetChannel(raw []byte) string {
	var env bitgetEnvelope
	_ = json.Unmarshal(raw, &env)
	return env.Arg.Channel
}

func (Bitget) IsDepthMessage(raw []byte) bool      { return bitgetChannel(raw) == "books15" }
func (Bitget) IsTradeMessage(raw []byte) bool      { return bitgetChannel(raw) == "trade" }
func (Bitget) IsBookTickerMessage(raw []byte) bool { return bitgetChannel(raw) == "ticker" }

type bitgetDepthData struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
	Ts   string      `json:"ts"`
}

type bitgetDepthEnvelope struct {
	Data []bitgetDepthData `json:"data"`
}

func (Bitget) ParseDepth(raw []byte) (map[string]any, error) {
	var env bitgetDepthEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bitget depth: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("bitget depth: empty data array")
	}
	d := env.Data[0]
	bids, err := levelsFromStringPairs(d.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := levelsFromStringPairs(d.Asks)
	if err != nil {
		return nil, err
	}
	ts, err := parseDecimalField(d.Ts)
	if err != nil {
		ts = 0
	}
	return map[string]any{"bids": bids, "asks": asks, "update_id": ts}, nil
}

type bitgetTradeData struct {
	Ts    string `json:"ts"`
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
	TrID  string `json:"tradeId"`
}

type bitgetTradeEnvelope struct {
	Data []bitgetTradeData `json:"data"`
}

func (Bitget) ParseTrade(raw []byte) (map[string]any, error) {
	var env bitgetTradeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bitget trade: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("bitget trade: empty data array")
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

type bitgetTickerData struct {
	BidPr string `json:"bidPr"`
	BidSz string `json:"bidSz"`
	AskPr string `json:"askPr"`
	AskSz string `json:"askSz"`
}

type bitgetTickerEnvelope struct {
	Data []bitgetTickerData `json:"data"`
}

func (Bitget) ParseBookTicker(raw []byte) (map[string]any, error) {
	var env bitgetTickerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bitget ticker: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("bitget ticker: empty data array")
	}
	t := env.Data[0]
	bidPrice, err := parseDecimalField(t.BidPr)
	if err != nil {
		return nil, err
	}
	bidSize, err := parseDecimalField(t.BidSz)
	if err != nil {
		return nil, err
	}
	askPrice, err := parseDecimalField(t.AskPr)
	if err != nil {
		return nil, err
	}
	askSize, err := parseDecimalField(t.AskSz)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"bid_price": bidPrice, "bid_size": bidSize,
		"ask_price": askPrice, "ask_size": askSize,
	}, nil
}
