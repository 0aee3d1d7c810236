package venue

import (
	"encoding/json"
	"fmt"
	"time"
)

// MEXC contract (futures) decoder. MEXC's contract symbols settle USDT
// perpetuals with contract size 1 for the handful of majors this engine
// tracks; ContractsToBase is still used for parity with the other
// futures venues in case a caller configures a sized contract.
type Mexc struct {
	Contract ContractSpec
}

func (Mexc) Name() string     { return "mexc" }
func (Mexc) Endpoint() string { return "wss://contract.mexc.com/edge" }

func (Mexc) SymbolTransform(canonical string) string {
	if len(canonical) > 4 && canonical[len(canonical)-4:] == "USDT" {
		return canonical[:len(canonical)-4] + "_USDT"
	}
	return canonical
}

type mexcSubMsg struct {
	Method string         `json:"method"`
	Param  map[string]any `json:"param"`
}

func (m Mexc) SubscribeMessages(canonical string, streams []Stream) ([][]byte, error) {
	sym := m.SymbolTransform(canonical)
	var msgs [][]byte
	for _, s := range streams {
		var method string
		switch s {
		case StreamDepth:
			method = "sub.depth"
		case StreamTrades:
			method = "sub.deal"
		case StreamBookTicker:
			method = "sub.ticker"
		default:
			continue
		}
		raw, err := json.Marshal(mexcSubMsg{Method: method, Param: map[string]any{"symbol": sym}})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, raw)
	}
	return msgs, nil
}

func (Mexc) HeartbeatMessage() ([]byte, bool) {
	raw, _ := json.Marshal(map[string]string{"method": "ping"})
	return raw, true
}
func (Mexc) PingInterval() time.Duration { return 15 * time.Second }

type mexcEnvelope struct {
	Channel string `json:"channel"`
}

func mexcChannel(raw []byte) string {
	var env mexcEnvelope
	_ = json.Unmarshal(raw, &env)
	return env.Channel
}

func (Mexc) IsDepthMessage(raw []byte) bool      { return mexcChannel(raw) == "push.depth" }
func (Mexc) IsTradeMessage(raw []byte) bool      { return mexcChannel(raw) == "push.deal" }
func (Mexc) IsBookTickerMessage(raw []byte) bool { return mexcChannel(raw) == "push.ticker" }

type mexcDepthData struct {
	Bids [][]float64 `json:"bids"` // [price, volume, order_count]
	Asks [][]float64 `json:"asks"`
	Ver  int64       `json:"version"`
}

type mexcDepthEnvelope struct {
	Data mexcDepthData `json:"data"`
}

func (m Mexc) ParseDepth(raw []byte) (map[string]any, error) {
	var env mexcDepthEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("mexc depth: %w", err)
	}
	bids, err := m.mexcLevels(env.Data.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := m.mexcLevels(env.Data.Asks)
	if err != nil {
		return nil, err
	}
	return map[string]any{"bids": bids, "asks": asks, "update_id": float64(env.Data.Ver)}, nil
}

func (m Mexc) mexcLevels(levels [][]float64) ([]any, error) {
	out := make([]any, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("mexc depth: malformed level %v", lvl)
		}
		qty := ContractsToBase(m.Contract, lvl[1], lvl[0])
		out = append(out, depthEntry(lvl[0], qty))
	}
	return out, nil
}

type mexcDeal struct {
	Price float64 `json:"p"`
	Vol   float64 `json:"v"`
	Side  int     `json:"T"` // 1 = buy, 2 = sell
	Ts    int64   `json:"t"`
}

type mexcDealEnvelope struct {
	Data mexcDeal `json:"data"`
}

func (m Mexc) ParseTrade(raw []byte) (map[string]any, error) {
	var env mexcDealEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("mexc deal: %w", err)
	}
	var side string
	switch env.Data.Side {
	case 1:
		side = "buy"
	case 2:
		side = "sell"
	default:
		return nil, fmt.Errorf("mexc deal: unrecognized side %d", env.Data.Side)
	}
	qty := ContractsToBase(m.Contract, env.Data.Vol, env.Data.Price)
	return map[string]any{
		"price": env.Data.Price, "qty": qty, "side": side,
		"timestamp_ms": float64(env.Data.Ts),
	}, nil
}

type mexcTicker struct {
	Bid1 float64 `json:"bid1"`
	Ask1 float64 `json:"ask1"`
}

type mexcTickerEnvelope struct {
	Data mexcTicker `json:"data"`
}

func (Mexc) ParseBookTicker(raw []byte) (map[string]any, error) {
	var env mexcTickerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("mexc ticker: %w", err)
	}
	return map[string]any{
		"bid_price": env.Data.Bid1, "bid_size": float64(0),
		"ask_price": env.Data.Ask1, "ask_size": float64(0),
	}, nil
}
