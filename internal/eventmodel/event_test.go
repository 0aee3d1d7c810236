package eventmodel

import "testing"

func TestPriorityDerivation(t *testing.T) {
	cases := []struct {
		kind Kind
		want Priority
	}{
		{DepthUpdate, PriorityNormal},
		{Trade, PriorityNormal},
		{BookTicker, PriorityNormal},
		{Signal, PriorityHigh},
		{OrderRequest, PriorityHigh},
		{RiskEvent, PriorityCritical},
		{WebSocketError, PriorityCritical},
	}
	for _, c := range cases {
		e := New(c.kind, "binance", nil)
		if e.Priority != c.want {
			t.Errorf("kind %s: expected priority %v, got %v", c.kind, c.want, e.Priority)
		}
	}
}

func TestPredicates(t *testing.T) {
	if !New(DepthUpdate, "binance", nil).IsMarketData() {
		t.Errorf("DepthUpdate should be market data")
	}
	if !New(OrderRequest, "binance", nil).IsTradingEvent() {
		t.Errorf("OrderRequest should be a trading event")
	}
	if !New(Signal, "binance", nil).IsSignal() {
		t.Errorf("Signal should be a signal")
	}
	if !NewError("binance", "decoder", "boom").IsError() {
		t.Errorf("WebSocketError should be an error")
	}
}

func TestNewAssignsUniqueID(t *testing.T) {
	a := New(DepthUpdate, "binance", nil)
	b := New(DepthUpdate, "binance", nil)
	if a.ID == "" {
		t.Error("expected a non-empty correlation ID")
	}
	if a.ID == b.ID {
		t.Error("expected distinct correlation IDs across events")
	}
}

func TestIsExpired(t *testing.T) {
	e := Event{TimestampMs: 1000}
	if e.IsExpired(1500, 1000) {
		t.Errorf("500ms old event should not be expired against a 1000ms threshold")
	}
	if !e.IsExpired(3000, 1000) {
		t.Errorf("2000ms old event should be expired against a 1000ms threshold")
	}
}
