// Package eventmodel defines the tagged-union event value that flows
// through the ring buffer and event bus: market-data updates, derived
// signals, and the schema of trading-kind events consumed only by
// downstream collaborators outside this module.
package eventmodel

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the tagged union's active variant.
type Kind uint8

const (
	DepthUpdate Kind = iota
	Trade
	BookTicker
	TickPrice
	Signal
	OrderRequest
	PositionUpdate
	OrderCancel
	OrderStopLoss
	OrderTakeProfit
	RiskEvent
	WebSocketError
)

func (k Kind) String() string {
	switch k {
	case DepthUpdate:
		return "DepthUpdate"
	case Trade:
		return "Trade"
	case BookTicker:
		return "BookTicker"
	case TickPrice:
		return "TickPrice"
	case Signal:
		return "Signal"
	case OrderRequest:
		return "OrderRequest"
	case PositionUpdate:
		return "PositionUpdate"
	case OrderCancel:
		return "OrderCancel"
	case OrderStopLoss:
		return "OrderStopLoss"
	case OrderTakeProfit:
		return "OrderTakeProfit"
	case RiskEvent:
		return "RiskEvent"
	case WebSocketError:
		return "WebSocketError"
	default:
		return "Unknown"
	}
}

// Priority ranks events for any consumer that wants to triage a backlog.
// Kind derives priority deterministically, so producers never set it.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityCritical
)

func priorityFor(kind Kind) Priority {
	switch kind {
	case RiskEvent, WebSocketError:
		return PriorityCritical
	case OrderRequest, PositionUpdate, OrderCancel, OrderStopLoss, OrderTakeProfit, Signal:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// Event is the value carried on the bus. Payload is an opaque structured
// document for market-data kinds (a JSON-equivalent map, to preserve
// venue-specific fields the engine may need to mine later without
// freezing a schema across eight venues) and a plain string message for
// WebSocketError.
type Event struct {
	ID          string // correlation ID, unique per event
	Kind        Kind
	Payload     map[string]any
	Message     string // populated only when Kind == WebSocketError
	Priority    Priority
	Source      string // producing component, e.g. "venue-decoder"
	Venue       string
	TimestampMs int64
}

// New constructs an Event with its priority derived from kind.
func New(kind Kind, venue string, payload map[string]any) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     payload,
		Priority:    priorityFor(kind),
		Source:      "venue-decoder",
		Venue:       venue,
		TimestampMs: NowMs(),
	}
}

// NewError constructs a WebSocketError event carrying a plain message.
func NewError(venue, source, message string) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        WebSocketError,
		Message:     message,
		Priority:    priorityFor(WebSocketError),
		Source:      source,
		Venue:       venue,
		TimestampMs: NowMs(),
	}
}

// NewSignal constructs a Signal event.
func NewSignal(venue string, payload map[string]any) Event {
	return New(Signal, venue, payload)
}

// NowMs returns the current wall clock in epoch milliseconds.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

func (e Event) IsMarketData() bool {
	switch e.Kind {
	case DepthUpdate, Trade, BookTicker, TickPrice:
		return true
	default:
		return false
	}
}

func (e Event) IsTradingEvent() bool {
	switch e.Kind {
	case OrderRequest, PositionUpdate, OrderCancel, OrderStopLoss, OrderTakeProfit:
		return true
	default:
		return false
	}
}

func (e Event) IsSignal() bool {
	return e.Kind == Signal
}

func (e Event) IsError() bool {
	return e.Kind == WebSocketError || e.Kind == RiskEvent
}

// IsExpired compares TimestampMs against the supplied wall-clock "now",
// both in epoch milliseconds.
func (e Event) IsExpired(nowMs int64, maxAgeMs int64) bool {
	return nowMs-e.TimestampMs > maxAgeMs
}
