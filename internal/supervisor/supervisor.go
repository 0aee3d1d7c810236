// Package supervisor owns one task per enabled venue (C5): each task
// drives a venue.Decoder through connect, read, and reconnect, and
// forwards canonical events onto the shared event bus.
//
// Grounded on 0xtitan6-polymarket-mm/internal/exchange's one-goroutine-
// per-market pattern, generalized to eight WebSocket venues and changed
// from a context-cancellation shutdown to the cooperative running-flag
// plus connection-close pattern spec.md §4.5 describes, so a blocked
// ReadMessage unblocks promptly on Stop without depending on the
// gorilla/websocket read-deadline plumbing.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rishav/mdengine/internal/config"
	"github.com/rishav/mdengine/internal/eventbus"
	"github.com/rishav/mdengine/internal/eventmodel"
	"github.com/rishav/mdengine/internal/logging"
	"github.com/rishav/mdengine/internal/metrics"
	"github.com/rishav/mdengine/internal/venue"
)

// protocolFor maps a venue identifier to its Protocol implementation.
func protocolFor(name string) venue.Protocol {
	switch name {
	case "binance":
		return venue.Binance{}
	case "okx":
		return venue.OKX{}
	case "bybit":
		return venue.Bybit{}
	case "coinbase":
		return venue.Coinbase{}
	case "bitget":
		return venue.Bitget{}
	case "bitfinex":
		return venue.Bitfinex{}
	case "gateio":
		return venue.Gateio{}
	case "mexc":
		return venue.Mexc{}
	default:
		return nil
	}
}

const healthCheckInterval = 5 * time.Second

// task is one venue's supervised goroutine.
type task struct {
	venue   string
	decoder *venue.Decoder
	streams []venue.Stream
}

// Supervisor runs one task per configured venue and forwards decoded
// events onto bus until Stop is called.
type Supervisor struct {
	bus    *eventbus.Bus
	tasks  []*task
	wg     sync.WaitGroup
	running atomic.Bool
}

// New builds a Supervisor for every venue cfg enables. An unrecognized
// venue name is skipped with a warning rather than failing startup —
// an operator typo should not take down the other seven venues.
func New(bus *eventbus.Bus, cfg config.Config, symbol string) *Supervisor {
	s := &Supervisor{bus: bus}
	for _, name := range cfg.EnabledVenues() {
		protocol := protocolFor(name)
		if protocol == nil {
			logging.WarnDrop(name, "supervisor", "unrecognized venue in config")
			continue
		}
		s.tasks = append(s.tasks, &task{
			venue:   name,
			decoder: venue.New(protocol, symbol),
			streams: []venue.Stream{venue.StreamDepth, venue.StreamTrades, venue.StreamBookTicker},
		})
	}
	return s
}

// Start launches one goroutine per venue task. It returns immediately;
// call Stop to shut every task down.
func (s *Supervisor) Start(ctx context.Context) {
	s.running.Store(true)
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, t)
	}
}

// Stop signals every task to exit and closes their connections so a
// blocked read unblocks immediately, then waits for all tasks to return.
func (s *Supervisor) Stop() {
	s.running.Store(false)
	for _, t := range s.tasks {
		t.decoder.Disconnect()
	}
	s.wg.Wait()
}

// Venues lists the venue identifiers this supervisor is driving.
func (s *Supervisor) Venues() []string {
	out := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.venue)
	}
	return out
}

func (s *Supervisor) runTask(ctx context.Context, t *task) {
	defer s.wg.Done()

	if err := t.decoder.Connect(ctx, t.streams); err != nil {
		logging.WarnDrop(t.venue, "supervisor", "initial connect failed: "+err.Error())
	}

	lastHeartbeat := time.Now()
	lastHealthCheck := time.Now()
	heartbeatInterval := protocolFor(t.venue).PingInterval()
	if heartbeatInterval == 0 {
		heartbeatInterval = 30 * time.Second
	}
	reportedExhausted := false

	for s.running.Load() {
		if t.decoder.State() != venue.Subscribed {
			if t.decoder.ShouldReconnect() {
				t.decoder.AttemptReconnect(ctx, t.streams)
			} else if t.decoder.State() == venue.Disconnected && !reportedExhausted {
				reportedExhausted = true
				s.PublishError(t.venue, "reconnect attempts exhausted")
			}
			if !s.running.Load() {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		now := time.Now()
		if now.Sub(lastHealthCheck) >= healthCheckInterval {
			lastHealthCheck = now
			if !t.decoder.IsHealthy(now) {
				logging.WarnDrop(t.venue, "supervisor", "health check failed, forcing reconnect")
				t.decoder.Disconnect()
				continue
			}
		}
		if now.Sub(lastHeartbeat) >= heartbeatInterval {
			lastHeartbeat = now
			if err := t.decoder.SendHeartbeat(); err != nil {
				logging.WarnDrop(t.venue, "supervisor", "heartbeat failed: "+err.Error())
			}
		}

		raw, err := t.decoder.ReadMessage()
		if err != nil {
			if !s.running.Load() {
				return
			}
			logging.WarnDrop(t.venue, "supervisor", "read error: "+err.Error())
			t.decoder.Disconnect()
			continue
		}

		event, ok := t.decoder.ToCanonicalEvent(raw)
		if !ok {
			continue // control frame, or malformed payload already counted by the decoder
		}
		if !s.bus.Publish(event) {
			t.decoder.RecordDrop()
			metrics.EventsDropped.WithLabelValues(t.venue).Inc()
			logging.WarnDrop(t.venue, "supervisor", "event bus full, dropping message")
			continue
		}
		metrics.EventsPublished.WithLabelValues(t.venue).Inc()
	}
}

// PublishError injects a synthetic WebSocketError event for a venue,
// used when a task exhausts its reconnect attempts.
func (s *Supervisor) PublishError(venueName, message string) {
	s.bus.Publish(eventmodel.NewError(venueName, "supervisor", message))
}
