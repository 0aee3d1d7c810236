// Package eventbus wraps a ring buffer with subscriber registries,
// filters, and panic-isolated dispatch.
//
// Subscription is append-only and must happen during initialization,
// before any producer starts publishing — the consumer side then needs
// no synchronization over the handler tables at steady state, mirroring
// the teacher's single-threaded, lock-free dispatch loop.
package eventbus

import (
	"sync/atomic"

	"github.com/rishav/mdengine/internal/eventmodel"
	"github.com/rishav/mdengine/internal/ringbuffer"
)

// Handler reacts to one event. Panics inside a handler are caught by the
// bus and counted; they never abort dispatch to the remaining handlers.
type Handler func(eventmodel.Event)

// Filter vets an event before it is admitted to the buffer. All filters
// must accept for publish to proceed.
type Filter func(eventmodel.Event) bool

// Stats is an atomic snapshot of the bus's lifetime counters.
type Stats struct {
	Published     uint64
	Processed     uint64
	Dropped       uint64
	HandlerErrors uint64
}

// Bus is the event dispatch backbone: one ring buffer, global handlers,
// per-kind handlers, and a filter chain.
type Bus struct {
	ring *ringbuffer.Ring[eventmodel.Event]

	globalHandlers []Handler
	kindHandlers   map[eventmodel.Kind][]Handler
	filters        []Filter

	published     atomic.Uint64
	processed     atomic.Uint64
	dropped       atomic.Uint64
	handlerErrors atomic.Uint64
}

// New creates a bus backed by a ring buffer of the given capacity.
func New(capacity uint64) *Bus {
	return &Bus{
		ring:         ringbuffer.New[eventmodel.Event](capacity),
		kindHandlers: make(map[eventmodel.Kind][]Handler),
	}
}

// Subscribe registers a handler for one event kind. Initialization-time
// only: call before any producer begins publishing.
func (b *Bus) Subscribe(kind eventmodel.Kind, h Handler) {
	b.kindHandlers[kind] = append(b.kindHandlers[kind], h)
}

// SubscribeGlobal registers a handler invoked for every event, ahead of
// any kind-specific handlers. Initialization-time only.
func (b *Bus) SubscribeGlobal(h Handler) {
	b.globalHandlers = append(b.globalHandlers, h)
}

// AddFilter appends a publish-time filter. Initialization-time only.
func (b *Bus) AddFilter(f Filter) {
	b.filters = append(b.filters, f)
}

// Publish applies every registered filter, then tries to enqueue the
// event. A full ring buffer or a rejecting filter counts as a drop and
// returns false; the caller must not treat this as fatal.
func (b *Bus) Publish(e eventmodel.Event) bool {
	for _, f := range b.filters {
		if !f(e) {
			b.dropped.Add(1)
			return false
		}
	}
	if !b.ring.TryPush(e) {
		b.dropped.Add(1)
		return false
	}
	b.published.Add(1)
	return true
}

// PublishBatch publishes each event in order, returning the count accepted.
func (b *Bus) PublishBatch(events []eventmodel.Event) int {
	accepted := 0
	for _, e := range events {
		if b.Publish(e) {
			accepted++
		}
	}
	return accepted
}

// Poll removes and returns the front event without dispatching it.
func (b *Bus) Poll() (eventmodel.Event, bool) {
	return b.ring.TryPop()
}

// ProcessNext pops one event and invokes every global handler followed by
// every handler registered for its kind. Registration order is preserved
// within each tier. A handler panic is recovered, counted, and does not
// prevent the remaining handlers from running. Returns false if the bus
// was empty.
func (b *Bus) ProcessNext() bool {
	e, ok := b.ring.TryPop()
	if !ok {
		return false
	}

	for _, h := range b.globalHandlers {
		b.dispatch(h, e)
	}
	for _, h := range b.kindHandlers[e.Kind] {
		b.dispatch(h, e)
	}

	b.processed.Add(1)
	return true
}

func (b *Bus) dispatch(h Handler, e eventmodel.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerErrors.Add(1)
		}
	}()
	h(e)
}

// ProcessEvents drains up to n events, dispatching each. Returns the
// number actually processed.
func (b *Bus) ProcessEvents(n int) int {
	count := 0
	for count < n {
		if !b.ProcessNext() {
			break
		}
		count++
	}
	return count
}

// ProcessAll drains the bus entirely, bounded by a large but finite
// iteration count so that shutdown never blocks forever even under a
// pathological producer race.
const maxDrainIterations = 100_000

func (b *Bus) ProcessAll() int {
	return b.ProcessEvents(maxDrainIterations)
}

// StatsSnapshot returns a point-in-time read of the bus's counters.
func (b *Bus) StatsSnapshot() Stats {
	return Stats{
		Published:     b.published.Load(),
		Processed:     b.processed.Load(),
		Dropped:       b.dropped.Load(),
		HandlerErrors: b.handlerErrors.Load(),
	}
}

// Len reports the ring buffer's current occupancy.
func (b *Bus) Len() uint64 {
	return b.ring.Len()
}
