package eventbus

import (
	"testing"

	"github.com/rishav/mdengine/internal/eventmodel"
)

func TestPublishAndProcessNext(t *testing.T) {
	b := New(16)
	var got eventmodel.Event
	b.SubscribeGlobal(func(e eventmodel.Event) { got = e })

	if !b.Publish(eventmodel.New(eventmodel.Trade, "binance", nil)) {
		t.Fatalf("expected publish to succeed")
	}
	if !b.ProcessNext() {
		t.Fatalf("expected an event to be available")
	}
	if got.Kind != eventmodel.Trade || got.Venue != "binance" {
		t.Fatalf("handler did not receive the published event: %+v", got)
	}

	stats := b.StatsSnapshot()
	if stats.Published != 1 || stats.Processed != 1 {
		t.Fatalf("expected published=1 processed=1, got %+v", stats)
	}
}

func TestDroppedEventCounted(t *testing.T) {
	b := New(2)
	for i := 0; i < 2; i++ {
		if !b.Publish(eventmodel.New(eventmodel.Trade, "binance", nil)) {
			t.Fatalf("expected push %d to succeed", i)
		}
	}
	if b.Publish(eventmodel.New(eventmodel.Trade, "binance", nil)) {
		t.Fatalf("expected publish into a full bus to fail")
	}
	if b.StatsSnapshot().Dropped != 1 {
		t.Fatalf("expected one dropped event, got %+v", b.StatsSnapshot())
	}
}

// TestHandlerPanicIsolation exercises S6: a middle handler that panics on
// every invocation must not prevent the other handlers from running, and
// handler_errors must count every panic.
func TestHandlerPanicIsolation(t *testing.T) {
	b := New(64)
	var firstCount, thirdCount int

	b.Subscribe(eventmodel.Trade, func(eventmodel.Event) { firstCount++ })
	b.Subscribe(eventmodel.Trade, func(eventmodel.Event) { panic("boom") })
	b.Subscribe(eventmodel.Trade, func(eventmodel.Event) { thirdCount++ })

	for i := 0; i < 10; i++ {
		b.Publish(eventmodel.New(eventmodel.Trade, "binance", nil))
	}
	processed := b.ProcessAll()

	if processed != 10 {
		t.Fatalf("expected 10 events processed, got %d", processed)
	}
	if firstCount != 10 || thirdCount != 10 {
		t.Fatalf("expected both surviving handlers to run 10 times, got first=%d third=%d", firstCount, thirdCount)
	}
	if b.StatsSnapshot().HandlerErrors < 10 {
		t.Fatalf("expected handler_errors >= 10, got %d", b.StatsSnapshot().HandlerErrors)
	}
}

func TestGlobalHandlersRunBeforeKindHandlers(t *testing.T) {
	b := New(16)
	var order []string
	b.SubscribeGlobal(func(eventmodel.Event) { order = append(order, "global") })
	b.Subscribe(eventmodel.Trade, func(eventmodel.Event) { order = append(order, "kind") })

	b.Publish(eventmodel.New(eventmodel.Trade, "binance", nil))
	b.ProcessNext()

	if len(order) != 2 || order[0] != "global" || order[1] != "kind" {
		t.Fatalf("expected global handler before kind handler, got %v", order)
	}
}

func TestFilterRejectsPublish(t *testing.T) {
	b := New(16)
	b.AddFilter(func(e eventmodel.Event) bool { return e.Venue != "blocked" })

	if b.Publish(eventmodel.New(eventmodel.Trade, "blocked", nil)) {
		t.Fatalf("expected filtered publish to be rejected")
	}
	if !b.Publish(eventmodel.New(eventmodel.Trade, "binance", nil)) {
		t.Fatalf("expected unfiltered publish to succeed")
	}
}
