package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rishav/mdengine/internal/config"
	"github.com/rishav/mdengine/internal/eventbus"
)

func TestProtocolForKnownVenues(t *testing.T) {
	for _, name := range config.DefaultVenues {
		assert.NotNilf(t, protocolFor(name), "expected a protocol for venue %q", name)
	}
	assert.Nil(t, protocolFor("not-a-real-venue"))
}

func TestNewSkipsUnrecognizedVenue(t *testing.T) {
	cfg := config.Default()
	cfg.Venues["not-a-real-venue"] = config.VenueConfig{Enabled: true}

	sup := New(eventbus.New(16), cfg, cfg.Symbol)

	assert.ElementsMatch(t, config.DefaultVenues, sup.Venues())
}

func TestStopWithoutStartDoesNotBlock(t *testing.T) {
	sup := New(eventbus.New(16), config.Default(), "BTCUSDT")
	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked with no Start call")
	}
}
