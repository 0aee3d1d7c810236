package main

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishav/mdengine/internal/config"
	"github.com/rishav/mdengine/internal/eventbus"
	"github.com/rishav/mdengine/internal/eventmodel"
	"github.com/rishav/mdengine/internal/marketdata"
	"github.com/rishav/mdengine/internal/orderflow"
	"github.com/rishav/mdengine/internal/supervisor"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	bus := eventbus.New(16)
	aggregator := marketdata.New(orderflow.DefaultConfig(), []string{"binance"})
	cfg := config.Default()
	sup := supervisor.New(bus, cfg, cfg.Symbol)

	bus.Publish(eventmodel.New(eventmodel.DepthUpdate, "binance", map[string]any{
		"bids": []any{map[string]any{"price": 100.0, "qty": 1.0}},
		"asks": []any{map[string]any{"price": 101.0, "qty": 1.0}},
	}))
	bus.SubscribeGlobal(aggregator.Handle)
	bus.ProcessAll()

	srv := newHTTPServer(":0", aggregator, bus, sup)
	return httptest.NewServer(srv.Handler)
}

func TestVenuesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/venues")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSnapshotEndpointUnknownVenue(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/venues/doesnotexist/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestSnapshotEndpointKnownVenue(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/venues/binance/snapshot?depth=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestHealthzEndpoint(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
