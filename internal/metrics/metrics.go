// Package metrics registers the process-wide Prometheus collectors with
// the default registry, which cmd/ingestor serves at /metrics through
// promhttp.
//
// Grounded on the autovant-trading-bot execution service's package-level
// CounterVec/GaugeVec/HistogramVec declarations registered once in init,
// rather than the OpenTelemetry-SDK-wrapped approach some other examples
// use — this engine has no OTel collector to export to, so a direct
// prometheus/client_golang registry is the right-sized fit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdengine_bus_events_published_total",
			Help: "Events successfully enqueued onto the event bus.",
		},
		[]string{"venue"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdengine_bus_events_dropped_total",
			Help: "Events dropped at publish time (full ring buffer or rejecting filter).",
		},
		[]string{"venue"},
	)

	DecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdengine_venue_decode_errors_total",
			Help: "Malformed or unparsable venue messages dropped by the decoder.",
		},
		[]string{"venue"},
	)

	Reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdengine_venue_reconnects_total",
			Help: "Reconnect attempts made by a venue decoder.",
		},
		[]string{"venue"},
	)

	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdengine_signals_emitted_total",
			Help: "Order-flow signals derived per venue and type.",
		},
		[]string{"venue", "type"},
	)

	BestBid = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mdengine_best_bid",
			Help: "Current best bid price per venue.",
		},
		[]string{"venue"},
	)

	BestAsk = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mdengine_best_ask",
			Help: "Current best ask price per venue.",
		},
		[]string{"venue"},
	)

	MessageProcessingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdengine_event_processing_seconds",
			Help:    "Time spent routing one bus event through the aggregator.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsPublished,
		EventsDropped,
		DecodeErrors,
		Reconnects,
		SignalsEmitted,
		BestBid,
		BestAsk,
		MessageProcessingLatency,
	)
}
