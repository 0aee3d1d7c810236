// Package logging configures the process-wide structured logger.
//
// Grounded on BullionBear-sequex/pkg/logger: a console writer with a
// human-readable, millisecond-timestamped format in development, and
// plain JSON in production so log aggregators can parse it.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger, initialized by Init.
var Log zerolog.Logger

// Init configures Log. development selects a console writer with color
// and a readable timestamp; production emits one JSON object per line.
func Init(development bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if development {
		writer := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05.000",
		}
		Log = zerolog.New(writer).With().Timestamp().Logger()
		return
	}

	Log = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Get returns the process-wide logger.
func Get() *zerolog.Logger {
	return &Log
}

// WarnDrop logs a non-fatal, counted drop. The venue decoders use it for
// decode failures and failed reconnects, and the supervisor for connect,
// read and heartbeat failures, event-bus-full drops and unrecognized
// venues. Handler panics (event bus) and malformed payloads and update-id
// regressions (order-flow engine) are counted in those components' stats
// and are not logged.
func WarnDrop(venue, component, reason string) {
	Log.Warn().
		Str("venue", venue).
		Str("component", component).
		Str("reason", reason).
		Time("at", time.Now()).
		Msg("dropped")
}
