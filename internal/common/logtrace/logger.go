// Package logtrace provides logging and request-tracing utilities for the client.
// It integrates with zerolog for structured logging and carries per-request
// identifiers through context for correlation with server-side logs.
package logtrace

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global logger with Unix timestamp format.
// Configures zerolog to output to stderr with timestamps.
func InitLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// SetLevel adjusts the global log level. The CLI uses this to keep request
// debug logs quiet unless verbose output is requested.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}
