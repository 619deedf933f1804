// Package logging configures the zerolog.Logger each role starts with.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a role-tagged logger. format is "console" (human-readable,
// for local runs) or anything else for line-delimited JSON.
func New(role, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Str("role", role).Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Str("role", role).Logger()
}
