// Package logging configures the process-wide zerolog logger, replacing
// the teacher's bare log.Printf("[TAG] ...") convention with structured
// component= fields.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Env selects the logger's output format.
type Env string

const (
	Development Env = "development"
	Production  Env = "production"
)

// Configure installs the global zerolog logger: pretty console output in
// development, line-delimited JSON in production. Call once at process
// startup before any component logs.
func Configure(env Env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == Production {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

// Component returns a logger pre-tagged with component=name, the
// structured equivalent of the teacher's "[MAIN]"/"[SPAWNER]" bracket
// prefixes.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
