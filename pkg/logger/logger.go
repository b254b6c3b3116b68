// Package logger builds the root zerolog logger shared by the whole
// pipeline. Every service and repository derives its own logger from this
// root with log.With().Str("component", ...), so the root only decides the
// level, the output format and the caller annotation.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config tunes the root logger.
type Config struct {
	Level  string // debug, info, warn or error; anything else means info
	Pretty bool   // console writer for development, JSON lines otherwise
}

// New builds the root logger and applies its level globally, so loggers
// derived later inherit it.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger replaces zerolog's package-level logger so code that logs
// through zerolog/log shares the same output and level.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
