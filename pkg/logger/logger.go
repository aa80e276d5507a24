// Package logger builds the zerolog logger shared by the ledger service.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options describes the process logger. Service, Version and Storage are
// stamped on every line so logs from several deployments can be told apart.
type Options struct {
	Level   string // debug, info, warn, error
	Pretty  bool   // human-readable console output (dev only)
	Service string
	Version string
	Storage string // active storage driver: postgres or memory
}

// New creates the process logger writing to stdout.
func New(opts Options) zerolog.Logger {
	var w io.Writer = os.Stdout
	if opts.Pretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	return base(w, opts).Caller().Logger()
}

// NewWithWriter creates a logger writing to w, for tests.
func NewWithWriter(w io.Writer, opts Options) zerolog.Logger {
	return base(w, opts).Logger()
}

func base(w io.Writer, opts Options) zerolog.Context {
	ctx := zerolog.New(w).
		Level(parseLevel(opts.Level)).
		With().
		Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.Version != "" {
		ctx = ctx.Str("version", opts.Version)
	}
	if opts.Storage != "" {
		ctx = ctx.Str("storage", opts.Storage)
	}
	return ctx
}

// parseLevel accepts zerolog level names; unknown or empty values mean info.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
