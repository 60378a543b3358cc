// Package obslog builds the process-wide logger every component takes at
// construction time. It follows the dual-stream pattern from
// Roasbeef-substrate's cmd/substrated/main.go: one or more
// github.com/btcsuite/btclog/v2 handlers (console, optionally a file) are
// fanned out through a handlerSet and exposed as a plain *slog.Logger, so
// every subsystem gets structured, leveled logging without importing
// btclog directly.
package obslog

import (
	"io"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// Options configures the logger New builds.
type Options struct {
	// Console is the primary sink (os.Stderr in cmd/paxosnode).
	Console io.Writer
	// File is an optional secondary sink, e.g. a rotating log file.
	File io.Writer
	// Level sets the initial log level on every handler. The zero value
	// is btclog.LevelTrace, which logs everything.
	Level btclog.Level
}

// New builds a *slog.Logger backed by a handlerSet fanning out to every
// configured sink.
func New(opts Options) *slog.Logger {
	var sinks []btclogv2.Handler
	if opts.Console != nil {
		sinks = append(sinks, btclogv2.NewDefaultHandler(opts.Console))
	}
	if opts.File != nil {
		sinks = append(sinks, btclogv2.NewDefaultHandler(opts.File))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, btclogv2.NewDefaultHandler(io.Discard))
	}

	set := newHandlerSet(sinks...)
	set.SetLevel(opts.Level)

	return slog.New(set)
}

// Subsystem returns a logger scoped to name, e.g. "transport" or "paxos".
func Subsystem(log *slog.Logger, name string) *slog.Logger {
	return log.With("subsystem", name)
}

// ParseLevel maps a command-line log level name to a btclog.Level,
// defaulting to Info for an unrecognized value.
func ParseLevel(name string) btclog.Level {
	switch name {
	case "trace":
		return btclog.LevelTrace
	case "debug":
		return btclog.LevelDebug
	case "warn":
		return btclog.LevelWarn
	case "error":
		return btclog.LevelError
	case "critical":
		return btclog.LevelCritical
	case "off":
		return btclog.LevelOff
	default:
		return btclog.LevelInfo
	}
}
