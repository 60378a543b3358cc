package obslog

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// handlerSet fans a single btclog.Handler surface out to several
// underlying btclogv2.Handlers, so one logger call writes to every
// configured sink (console, file, ...). Adapted from the HandlerSet
// pattern in Roasbeef-substrate's internal/build/handler_set.go.
type handlerSet struct {
	level btclog.Level
	sinks []btclogv2.Handler
}

func newHandlerSet(sinks ...btclogv2.Handler) *handlerSet {
	h := &handlerSet{sinks: sinks, level: btclog.LevelInfo}
	h.SetLevel(h.level)
	return h
}

func (h *handlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if !sink.Enabled(ctx, level) {
			return false
		}
	}
	return true
}

func (h *handlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, sink := range h.sinks {
		if err := sink.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (h *handlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &reducedSet{sinks: make([]slog.Handler, len(h.sinks))}
	for i, sink := range h.sinks {
		out.sinks[i] = sink.WithAttrs(attrs)
	}
	return out
}

func (h *handlerSet) WithGroup(name string) slog.Handler {
	out := &reducedSet{sinks: make([]slog.Handler, len(h.sinks))}
	for i, sink := range h.sinks {
		out.sinks[i] = sink.WithGroup(name)
	}
	return out
}

func (h *handlerSet) SubSystem(tag string) btclogv2.Handler {
	out := &handlerSet{sinks: make([]btclogv2.Handler, len(h.sinks))}
	for i, sink := range h.sinks {
		out.sinks[i] = sink.SubSystem(tag)
	}
	return out
}

func (h *handlerSet) SetLevel(level btclog.Level) {
	for _, sink := range h.sinks {
		sink.SetLevel(level)
	}
	h.level = level
}

func (h *handlerSet) Level() btclog.Level { return h.level }

func (h *handlerSet) WithPrefix(prefix string) btclogv2.Handler {
	out := &handlerSet{sinks: make([]btclogv2.Handler, len(h.sinks))}
	for i, sink := range h.sinks {
		out.sinks[i] = sink.WithPrefix(prefix)
	}
	return out
}

var _ btclogv2.Handler = (*handlerSet)(nil)

// reducedSet backs the plain slog.Handler returned by WithAttrs/WithGroup,
// which drop down from btclogv2.Handler to the narrower slog.Handler.
type reducedSet struct {
	sinks []slog.Handler
}

func (r *reducedSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range r.sinks {
		if !sink.Enabled(ctx, level) {
			return false
		}
	}
	return true
}

func (r *reducedSet) Handle(ctx context.Context, record slog.Record) error {
	for _, sink := range r.sinks {
		if err := sink.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (r *reducedSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &reducedSet{sinks: make([]slog.Handler, len(r.sinks))}
	for i, sink := range r.sinks {
		out.sinks[i] = sink.WithAttrs(attrs)
	}
	return out
}

func (r *reducedSet) WithGroup(name string) slog.Handler {
	out := &reducedSet{sinks: make([]slog.Handler, len(r.sinks))}
	for i, sink := range r.sinks {
		out.sinks[i] = sink.WithGroup(name)
	}
	return out
}

var _ slog.Handler = (*reducedSet)(nil)
