// Package logging configures the process-wide slog logger. Loggers obtained with L
// before Init pick up the configured handler once Init runs.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Key constants for structured log fields.
const (
	KeyComponent  = "component"
	KeyRunID      = "runId"
	KeyModule     = "module"
	KeyCategory   = "category"
	KeyVersion    = "version"
	KeyState      = "state"
	KeyDurationMs = "durationMs"
	KeyError      = "error"
)

// Formats accepted by Init.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type switchableHandler struct {
	current *atomic.Value // slog.Handler
	steps   []step        // WithAttrs and WithGroup calls, in order
}

// step is one WithGroup (group set) or WithAttrs call.
type step struct {
	group string
	attrs []slog.Attr
}

func (h *switchableHandler) materialize() slog.Handler {
	handler := h.current.Load().(slog.Handler)
	for _, s := range h.steps {
		if s.group != "" {
			handler = handler.WithGroup(s.group)
		} else {
			handler = handler.WithAttrs(s.attrs)
		}
	}
	return handler
}

func (h *switchableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.materialize().Enabled(ctx, level)
}

func (h *switchableHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.materialize().Handle(ctx, record)
}

func (h *switchableHandler) with(s step) *switchableHandler {
	steps := make([]step, 0, len(h.steps)+1)
	steps = append(steps, h.steps...)
	steps = append(steps, s)
	return &switchableHandler{current: h.current, steps: steps}
}

func (h *switchableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(step{attrs: attrs})
}

func (h *switchableHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(step{group: name})
}

var (
	root          = newRoot(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	defaultLogger = slog.New(root)
)

func newRoot(h slog.Handler) *switchableHandler {
	v := &atomic.Value{}
	v.Store(h)
	return &switchableHandler{current: v}
}

func init() {
	slog.SetDefault(defaultLogger)
}

// Init installs the global handler. format is "text" or "json", level one of
// debug, info, warn, error. A nil output logs to stderr, keeping stdout for reports.
func Init(format, level string, output io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		handler = slog.NewTextHandler(output, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}

	root.current.Store(handler)
	slog.SetDefault(defaultLogger)
	return nil
}

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to a slog.Level. An empty name means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
