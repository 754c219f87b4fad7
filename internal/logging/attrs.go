package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }
func Bool(key string, value bool) Attr { return slog.Bool(key, value) }
func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }
func Int(key string, value int) Attr { return slog.Int(key, value) }
func Int64(key string, value int64) Attr { return slog.Int64(key, value) }
func String(key string, value string) Attr { return slog.String(key, value) }

// Error returns the conventional "error" attribute. A nil error is logged as
// "<nil>" rather than dropped so the key is always present.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attributes into the variadic form slog.Logger methods take.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// NewNop returns a logger that drops every record.
func NewNop() *slog.Logger {
	return slog.New(discardHandler{})
}

// NewComponentLogger tags logger with a component name. A nil logger yields
// a no-op logger so callers can pass through optional dependencies.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

const (
	defaultErrorHint   = "see trawl.log for details"
	defaultWarnImpact  = "run continues"
	defaultErrorImpact = "run stopped; resume picks up from the last checkpoint"
)

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Caller-supplied values win over the defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Warn(msg, Args(withRequired(attrs, eventType, defaultWarnImpact)...)...)
}

// ErrorWithContext is WarnWithContext at error level.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, Args(withRequired(attrs, eventType, defaultErrorImpact)...)...)
}

func withRequired(attrs []Attr, eventType, impact string) []Attr {
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		seen[a.Key] = true
	}
	if !seen[FieldEventType] {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !seen[FieldErrorHint] {
		attrs = append(attrs, String(FieldErrorHint, defaultErrorHint))
	}
	if !seen[FieldImpact] {
		attrs = append(attrs, String(FieldImpact, impact))
	}
	return attrs
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h discardHandler) WithGroup(string) slog.Handler { return h }
