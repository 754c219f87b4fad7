package logging

import (
	"context"
	"log/slog"

	"trawl/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSession is the structured logging key for session names.
	FieldSession = "session"
	// FieldRunID identifies one CLI invocation across log lines.
	FieldRunID = "run_id"
	FieldArtistID = "artist_id"
	FieldTrackID  = "track_id"
	FieldDepth    = "depth"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if v, ok := services.SessionFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSession, v))
	}
	if v, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, v))
	}
	if v, ok := services.ArtistIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldArtistID, v))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
