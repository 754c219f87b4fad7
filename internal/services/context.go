package services

import "context"

type contextKey string

const (
	sessionKey contextKey = "session"
	runIDKey   contextKey = "run_id"
	artistKey  contextKey = "artist_id"
)

// WithSession annotates context with the session name.
func WithSession(ctx context.Context, session string) context.Context {
	if session == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session name if present.
func SessionFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the identifier of one CLI invocation.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithArtistID annotates context with the artist currently being processed.
func WithArtistID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, artistKey, id)
}

// ArtistIDFromContext returns the artist identifier if present.
func ArtistIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(artistKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
