// Package logging assembles structured slog loggers and formatting helpers used
// across trawl.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so discovery and download code
// tag log lines with the session, run, and artist being processed. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
