// Package filter decides which of an artist's tracks to download. It is pure:
// no I/O, no clock, no randomness. Parameters passed to Apply must be
// normalized (see params.Parameters.Normalize).
package filter
