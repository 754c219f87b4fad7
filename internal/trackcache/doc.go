// Package trackcache indexes downloaded tracks in SQLite so a track fetched
// once, by any session, is never fetched again at the same quality. The
// index stores where the payload lives; the download orchestrator links or
// copies it into new destinations.
package trackcache
