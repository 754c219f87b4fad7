// Package checkpoint persists per-session discovery progress so a run can be
// interrupted, batch-stopped, or crash and later resume without refetching
// any visited artist.
//
// A Checkpoint carries the visited set, the ordered frontier, per-parent
// substitution reserves, a log of processed artists, cumulative counters,
// and the fingerprints of the parameters the session was created with.
// Two Store implementations share that schema: RedisStore (msgpack values
// with a retention TTL) and FileStore (one JSON file per session, replaced
// atomically). Open picks between them from configuration.
package checkpoint
