// Package stats accumulates per-run counters for the final report.
//
// The Collector is fed by the batch controller (artist verdicts) and the
// download aggregator (task outcomes). It is safe for concurrent use and
// all methods are nil-receiver safe so callers can run without one.
package stats

import (
	"maps"
	"strings"
	"sync"
	"time"
)

// Snapshot is an immutable point-in-time copy of the counters.
type Snapshot struct {
	ArtistsProcessed int64            `json:"artists_processed"`
	ArtistsAccepted  int64            `json:"artists_accepted"`
	ArtistsRejected  int64            `json:"artists_rejected"`
	RejectedByReason map[string]int64 `json:"rejected_by_reason,omitempty"`

	// AcceptedByCountry counts accepted artists per market country. An
	// artist listing several countries counts once for each.
	AcceptedByCountry map[string]int64 `json:"accepted_by_country,omitempty"`

	TracksSucceeded int64 `json:"tracks_succeeded"`
	TracksFailed    int64 `json:"tracks_failed"`
	TracksSkipped   int64 `json:"tracks_skipped"`
	Bytes           int64 `json:"bytes"`

	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// TracksTotal is the number of terminal download tasks.
func (s Snapshot) TracksTotal() int64 {
	return s.TracksSucceeded + s.TracksFailed + s.TracksSkipped
}

// Collector accumulates counters during a single run.
type Collector struct {
	mu  sync.Mutex
	now func() time.Time

	started          time.Time
	artistsAccepted  int64
	artistsRejected  int64
	rejectedByReason map[string]int64
	byCountry        map[string]int64
	tracksSucceeded  int64
	tracksFailed     int64
	tracksSkipped    int64
	bytes            int64
}

// NewCollector starts the run clock.
func NewCollector() *Collector {
	return NewCollectorWithClock(time.Now)
}

// NewCollectorWithClock is NewCollector with an injectable clock for tests.
func NewCollectorWithClock(now func() time.Time) *Collector {
	return &Collector{
		now:              now,
		started:          now(),
		rejectedByReason: make(map[string]int64),
		byCountry:        make(map[string]int64),
	}
}

// UnknownCountry groups accepted artists the catalog lists no country for.
const UnknownCountry = "unknown"

// ArtistAccepted records an artist with a non-empty selection and the
// countries the catalog associates with it.
func (c *Collector) ArtistAccepted(countries ...string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artistsAccepted++
	counted := 0
	for _, code := range countries {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			c.byCountry[code]++
			counted++
		}
	}
	if counted == 0 {
		c.byCountry[UnknownCountry]++
	}
}

// ArtistRejected records a filtered-out artist and why.
func (c *Collector) ArtistRejected(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.artistsRejected++
	if reason != "" {
		c.rejectedByReason[reason]++
	}
	c.mu.Unlock()
}

// TrackSucceeded records a downloaded track of n bytes.
func (c *Collector) TrackSucceeded(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tracksSucceeded++
	c.bytes += n
	c.mu.Unlock()
}

// TrackSkipped records a track served from the cache or already in place.
func (c *Collector) TrackSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tracksSkipped++
	c.mu.Unlock()
}

// TrackFailed records a task that exhausted its retries.
func (c *Collector) TrackFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tracksFailed++
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ArtistsProcessed:  c.artistsAccepted + c.artistsRejected,
		ArtistsAccepted:   c.artistsAccepted,
		ArtistsRejected:   c.artistsRejected,
		RejectedByReason:  maps.Clone(c.rejectedByReason),
		AcceptedByCountry: maps.Clone(c.byCountry),
		TracksSucceeded:   c.tracksSucceeded,
		TracksFailed:      c.tracksFailed,
		TracksSkipped:     c.tracksSkipped,
		Bytes:             c.bytes,
		StartedAt:         c.started,
		Elapsed:           c.now().Sub(c.started),
	}
}
