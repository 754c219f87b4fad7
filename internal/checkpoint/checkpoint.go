package checkpoint

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"trawl/internal/params"
	"trawl/internal/services"
)

// ErrNotFound is returned by Store.Load when a session has no checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Entry is one frontier position. Entries are ordered by (Seed, Depth, Order).
type Entry struct {
	ArtistID string `json:"artist_id" msgpack:"artist_id"`
	Depth    int    `json:"depth" msgpack:"depth"`
	Seed     int    `json:"seed" msgpack:"seed"`
	Order    int64  `json:"order" msgpack:"order"`
	// Parent is the artist whose similarity list produced this entry; empty
	// for seeds.
	Parent string `json:"parent,omitempty" msgpack:"parent,omitempty"`
}

func compareEntries(a, b Entry) int {
	return cmp.Or(
		cmp.Compare(a.Seed, b.Seed),
		cmp.Compare(a.Depth, b.Depth),
		cmp.Compare(a.Order, b.Order),
	)
}

// Reserve holds the similarity candidates of a parent that were not enqueued
// initially. Rejected children are replaced from it.
type Reserve struct {
	Candidates []string `json:"candidates" msgpack:"candidates"`
	// Attempts counts substitutions already drawn for this parent.
	Attempts int `json:"attempts" msgpack:"attempts"`
	Depth    int `json:"depth" msgpack:"depth"`
	Seed     int `json:"seed" msgpack:"seed"`
}

// Record describes one processed artist, in processing order.
type Record struct {
	ID       string `json:"id" msgpack:"id"`
	Name     string `json:"name,omitempty" msgpack:"name,omitempty"`
	Depth    int    `json:"depth" msgpack:"depth"`
	Seed     int    `json:"seed" msgpack:"seed"`
	Parent   string `json:"parent,omitempty" msgpack:"parent,omitempty"`
	Accepted bool   `json:"accepted" msgpack:"accepted"`
	Reason   string `json:"reason,omitempty" msgpack:"reason,omitempty"`
	Tracks   int    `json:"tracks" msgpack:"tracks"`
}

// Counters accumulate session-wide results across batches.
type Counters struct {
	ArtistsAccepted int   `json:"artists_accepted" msgpack:"artists_accepted"`
	ArtistsRejected int   `json:"artists_rejected" msgpack:"artists_rejected"`
	TracksSucceeded int   `json:"tracks_succeeded" msgpack:"tracks_succeeded"`
	TracksFailed    int   `json:"tracks_failed" msgpack:"tracks_failed"`
	TracksSkipped   int   `json:"tracks_skipped" msgpack:"tracks_skipped"`
	Bytes           int64 `json:"bytes" msgpack:"bytes"`
}

// Checkpoint is the durable progress of one session. It is mutated in
// memory by the discovery engine and persisted by the batch controller after
// every artist.
type Checkpoint struct {
	Session     string            `json:"session" msgpack:"session"`
	Params      params.Parameters `json:"params" msgpack:"params"`
	Fingerprint string            `json:"params_fingerprint" msgpack:"params_fingerprint"`
	Categories  map[string]string `json:"params_categories" msgpack:"params_categories"`

	Visited        []string            `json:"visited" msgpack:"visited"`
	Frontier       []Entry             `json:"frontier" msgpack:"frontier"`
	NextOrder      int64               `json:"next_order" msgpack:"next_order"`
	Reserves       map[string]*Reserve `json:"reserves,omitempty" msgpack:"reserves,omitempty"`
	ProcessedCount int                 `json:"processed_count" msgpack:"processed_count"`
	Log            []Record            `json:"log" msgpack:"log"`
	Counters       Counters            `json:"counters" msgpack:"counters"`
	// Unorganized lists downloaded files not yet moved by a shuffle. It
	// survives interrupted runs so a later shuffle covers every artist.
	Unorganized    []string            `json:"unorganized,omitempty" msgpack:"unorganized,omitempty"`

	StartedAt time.Time `json:"started_at" msgpack:"started_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
	Complete  bool      `json:"complete" msgpack:"complete"`

	visited map[string]struct{}
}

// New creates a checkpoint for a fresh session with every seed on the
// frontier at depth zero. p must be normalized.
func New(session string, p params.Parameters, now time.Time) *Checkpoint {
	cp := &Checkpoint{
		Session:     session,
		Params:      p,
		Fingerprint: p.Fingerprint(),
		Categories:  p.CategoryFingerprints(),
		Reserves:    map[string]*Reserve{},
		StartedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	for i, seed := range p.Seeds {
		cp.Push(Entry{ArtistID: seed, Depth: 0, Seed: i})
	}
	return cp
}

func (c *Checkpoint) index() map[string]struct{} {
	if c.visited == nil || len(c.visited) != len(c.Visited) {
		c.visited = make(map[string]struct{}, len(c.Visited))
		for _, id := range c.Visited {
			c.visited[id] = struct{}{}
		}
	}
	return c.visited
}

// IsVisited reports whether id was already dequeued in this session.
func (c *Checkpoint) IsVisited(id string) bool {
	_, ok := c.index()[id]
	return ok
}

// MarkVisited records id as visited. It reports false if id was already
// visited.
func (c *Checkpoint) MarkVisited(id string) bool {
	idx := c.index()
	if _, ok := idx[id]; ok {
		return false
	}
	idx[id] = struct{}{}
	c.Visited = append(c.Visited, id)
	return true
}

// IsPending reports whether id waits on the frontier.
func (c *Checkpoint) IsPending(id string) bool {
	return slices.ContainsFunc(c.Frontier, func(e Entry) bool { return e.ArtistID == id })
}

// Push inserts e at its sorted frontier position, assigning the next
// discovery order.
func (c *Checkpoint) Push(e Entry) {
	e.Order = c.NextOrder
	c.NextOrder++
	pos, _ := slices.BinarySearchFunc(c.Frontier, e, compareEntries)
	c.Frontier = slices.Insert(c.Frontier, pos, e)
}

// Pop removes and returns the first frontier entry.
func (c *Checkpoint) Pop() (Entry, bool) {
	if len(c.Frontier) == 0 {
		return Entry{}, false
	}
	e := c.Frontier[0]
	c.Frontier = slices.Delete(c.Frontier, 0, 1)
	return e, true
}

// Summary condenses a checkpoint for listings.
type Summary struct {
	Session   string    `json:"session"`
	Seeds     []string  `json:"seeds"`
	Processed int       `json:"processed"`
	Accepted  int       `json:"accepted"`
	Frontier  int       `json:"pending"`
	Complete  bool      `json:"complete"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summarize returns the listing view of c.
func (c *Checkpoint) Summarize() Summary {
	return Summary{
		Session:   c.Session,
		Seeds:     append([]string(nil), c.Params.Seeds...),
		Processed: c.ProcessedCount,
		Accepted:  c.Counters.ArtistsAccepted,
		Frontier:  len(c.Frontier),
		Complete:  c.Complete,
		StartedAt: c.StartedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Store persists checkpoints by session name. Save is atomic: a concurrent
// Load observes either the previous or the new checkpoint.
type Store interface {
	Load(ctx context.Context, session string) (*Checkpoint, error)
	Save(ctx context.Context, session string, cp *Checkpoint) error
	Clear(ctx context.Context, session string) error
	List(ctx context.Context) ([]Summary, error)
	// Backend names the storage for logs and status output.
	Backend() string
	Close() error
}

// ResumeCompatibilityError reports parameter categories that differ from
// those a session was created with.
type ResumeCompatibilityError struct {
	Session    string
	Categories []string
}

func (e *ResumeCompatibilityError) Error() string {
	return fmt.Sprintf("session %q was started with different %s parameters; rerun with the original parameters, omit them to reuse the stored ones, or pass --reset",
		e.Session, strings.Join(e.Categories, ", "))
}

func (e *ResumeCompatibilityError) Unwrap() error { return services.ErrResumeIncompatible }

// Compatible checks that p matches the parameters cp was created with. p must
// be normalized.
func Compatible(cp *Checkpoint, p params.Parameters) error {
	if cp == nil {
		return nil
	}
	if cp.Fingerprint == p.Fingerprint() {
		return nil
	}
	mismatched := p.MismatchedCategories(cp.Categories)
	if len(mismatched) == 0 {
		// Stored categories predate a category change; fall back to the
		// overall digest.
		mismatched = []string{"discovery"}
	}
	return &ResumeCompatibilityError{Session: cp.Session, Categories: mismatched}
}

// SafeName maps a session name to a storage-safe key.
func SafeName(session string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(session))
}

func validateSession(session string) error {
	if SafeName(session) == "" {
		return fmt.Errorf("%w: session name must not be empty", services.ErrConfiguration)
	}
	return nil
}
