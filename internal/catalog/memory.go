package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"trawl/internal/services"
)

// MemoryArtist is an artist entry of an in-memory catalog.
type MemoryArtist struct {
	Artist  `yaml:",inline"`
	Similar []string      `yaml:"similar,omitempty"`
	Tracks  []MemoryTrack `yaml:"tracks,omitempty"`
}

// MemoryTrack is a track entry; Content is the payload returned by Fetch.
// When empty, Fetch returns a small deterministic payload.
type MemoryTrack struct {
	Track   `yaml:",inline"`
	Content string `yaml:"content,omitempty"`
}

type fixtureFile struct {
	Artists []MemoryArtist `yaml:"artists"`
}

// Memory is a catalog held in process memory. It backs the fixture catalog
// backend and counts every call so callers can assert which lookups happened.
type Memory struct {
	mu      sync.Mutex
	artists map[string]MemoryArtist
	calls   map[string]int
	// fetchFailures holds the number of remaining transport failures to
	// inject per track id.
	fetchFailures map[string]int
}

// NewMemory builds a catalog from artist entries.
func NewMemory(artists ...MemoryArtist) *Memory {
	m := &Memory{
		artists:       make(map[string]MemoryArtist, len(artists)),
		calls:         make(map[string]int),
		fetchFailures: make(map[string]int),
	}
	for _, a := range artists {
		m.Add(a)
	}
	return m
}

// LoadFixture reads a YAML catalog of the form:
//
//	artists:
//	  - id: a1
//	    name: First
//	    similar: [a2, a3]
//	    tracks:
//	      - {id: t1, title: Song, release_year: 2021, popularity_rank: 1}
func LoadFixture(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog fixture: %w", err)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog fixture %s: %w", path, err)
	}
	for i, a := range file.Artists {
		if a.ID == "" {
			return nil, fmt.Errorf("parse catalog fixture %s: artist #%d has no id", path, i+1)
		}
	}
	return NewMemory(file.Artists...), nil
}

// Add inserts or replaces an artist. Track artist ids and ranks are filled
// in from the entry when missing.
func (m *Memory) Add(a MemoryArtist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range a.Tracks {
		if a.Tracks[i].ArtistID == "" {
			a.Tracks[i].ArtistID = a.ID
		}
	}
	m.artists[a.ID] = a
}

// FailFetch makes the next n Fetch calls for trackID fail with a transport
// error.
func (m *Memory) FailFetch(trackID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchFailures[trackID] = n
}

// Calls returns how many times method was invoked for id. Method is one of
// artist, similar, tracks, or fetch.
func (m *Memory) Calls(method, id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method+":"+id]
}

// TotalCalls returns the number of calls to method across all ids.
func (m *Memory) TotalCalls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	prefix := method + ":"
	for key, n := range m.calls {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			total += n
		}
	}
	return total
}

func (m *Memory) lookup(ctx context.Context, method, id string) (MemoryArtist, error) {
	if err := ctx.Err(); err != nil {
		return MemoryArtist{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method+":"+id]++
	a, ok := m.artists[id]
	if !ok {
		return MemoryArtist{}, services.Wrap(services.ErrNotFound, "catalog", method, id, nil)
	}
	return a, nil
}

// Artist implements Client.
func (m *Memory) Artist(ctx context.Context, id string) (Artist, error) {
	a, err := m.lookup(ctx, "artist", id)
	if err != nil {
		return Artist{}, err
	}
	out := a.Artist
	if out.CatalogSize == 0 {
		out.CatalogSize = len(a.Tracks)
	}
	return out, nil
}

// Similar implements Client.
func (m *Memory) Similar(ctx context.Context, id string) ([]string, error) {
	a, err := m.lookup(ctx, "similar", id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), a.Similar...), nil
}

// Tracks implements Client.
func (m *Memory) Tracks(ctx context.Context, id string) ([]Track, error) {
	a, err := m.lookup(ctx, "tracks", id)
	if err != nil {
		return nil, err
	}
	out := make([]Track, 0, len(a.Tracks))
	for _, t := range a.Tracks {
		out = append(out, t.Track)
	}
	return out, nil
}

// Fetch implements Client.
func (m *Memory) Fetch(ctx context.Context, trackID string, quality Quality) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["fetch:"+trackID]++
	if n := m.fetchFailures[trackID]; n > 0 {
		m.fetchFailures[trackID] = n - 1
		return nil, services.Wrap(services.ErrTransport, "catalog", "fetch", trackID, fmt.Errorf("injected failure"))
	}
	for _, a := range m.artists {
		for _, t := range a.Tracks {
			if t.ID != trackID {
				continue
			}
			content := t.Content
			if content == "" {
				content = fmt.Sprintf("%s@%s", trackID, quality)
			}
			return io.NopCloser(bytes.NewReader([]byte(content))), nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "catalog", "fetch", trackID, nil)
}
