package testsupport

import (
	"context"
	"fmt"
	"testing"

	"trawl/internal/catalog"
	"trawl/internal/trackcache"
)

// Artist builds an in-memory catalog artist named after id with one track
// per entry in years, ranked in order. Track ids are "<id>-t<n>".
func Artist(id string, similar []string, years ...int) catalog.MemoryArtist {
	a := catalog.MemoryArtist{
		Artist:  catalog.Artist{ID: id, Name: "Artist " + id},
		Similar: similar,
	}
	for i, y := range years {
		a.Tracks = append(a.Tracks, catalog.MemoryTrack{Track: catalog.Track{
			ID:             fmt.Sprintf("%s-t%d", id, i+1),
			ArtistID:       id,
			Title:          fmt.Sprintf("Song %d", i+1),
			ReleaseYear:    y,
			PopularityRank: i + 1,
		}})
	}
	return a
}

// Years repeats year n times, for artists whose catalog all falls in one year.
func Years(year, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = year
	}
	return out
}

// MustOpenCache opens a track cache for tests and registers cleanup.
func MustOpenCache(t testing.TB, path string) *trackcache.Cache {
	t.Helper()

	cache, err := trackcache.Open(path)
	if err != nil {
		t.Fatalf("trackcache.Open: %v", err)
	}
	t.Cleanup(func() {
		cache.Close()
	})
	return cache
}

// MustRecord stores a cache entry or fails the test.
func MustRecord(t testing.TB, cache *trackcache.Cache, e trackcache.Entry) {
	t.Helper()
	if err := cache.Record(context.Background(), e); err != nil {
		t.Fatalf("cache.Record: %v", err)
	}
}
