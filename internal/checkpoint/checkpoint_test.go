package checkpoint

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"trawl/internal/params"
	"trawl/internal/services"
)

func testParams(seeds ...string) params.Parameters {
	p := params.Parameters{Seeds: seeds, TracksPerArtist: 3, SimilarCount: 2, MaxDepth: 1}
	p.Normalize()
	return p
}

func frontierIDs(cp *Checkpoint) []string {
	out := make([]string, len(cp.Frontier))
	for i, e := range cp.Frontier {
		out[i] = e.ArtistID
	}
	return out
}

func TestNewSeedsFrontierInOrder(t *testing.T) {
	cp := New("s", testParams("a", "b", "c"), time.Now())
	if got := frontierIDs(cp); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected frontier %v", got)
	}
	if cp.NextOrder != 3 {
		t.Fatalf("expected next order 3, got %d", cp.NextOrder)
	}
	if cp.Fingerprint == "" || len(cp.Categories) != len(params.Categories) {
		t.Fatalf("expected fingerprints to be recorded: %q %v", cp.Fingerprint, cp.Categories)
	}
}

func TestPushKeepsSeedDepthOrder(t *testing.T) {
	cp := New("s", testParams("a", "b"), time.Now())
	cp.Pop() // a
	cp.Push(Entry{ArtistID: "a1", Depth: 1, Seed: 0, Parent: "a"})
	cp.Push(Entry{ArtistID: "a2", Depth: 1, Seed: 0, Parent: "a"})
	// A substitute discovered later still sorts ahead of seed b.
	cp.Push(Entry{ArtistID: "a3", Depth: 1, Seed: 0, Parent: "a"})
	cp.Push(Entry{ArtistID: "b1", Depth: 1, Seed: 1, Parent: "b"})

	if got := frontierIDs(cp); !slices.Equal(got, []string{"a1", "a2", "a3", "b", "b1"}) {
		t.Fatalf("unexpected frontier %v", got)
	}
	if !cp.IsPending("a3") || cp.IsPending("zzz") {
		t.Fatal("unexpected pending lookup")
	}
}

func TestVisitedIndexRebuildsLazily(t *testing.T) {
	cp := &Checkpoint{Visited: []string{"x", "y"}}
	if !cp.IsVisited("x") || cp.IsVisited("z") {
		t.Fatal("unexpected visited lookup on decoded checkpoint")
	}
	if !cp.MarkVisited("z") {
		t.Fatal("expected first visit to succeed")
	}
	if cp.MarkVisited("z") {
		t.Fatal("expected repeat visit to be refused")
	}
	if len(cp.Visited) != 3 {
		t.Fatalf("visited should grow monotonically, got %v", cp.Visited)
	}
}

func TestCompatibleNamesCategories(t *testing.T) {
	cp := New("jazz", testParams("a"), time.Now())
	if err := Compatible(cp, testParams("a")); err != nil {
		t.Fatalf("identical parameters should be compatible: %v", err)
	}

	changed := testParams("a")
	changed.TracksPerArtist = 9
	changed.MaxDepth = 2
	err := Compatible(cp, changed)
	var rce *ResumeCompatibilityError
	if !errors.As(err, &rce) {
		t.Fatalf("expected ResumeCompatibilityError, got %v", err)
	}
	if !slices.Equal(rce.Categories, []string{params.CategorySelection, params.CategoryTraversal}) {
		t.Fatalf("unexpected categories %v", rce.Categories)
	}
	if !errors.Is(err, services.ErrResumeIncompatible) {
		t.Fatal("expected error to classify as resume incompatible")
	}
	if !strings.Contains(err.Error(), "jazz") || !strings.Contains(err.Error(), "selection") {
		t.Fatalf("unexpected message %q", err.Error())
	}

	batch := testParams("a")
	batch.MaxArtists = 5
	if err := Compatible(cp, batch); err != nil {
		t.Fatalf("max artists must not break compatibility: %v", err)
	}
}

func TestSafeName(t *testing.T) {
	if got := SafeName(" rock/indie\\2024 "); got != "rock_indie_2024" {
		t.Fatalf("unexpected safe name %q", got)
	}
	if err := validateSession("  "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for blank session, got %v", err)
	}
}
