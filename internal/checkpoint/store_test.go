package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"trawl/internal/config"
	"trawl/internal/logging"
)

func sampleCheckpoint(session string) *Checkpoint {
	cp := New(session, testParams("a", "b"), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	cp.Pop()
	cp.MarkVisited("a")
	cp.ProcessedCount = 1
	cp.Push(Entry{ArtistID: "a1", Depth: 1, Seed: 0, Parent: "a"})
	cp.Reserves["a"] = &Reserve{Candidates: []string{"a9"}, Depth: 1, Seed: 0}
	cp.Log = append(cp.Log, Record{ID: "a", Name: "Alpha", Accepted: true, Tracks: 3})
	cp.Counters.TracksSucceeded = 3
	cp.Counters.Bytes = 1234
	return cp
}

func assertRoundTrip(t *testing.T, got, want *Checkpoint) {
	t.Helper()
	if got.Session != want.Session || got.Fingerprint != want.Fingerprint {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if !slices.Equal(got.Visited, want.Visited) {
		t.Fatalf("visited mismatch: %v vs %v", got.Visited, want.Visited)
	}
	if !slices.Equal(frontierIDs(got), frontierIDs(want)) || got.NextOrder != want.NextOrder {
		t.Fatalf("frontier mismatch: %v vs %v", frontierIDs(got), frontierIDs(want))
	}
	if got.ProcessedCount != 1 || got.Counters.Bytes != 1234 || len(got.Log) != 1 {
		t.Fatalf("progress mismatch: %+v", got)
	}
	if r := got.Reserves["a"]; r == nil || !slices.Equal(r.Candidates, []string{"a9"}) {
		t.Fatalf("reserve mismatch: %+v", got.Reserves)
	}
	if !got.IsVisited("a") {
		t.Fatal("visited index should rebuild after decode")
	}
	if err := Compatible(got, want.Params); err != nil {
		t.Fatalf("stored params should stay compatible: %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "sessions"), logging.NewNop())

	if _, err := store.Load(ctx, "rock/indie"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cp := sampleCheckpoint("rock/indie")
	if err := store.Save(ctx, "rock/indie", cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(store.Path("rock/indie")) != "rock_indie.json" {
		t.Fatalf("unexpected path %s", store.Path("rock/indie"))
	}
	got, err := store.Load(ctx, "rock/indie")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertRoundTrip(t, got, cp)

	entries, err := os.ReadDir(filepath.Dir(store.Path("x")))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}

	summaries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Session != "rock/indie" || summaries[0].Processed != 1 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	if err := store.Clear(ctx, "rock/indie"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Load(ctx, "rock/indie"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
	if err := store.Clear(ctx, "rock/indie"); err != nil {
		t.Fatalf("clearing twice should succeed: %v", err)
	}
}

func TestFileStoreListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, logging.NewNop())
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Save(context.Background(), "ok", sampleCheckpoint("ok")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	summaries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Session != "ok" {
		t.Fatalf("unexpected summaries %+v", summaries)
	}
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(t.Context(), RedisConfig{
		URL:     "redis://" + mr.Addr(),
		Retries: 1,
		Backoff: time.Millisecond,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreRoundTripAndTTL(t *testing.T) {
	ctx := t.Context()
	store, mr := newRedisStore(t)

	if _, err := store.Load(ctx, "jazz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cp := sampleCheckpoint("jazz")
	if err := store.Save(ctx, "jazz", cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("trawl:progress:jazz") {
		t.Fatalf("expected key under default prefix, have %v", mr.Keys())
	}
	if ttl := mr.TTL("trawl:progress:jazz"); ttl != DefaultTTL {
		t.Fatalf("expected active ttl %s, got %s", DefaultTTL, ttl)
	}

	got, err := store.Load(ctx, "jazz")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertRoundTrip(t, got, cp)

	cp.Complete = true
	if err := store.Save(ctx, "jazz", cp); err != nil {
		t.Fatalf("Save complete: %v", err)
	}
	if ttl := mr.TTL("trawl:progress:jazz"); ttl != DefaultCompletedTTL {
		t.Fatalf("expected completed ttl %s, got %s", DefaultCompletedTTL, ttl)
	}

	if err := store.Save(ctx, "blues", sampleCheckpoint("blues")); err != nil {
		t.Fatalf("Save blues: %v", err)
	}
	summaries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected two sessions, got %+v", summaries)
	}

	if err := store.Clear(ctx, "jazz"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if mr.Exists("trawl:progress:jazz") {
		t.Fatal("expected key to be deleted")
	}
	members, err := mr.ZMembers(store.IndexKey())
	if err != nil || !slices.Equal(members, []string{"blues"}) {
		t.Fatalf("expected index to hold only blues, got %v (%v)", members, err)
	}
}

func TestRedisStoreListPrunesExpiredSessions(t *testing.T) {
	ctx := t.Context()
	store, mr := newRedisStore(t)

	done := sampleCheckpoint("done")
	done.Complete = true
	if err := store.Save(ctx, "done", done); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "open", sampleCheckpoint("open")); err != nil {
		t.Fatal(err)
	}
	if err := mr.Set("trawl:progress:stray", "not a session"); err != nil {
		t.Fatal(err)
	}

	// Past the completed retention but inside the active one.
	mr.FastForward(DefaultCompletedTTL + time.Hour)
	summaries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Session != "open" {
		t.Fatalf("expected only the open session, got %+v", summaries)
	}
	members, err := mr.ZMembers(store.IndexKey())
	if err != nil || !slices.Equal(members, []string{"open"}) {
		t.Fatalf("expected expired member to be pruned, got %v (%v)", members, err)
	}
}

func TestRedisStoreRetriesAfterOutage(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.SetError("LOADING dataset in memory")
	err := store.Save(t.Context(), "s", sampleCheckpoint("s"))
	if err == nil {
		t.Fatal("expected error while server is failing")
	}
	mr.SetError("")
	if err := store.Save(t.Context(), "s", sampleCheckpoint("s")); err != nil {
		t.Fatalf("expected save to succeed after recovery: %v", err)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := t.Context()
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()

	cfg.Checkpoint.Backend = "file"
	store, err := Open(ctx, &cfg, logging.NewNop())
	if err != nil || store.Backend() != "file" {
		t.Fatalf("file backend: %v %v", store, err)
	}

	cfg.Checkpoint.Backend = "auto"
	cfg.Checkpoint.RedisURL = ""
	store, err = Open(ctx, &cfg, logging.NewNop())
	if err != nil || store.Backend() != "file" {
		t.Fatalf("auto without url should use files: %v %v", store, err)
	}

	mr := miniredis.RunT(t)
	cfg.Checkpoint.RedisURL = "redis://" + mr.Addr()
	store, err = Open(ctx, &cfg, logging.NewNop())
	if err != nil || store.Backend() != "redis" {
		t.Fatalf("auto with reachable redis: %v %v", store, err)
	}
	store.Close()

	cfg.Checkpoint.RedisURL = "redis://127.0.0.1:1"
	store, err = Open(ctx, &cfg, logging.NewNop())
	if err != nil || store.Backend() != "file" {
		t.Fatalf("auto with unreachable redis should fall back: %v %v", store, err)
	}

	cfg.Checkpoint.Backend = "redis"
	if _, err := Open(ctx, &cfg, logging.NewNop()); err == nil {
		t.Fatal("explicit redis backend should fail when unreachable")
	}
}
