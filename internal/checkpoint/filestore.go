package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"trawl/internal/logging"
)

// FileStore keeps one JSON document per session under dir.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore returns a store rooted at dir, typically <state_dir>/sessions.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logging.NewComponentLogger(logger, "checkpoint")}
}

// Backend implements Store.
func (s *FileStore) Backend() string { return "file" }

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// Path returns the file backing session.
func (s *FileStore) Path(session string) string {
	return filepath.Join(s.dir, SafeName(session)+".json")
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, session string) (*Checkpoint, error) {
	if err := validateSession(session); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(session))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.Path(session), err)
	}
	if cp.Reserves == nil {
		cp.Reserves = map[string]*Reserve{}
	}
	return &cp, nil
}

// Save implements Store. The document is written to a temp file in the same
// directory, synced, and renamed over the previous version.
func (s *FileStore) Save(_ context.Context, session string, cp *Checkpoint) error {
	if err := validateSession(session); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure sessions directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, SafeName(session)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(session)); err != nil {
		cleanup()
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	syncDir(s.dir)
	return nil
}

// Clear implements Store. Clearing an absent session is not an error.
func (s *FileStore) Clear(_ context.Context, session string) error {
	if err := validateSession(session); err != nil {
		return err
	}
	if err := os.Remove(s.Path(session)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}

// List implements Store. Unreadable documents are skipped with a warning.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var out []Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		cp, err := s.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unreadable session file", "checkpoint_decode_failed",
				logging.String("path", filepath.Join(s.dir, name)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file or reset the session"),
				logging.String(logging.FieldImpact, "session is hidden from listings"),
			)
			continue
		}
		out = append(out, cp.Summarize())
	}
	sortSummaries(out)
	return out, nil
}

func sortSummaries(out []Summary) {
	slices.SortFunc(out, func(a, b Summary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}

// syncDir flushes a directory entry after rename. Failure only weakens
// durability, so it is ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

var _ Store = (*FileStore)(nil)
