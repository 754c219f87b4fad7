package trackcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry maps a (track, quality) pair to a file on disk.
type Entry struct {
	TrackID  string    `json:"track_id"`
	Quality  string    `json:"quality"`
	ArtistID string    `json:"artist_id"`
	Path     string    `json:"path"`
	Size     int64     `json:"size_bytes"`
	StoredAt time.Time `json:"stored_at"`
}

// Stats summarizes cache contents.
type Stats struct {
	Entries int
	Artists int
	Bytes   int64
}

// Cache is the SQLite index of downloaded tracks. It is shared by every
// session and every run; entries are only removed by Remove, Prune, or Clear.
type Cache struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the cache database at dbPath.
func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	c := &Cache{db: db, path: dbPath}
	if err := c.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Path returns the database file location.
func (c *Cache) Path() string { return c.path }

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Lookup returns the entry for a track at the given quality.
func (c *Cache) Lookup(ctx context.Context, trackID, quality string) (Entry, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT track_id, quality, artist_id, path, size_bytes, stored_at
		   FROM tracks WHERE track_id = ? AND quality = ?`, trackID, quality)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup track %s: %w", trackID, err)
	}
	return entry, true, nil
}

// Record inserts or replaces an entry.
func (c *Cache) Record(ctx context.Context, e Entry) error {
	if e.TrackID == "" || e.Path == "" {
		return errors.New("record track: track id and path are required")
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	return c.execRetry(ctx,
		`INSERT INTO tracks (track_id, quality, artist_id, path, size_bytes, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(track_id, quality) DO UPDATE SET
		   artist_id = excluded.artist_id,
		   path = excluded.path,
		   size_bytes = excluded.size_bytes,
		   stored_at = excluded.stored_at`,
		e.TrackID, e.Quality, e.ArtistID, e.Path, e.Size, e.StoredAt.UTC().Format(time.RFC3339Nano))
}

// Relocate repoints every entry stored at oldPath to newPath, after the
// organizer moves a file.
func (c *Cache) Relocate(ctx context.Context, oldPath, newPath string) error {
	return c.execRetry(ctx, `UPDATE tracks SET path = ? WHERE path = ?`, newPath, oldPath)
}

// Remove deletes one entry. The file is left alone.
func (c *Cache) Remove(ctx context.Context, trackID, quality string) error {
	return c.execRetry(ctx, `DELETE FROM tracks WHERE track_id = ? AND quality = ?`, trackID, quality)
}

// List returns entries, newest first. limit <= 0 returns everything.
func (c *Cache) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT track_id, quality, artist_id, path, size_bytes, stored_at
	            FROM tracks ORDER BY stored_at DESC, track_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Stats summarizes the cache.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COUNT(DISTINCT artist_id), COALESCE(SUM(size_bytes), 0) FROM tracks`,
	).Scan(&s.Entries, &s.Artists, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return s, nil
}

// Prune removes entries whose file no longer exists and returns them.
func (c *Cache) Prune(ctx context.Context) ([]Entry, error) {
	entries, err := c.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var removed []Entry
	for _, e := range entries {
		if _, statErr := os.Stat(e.Path); statErr == nil || !errors.Is(statErr, os.ErrNotExist) {
			continue
		}
		if err := c.Remove(ctx, e.TrackID, e.Quality); err != nil {
			return removed, err
		}
		removed = append(removed, e)
	}
	return removed, nil
}

// Clear removes every entry and returns how many there were.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	var n int64
	err := retryOnBusy(ctx, func() error {
		res, err := c.db.ExecContext(ctx, `DELETE FROM tracks`)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e        Entry
		storedAt string
	)
	if err := row.Scan(&e.TrackID, &e.Quality, &e.ArtistID, &e.Path, &e.Size, &storedAt); err != nil {
		return Entry{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
		e.StoredAt = ts
	}
	return e, nil
}

func (c *Cache) execRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := c.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries op while SQLite reports the database as locked, which
// happens when two trawl processes share one state directory.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
