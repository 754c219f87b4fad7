package organizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"trawl/internal/logging"
)

// LockFileName is the advisory lock taken while the output tree is rearranged.
const LockFileName = ".trawl.lock"

const lockRetryDelay = 100 * time.Millisecond

// Options selects the finalize steps for one run.
type Options struct {
	OutputDir string
	// Files are the destinations produced by this run, in any order.
	Files   []string
	Shuffle bool
	// ShuffleSeed makes the permutation reproducible when set.
	ShuffleSeed *uint64
	Archive     bool
	// ArchiveName is the zip file name; relative names resolve against
	// OutputDir. Empty uses "<session>.zip".
	ArchiveName string
	Session     string
}

// Result reports what Finalize changed.
type Result struct {
	Moves   []Move         `json:"moves,omitempty"`
	Archive *ArchiveResult `json:"archive,omitempty"`
}

// Organizer rearranges the output directory after a run.
type Organizer struct {
	logger *slog.Logger
}

// New constructs an Organizer.
func New(logger *slog.Logger) *Organizer {
	return &Organizer{logger: logging.NewComponentLogger(logger, "organizer")}
}

// Finalize shuffles and/or archives the output directory while holding the
// output lock. It is a no-op when neither step is requested.
func (o *Organizer) Finalize(ctx context.Context, opts Options) (Result, error) {
	var result Result
	if !opts.Shuffle && !opts.Archive {
		return result, nil
	}
	outdir := strings.TrimSpace(opts.OutputDir)
	if outdir == "" {
		return result, errors.New("finalize: output directory is required")
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return result, fmt.Errorf("ensure output dir: %w", err)
	}

	lock := flock.New(filepath.Join(outdir, LockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return result, fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return result, errors.New("output directory is locked by another trawl process")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			o.logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	logger := logging.WithContext(ctx, o.logger)
	if opts.Shuffle {
		moves, err := Shuffle(outdir, opts.Files, NewRand(opts.ShuffleSeed))
		result.Moves = moves
		if err != nil {
			return result, err
		}
		logger.Info("shuffled tracks", logging.Int("moved", len(moves)), logging.String("output_dir", outdir))
	}
	if opts.Archive {
		dest := ArchivePath(outdir, opts.ArchiveName, opts.Session)
		archive, err := Archive(outdir, dest)
		if err != nil {
			return result, err
		}
		result.Archive = &archive
		logger.Info("wrote archive",
			logging.String("path", archive.Path),
			logging.Int("files", archive.Files),
			logging.Int64("bytes", archive.Bytes),
		)
	}
	return result, nil
}

// ArchivePath resolves the archive destination.
func ArchivePath(outdir, name, session string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		stem := strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(session))
		if stem == "" {
			stem = "trawl"
		}
		name = stem + ".zip"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		name += ".zip"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(outdir, name)
}
