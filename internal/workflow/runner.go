package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"trawl/internal/catalog"
	"trawl/internal/checkpoint"
	"trawl/internal/discovery"
	"trawl/internal/download"
	"trawl/internal/fileutil"
	"trawl/internal/logging"
	"trawl/internal/organizer"
	"trawl/internal/params"
	"trawl/internal/services"
	"trawl/internal/stats"
)

// StopReason explains why Run returned.
type StopReason string

const (
	// StopComplete means the frontier was exhausted.
	StopComplete StopReason = "complete"
	// StopBatchLimit means max_artists artists were processed in this run.
	StopBatchLimit StopReason = "batch_limit"
	// StopInterrupted means the context was cancelled.
	StopInterrupted StopReason = "interrupted"
)

// Downloader turns an accepted artist's selection into files.
type Downloader interface {
	Process(ctx context.Context, artist catalog.Artist, tracks []catalog.Track) (download.Result, error)
}

// Relocator follows files moved by the organizer.
type Relocator interface {
	Relocate(ctx context.Context, oldPath, newPath string) error
}

// Request describes one invocation of a session.
type Request struct {
	Session string
	// Params may omit seeds when resuming; the stored parameters are then
	// adopted, with Overrides laid on top and checked for compatibility.
	Params    params.Parameters
	Overrides params.Overrides
	Resume bool
	Reset  bool
	RunID  string

	Shuffle     bool
	ShuffleSeed *uint64
	Archive     bool
	ArchiveName string
	// TreePath, when set, receives the discovery tree as JSON.
	TreePath string
}

// Summary reports the outcome of Run.
type Summary struct {
	Session   string
	RunID     string
	Stop      StopReason
	Resumed   bool
	Stats     stats.Snapshot
	Processed int
	// Totals are the cumulative session counters after this run.
	Totals         checkpoint.Counters
	TotalProcessed int
	Pending        int
	Files          []string
	Organizer      organizer.Result
	TreePath       string
}

// Dependencies wires a Runner.
type Dependencies struct {
	Store      checkpoint.Store
	Engine     *discovery.Engine
	Downloader Downloader
	Organizer  *organizer.Organizer
	Relocator  Relocator
	Collector  *stats.Collector
	OutputDir  string
	Logger     *slog.Logger
	Now        func() time.Time
}

// Runner is the batch controller: it drives discovery one artist at a time,
// downloads accepted artists, and checkpoints after each one.
type Runner struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewRunner validates deps and returns a Runner.
func NewRunner(deps Dependencies) (*Runner, error) {
	if deps.Store == nil || deps.Engine == nil || deps.Downloader == nil {
		return nil, errors.New("runner requires a checkpoint store, discovery engine, and downloader")
	}
	if deps.Collector == nil {
		deps.Collector = stats.NewCollector()
	}
	if deps.Organizer == nil {
		deps.Organizer = organizer.New(deps.Logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{deps: deps, logger: logging.NewComponentLogger(deps.Logger, "workflow")}, nil
}

// Run executes one batch of the session named in req.
//
// On cancellation Run returns context.Canceled together with a summary of
// the work done; nothing is saved after the last completed artist.
func (r *Runner) Run(ctx context.Context, req Request) (Summary, error) {
	req.Session = strings.TrimSpace(req.Session)
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	summary := Summary{Session: req.Session, RunID: req.RunID}
	if err := validateRequest(&req); err != nil {
		return summary, err
	}

	ctx = services.WithSession(ctx, req.Session)
	ctx = services.WithRunID(ctx, req.RunID)
	logger := logging.WithContext(ctx, r.logger)

	cp, resumed, err := r.prepare(ctx, logger, req)
	if err != nil {
		return summary, err
	}
	summary.Resumed = resumed
	limit := cp.Params.MaxArtists

	logger.Info("session started",
		logging.Bool("resumed", resumed),
		logging.String("checkpoint_backend", r.deps.Store.Backend()),
		logging.Int("processed", cp.ProcessedCount),
		logging.Int("pending", len(cp.Frontier)),
		logging.Int("max_artists", limit),
	)

	finish := func(stop StopReason) Summary {
		summary.Stop = stop
		summary.Stats = r.deps.Collector.Snapshot()
		summary.Totals = cp.Counters
		summary.TotalProcessed = cp.ProcessedCount
		summary.Pending = len(cp.Frontier)
		return summary
	}

	stop := StopComplete
	if cp.Complete {
		logger.Info("session already complete; nothing to discover")
	}
	for !cp.Complete {
		if limit > 0 && summary.Processed >= limit {
			if len(cp.Frontier) > 0 {
				stop = StopBatchLimit
			}
			break
		}
		step, ok, err := r.deps.Engine.Next(ctx, cp)
		if err != nil {
			if ctx.Err() != nil {
				return finish(StopInterrupted), ctx.Err()
			}
			logAbort(logger, "discovery", err)
			return finish(""), err
		}
		if !ok {
			break
		}

		files, err := r.handleStep(ctx, cp, step)
		if err != nil {
			if ctx.Err() != nil {
				return finish(StopInterrupted), ctx.Err()
			}
			logAbort(logger, "artist", err)
			return finish(""), err
		}
		summary.Files = append(summary.Files, files...)
		summary.Processed++
	}

	if stop == StopComplete && !cp.Complete {
		cp.Complete = true
		cp.UpdatedAt = r.deps.Now().UTC()
		if err := r.deps.Store.Save(ctx, req.Session, cp); err != nil {
			if ctx.Err() != nil {
				return finish(StopInterrupted), ctx.Err()
			}
			return finish(""), fmt.Errorf("save completed checkpoint: %w", err)
		}
	}

	if req.TreePath != "" {
		if err := WriteTree(req.TreePath, BuildTree(cp, r.deps.Now())); err != nil {
			logging.WarnWithContext(logger, "failed to write discovery tree", "tree_export_failed",
				logging.String("path", req.TreePath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the tree path is writable"),
			)
		} else {
			summary.TreePath = req.TreePath
		}
	}

	result, err := r.finalize(ctx, logger, req, cp)
	summary.Organizer = result
	out := finish(stop)
	if err != nil {
		return out, err
	}
	logger.Info("session batch finished",
		logging.String("stop_reason", string(stop)),
		logging.Int("processed", out.Processed),
		logging.Int("pending", out.Pending),
	)
	return out, nil
}

func validateRequest(req *Request) error {
	if checkpoint.SafeName(req.Session) == "" {
		return fmt.Errorf("%w: session name must not be empty", services.ErrConfiguration)
	}
	if req.Resume && req.Reset {
		return fmt.Errorf("%w: --resume and --reset are mutually exclusive", services.ErrConfiguration)
	}
	req.Params.Normalize()
	if len(req.Params.Seeds) == 0 {
		if !req.Resume {
			return fmt.Errorf("%w: at least one seed artist is required", services.ErrConfiguration)
		}
		return nil
	}
	if err := req.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
	}
	return nil
}

// prepare loads, resets, or creates the session checkpoint.
func (r *Runner) prepare(ctx context.Context, logger *slog.Logger, req Request) (*checkpoint.Checkpoint, bool, error) {
	store := r.deps.Store
	cp, err := store.Load(ctx, req.Session)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		cp = nil
	case err != nil:
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}

	if cp != nil && req.Reset {
		if err := store.Clear(ctx, req.Session); err != nil {
			return nil, false, fmt.Errorf("reset session: %w", err)
		}
		logger.Info("session reset", logging.Int("discarded_processed", cp.ProcessedCount))
		cp = nil
	}

	if cp != nil {
		if !req.Resume {
			return nil, false, fmt.Errorf("%w: session %q already has a checkpoint (%d artists processed); pass --resume to continue or --reset to start over",
				services.ErrConfiguration, req.Session, cp.ProcessedCount)
		}
		if len(req.Params.Seeds) == 0 {
			if !req.Overrides.IsZero() {
				if err := checkpoint.Compatible(cp, req.Overrides.Apply(cp.Params)); err != nil {
					return nil, false, err
				}
			}
			logger.Info("adopting stored session parameters", logging.Any("seeds", cp.Params.Seeds))
		} else {
			if err := checkpoint.Compatible(cp, req.Params); err != nil {
				return nil, false, err
			}
			cp.Params = req.Params
		}
		// Batch size is not fingerprinted and may change between runs.
		cp.Params.MaxArtists = req.Params.MaxArtists
		return cp, true, nil
	}

	if len(req.Params.Seeds) == 0 {
		return nil, false, fmt.Errorf("%w: session %q has no checkpoint to resume and no seeds were given", services.ErrConfiguration, req.Session)
	}
	if req.Resume {
		logging.WarnWithContext(logger, "no checkpoint to resume; starting a new session", "resume_without_checkpoint",
			logging.String(logging.FieldImpact, "discovery starts from the seeds"),
			logging.String(logging.FieldErrorHint, "check the session name with 'trawl session list'"),
		)
	}
	cp = checkpoint.New(req.Session, req.Params, r.deps.Now())
	if err := store.Save(ctx, req.Session, cp); err != nil {
		return nil, false, fmt.Errorf("create checkpoint: %w", err)
	}
	return cp, false, nil
}

// handleStep downloads an accepted artist, updates counters, and persists
// the checkpoint. It returns the files the artist now has on disk.
func (r *Runner) handleStep(ctx context.Context, cp *checkpoint.Checkpoint, step discovery.Step) ([]string, error) {
	logger := logging.WithContext(services.WithArtistID(ctx, step.Artist.ID), r.logger)
	var files []string
	if step.Accepted {
		r.deps.Collector.ArtistAccepted(step.Artist.Countries...)
		res, err := r.deps.Downloader.Process(ctx, step.Artist, step.Tracks)
		if err != nil {
			return nil, err
		}
		cp.Counters.TracksSucceeded += res.Succeeded
		cp.Counters.TracksFailed += res.Failed
		cp.Counters.TracksSkipped += res.Skipped
		cp.Counters.Bytes += res.Bytes
		files = res.Files()
		cp.Unorganized = append(cp.Unorganized, files...)
		logger.Info("artist processed",
			logging.String("name", step.Artist.Name),
			logging.Int(logging.FieldDepth, step.Depth),
			logging.Int("downloaded", res.Succeeded),
			logging.Int("skipped", res.Skipped),
			logging.Int("failed", res.Failed),
		)
	} else {
		r.deps.Collector.ArtistRejected(step.Reason)
		logger.Info("artist filtered out",
			logging.String("name", step.Artist.Name),
			logging.Int(logging.FieldDepth, step.Depth),
			logging.String("reason", step.Reason),
			logging.String("substitute", step.Substitute),
		)
	}

	cp.UpdatedAt = r.deps.Now().UTC()
	if err := r.deps.Store.Save(ctx, cp.Session, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	return files, nil
}

// finalize shuffles and archives the output directory. The shuffle covers
// every file recorded in cp.Unorganized, including files from earlier runs
// that ended before reaching this step; moved files are dropped from the
// list and the checkpoint is saved again.
func (r *Runner) finalize(ctx context.Context, logger *slog.Logger, req Request, cp *checkpoint.Checkpoint) (organizer.Result, error) {
	if !req.Shuffle && !req.Archive {
		return organizer.Result{}, nil
	}
	var files []string
	if req.Shuffle {
		files = slices.Clone(cp.Unorganized)
		slices.Sort(files)
		files = slices.Compact(files)
	}
	result, err := r.deps.Organizer.Finalize(ctx, organizer.Options{
		OutputDir:   r.deps.OutputDir,
		Files:       files,
		Shuffle:     req.Shuffle,
		ShuffleSeed: req.ShuffleSeed,
		Archive:     req.Archive,
		ArchiveName: req.ArchiveName,
		Session:     req.Session,
	})
	if r.deps.Relocator != nil {
		for _, move := range result.Moves {
			if relErr := r.deps.Relocator.Relocate(ctx, move.From, move.To); relErr != nil {
				logger.Warn("cache relocation failed", logging.String("from", move.From), logging.Error(relErr))
			}
		}
	}
	if req.Shuffle {
		moved := make(map[string]struct{}, len(result.Moves))
		for _, move := range result.Moves {
			moved[move.From] = struct{}{}
		}
		cp.Unorganized = slices.DeleteFunc(cp.Unorganized, func(path string) bool {
			if _, ok := moved[path]; ok {
				return true
			}
			return !fileutil.Exists(path)
		})
		if len(cp.Unorganized) == 0 {
			cp.Unorganized = nil
		}
		cp.UpdatedAt = r.deps.Now().UTC()
		if saveErr := r.deps.Store.Save(ctx, cp.Session, cp); saveErr != nil && err == nil {
			err = saveErr
		}
	}
	if err != nil {
		return result, fmt.Errorf("organize output: %w", err)
	}
	return result, nil
}

func logAbort(logger *slog.Logger, stage string, err error) {
	logging.ErrorWithContext(logger, "session aborted", "session_aborted",
		logging.String("stage", stage),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check catalog connectivity, then rerun with --resume"),
	)
}
