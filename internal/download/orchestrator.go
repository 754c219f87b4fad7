package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"trawl/internal/catalog"
	"trawl/internal/fileutil"
	"trawl/internal/logging"
	"trawl/internal/organizer"
	"trawl/internal/stats"
	"trawl/internal/tagging"
	"trawl/internal/trackcache"
)

// Cache is the subset of the track cache the orchestrator needs.
type Cache interface {
	Lookup(ctx context.Context, trackID, quality string) (trackcache.Entry, bool, error)
	Record(ctx context.Context, e trackcache.Entry) error
}

// Options configures download behavior.
type Options struct {
	OutputDir string
	Quality   catalog.Quality
	Parallel  int
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries    int
	RetryCooldown time.Duration
	RetryExponent float64
	Extension     string
	WriteTags     bool
}

// Result collects the terminal tasks of one artist.
type Result struct {
	Tasks     []Task
	Succeeded int
	Failed    int
	Skipped   int
	Bytes     int64
}

// Files returns the destinations that hold a track after the run.
func (r Result) Files() []string {
	var out []string
	for _, t := range r.Tasks {
		if t.State == StateSucceeded || t.State == StateSkipped {
			out = append(out, t.Dest)
		}
	}
	return out
}

// Orchestrator downloads an artist's selected tracks under bounded
// concurrency, consulting the shared cache first.
type Orchestrator struct {
	client    catalog.Client
	cache     Cache
	tagger    *tagging.Tagger
	collector *stats.Collector
	logger    *slog.Logger
	opts      Options
	wait      func(ctx context.Context, d time.Duration)
}

// New constructs an Orchestrator. collector may be nil.
func New(client catalog.Client, cache Cache, opts Options, collector *stats.Collector, logger *slog.Logger) *Orchestrator {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryExponent <= 0 {
		opts.RetryExponent = 1
	}
	if opts.Quality == "" {
		opts.Quality = catalog.QualityHigh
	}
	var tagger *tagging.Tagger
	if opts.WriteTags && tagging.Supports(opts.Extension) {
		tagger = tagging.New()
	}
	return &Orchestrator{
		client:    client,
		cache:     cache,
		tagger:    tagger,
		collector: collector,
		logger:    logging.NewComponentLogger(logger, "download"),
		opts:      opts,
		wait:      sleepContext,
	}
}

// Process downloads tracks for artist. Individual task failures are
// reported in the Result and never abort siblings; the returned error is
// non-nil only when ctx is cancelled.
func (o *Orchestrator) Process(ctx context.Context, artist catalog.Artist, tracks []catalog.Track) (Result, error) {
	var result Result
	if len(tracks) == 0 {
		return result, ctx.Err()
	}
	logger := logging.WithContext(ctx, o.logger).With(logging.String(logging.FieldArtistID, artist.ID))

	dests := organizer.Destinations(o.opts.OutputDir, artist, tracks, o.opts.Extension)
	tasks := make([]Task, len(tracks))
	for i, tr := range tracks {
		tasks[i] = newTask(artist.ID, tr, o.opts.Quality, dests[tr.ID])
	}

	events := make(chan Task, len(tasks))
	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		for task := range events {
			o.aggregate(logger, &result, task)
		}
	}()

	var g errgroup.Group
	g.SetLimit(o.opts.Parallel)
	for i := range tasks {
		task := &tasks[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			o.run(ctx, artist, task, logger)
			events <- *task
			return nil
		})
	}
	_ = g.Wait()
	close(events)
	<-aggregated

	result.Tasks = tasks
	return result, ctx.Err()
}

// aggregate runs on the single aggregator goroutine and owns result and
// stats updates.
func (o *Orchestrator) aggregate(logger *slog.Logger, result *Result, task Task) {
	trackAttr := logging.String(logging.FieldTrackID, task.Track.ID)
	switch task.State {
	case StateSucceeded:
		result.Succeeded++
		result.Bytes += task.Bytes
		o.collector.TrackSucceeded(task.Bytes)
		logger.Debug("track downloaded", trackAttr, logging.String("path", task.Dest), logging.Int64("bytes", task.Bytes))
	case StateSkipped:
		result.Skipped++
		o.collector.TrackSkipped()
		logger.Debug("track served from cache", trackAttr, logging.String("source", task.Source))
	case StateFailed:
		if task.Reason == ReasonCancelled {
			return
		}
		result.Failed++
		o.collector.TrackFailed()
		logging.WarnWithContext(logger, "track download failed", "download_failed",
			trackAttr,
			logging.String("title", task.Track.Title),
			logging.Int("attempts", task.Attempts),
			logging.String("reason", task.Reason),
			logging.String(logging.FieldErrorHint, "check catalog connectivity; the track is retried on the next run of this artist"),
			logging.String(logging.FieldImpact, "track missing from output"),
		)
	}
}

func (o *Orchestrator) run(ctx context.Context, artist catalog.Artist, task *Task, logger *slog.Logger) {
	quality := string(task.Quality)
	entry, hit, err := o.cache.Lookup(ctx, task.Track.ID, quality)
	if err != nil {
		logger.Warn("cache lookup failed; downloading", logging.String(logging.FieldTrackID, task.Track.ID), logging.Error(err))
	}
	if hit && fileutil.Exists(entry.Path) {
		_ = task.transition(StateCached, "")
		linkErr := fileutil.LinkOrCopy(entry.Path, task.Dest)
		if linkErr == nil {
			task.Source = entry.Path
			task.Bytes = entry.Size
			_ = task.transition(StateSkipped, "")
			return
		}
		logger.Warn("cache materialization failed; downloading",
			logging.String(logging.FieldTrackID, task.Track.ID),
			logging.String("source", entry.Path),
			logging.Error(linkErr),
		)
	}

	_ = task.transition(StateDownloading, "")
	var lastErr error
	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		task.Attempts = attempt + 1
		n, err := o.fetch(ctx, task)
		if err == nil {
			task.Bytes = n
			lastErr = nil
			break
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < o.opts.MaxRetries {
			logger.Debug("retrying track download",
				logging.String(logging.FieldTrackID, task.Track.ID),
				logging.Int("attempt", attempt+1),
				logging.Error(err),
			)
			o.wait(ctx, o.cooldown(attempt))
		}
	}
	if lastErr != nil {
		reason := lastErr.Error()
		if ctx.Err() != nil {
			reason = ReasonCancelled
		}
		_ = task.transition(StateFailed, reason)
		return
	}

	if o.tagger != nil {
		if err := o.tagger.Write(task.Dest, artist, task.Track); err != nil {
			logger.Warn("tagging failed; keeping untagged file", logging.String(logging.FieldTrackID, task.Track.ID), logging.Error(err))
		} else if info, statErr := os.Stat(task.Dest); statErr == nil {
			task.Bytes = info.Size()
		}
	}

	if err := o.cache.Record(ctx, trackcache.Entry{
		TrackID:  task.Track.ID,
		Quality:  quality,
		ArtistID: task.ArtistID,
		Path:     task.Dest,
		Size:     task.Bytes,
	}); err != nil {
		logger.Warn("cache record failed", logging.String(logging.FieldTrackID, task.Track.ID), logging.Error(err))
	}
	_ = task.transition(StateSucceeded, "")
}

func (o *Orchestrator) fetch(ctx context.Context, task *Task) (int64, error) {
	body, err := o.client.Fetch(ctx, task.Track.ID, task.Quality)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	n, err := fileutil.WriteAtomic(task.Dest, contextReader{ctx: ctx, r: body})
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", task.Dest, err)
	}
	return n, nil
}

// cooldown is RetryCooldown * RetryExponent^attempt.
func (o *Orchestrator) cooldown(attempt int) time.Duration {
	return time.Duration(float64(o.opts.RetryCooldown) * math.Pow(o.opts.RetryExponent, float64(attempt)))
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// contextReader stops a copy promptly once ctx is cancelled, even when the
// underlying body does not observe the context.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
