package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trawl/internal/catalog"
	"trawl/internal/config"
	"trawl/internal/discovery"
	"trawl/internal/download"
	"trawl/internal/logging"
	"trawl/internal/organizer"
	"trawl/internal/params"
	"trawl/internal/services"
	"trawl/internal/stats"
	"trawl/internal/workflow"
)

type runOptions struct {
	artists   []string
	seedsFile string

	tracks  int
	similar int
	depth   int

	years     string
	countries []string
	exclude   []string
	inTop     string

	quality   string
	parallel  int
	outputDir string

	shuffle     bool
	shuffleSeed uint64
	archive     bool
	archiveName string

	session    string
	resume     bool
	reset      bool
	maxArtists int

	tree string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover similar artists from seeds and download their top tracks",
		Long: `Run a discovery session: walk the similar-artist graph breadth first from the
seed artists, keep the artists that pass the filters, and download their most
popular matching tracks.

Progress is checkpointed after every artist. With --max-artists the run stops
after that many artists; continue it with --resume and the same --session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, ctx, &opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.artists, "artist", "a", nil, "Seed artist id (repeatable or comma separated)")
	flags.StringVar(&opts.seedsFile, "seeds-file", "", "File listing seed artist ids (text or YAML)")
	flags.IntVarP(&opts.tracks, "tracks", "n", 0, "Tracks to download per artist (default from config)")
	flags.IntVarP(&opts.similar, "similar", "s", 0, "Similar artists to expand per accepted artist")
	flags.IntVarP(&opts.depth, "depth", "d", 0, "Maximum discovery depth (0 processes only the seeds)")
	flags.StringVarP(&opts.years, "years", "y", "", "Release year or range, e.g. 2020 or 2020-2024")
	flags.StringSliceVarP(&opts.countries, "countries", "C", nil, "Allowed market country codes (comma separated)")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "Artist ids never to process")
	flags.StringVar(&opts.inTop, "in-top", "", "Only consider the artist's top N tracks or top P% (requires --years)")
	flags.StringVarP(&opts.quality, "quality", "q", "", "Download quality: low, medium, or high")
	flags.IntVarP(&opts.parallel, "parallel", "p", 0, "Concurrent downloads per artist")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "Output directory")
	flags.BoolVar(&opts.shuffle, "shuffle", false, "Move downloads into one folder with shuffled numeric prefixes")
	flags.Uint64Var(&opts.shuffleSeed, "shuffle-seed", 0, "Seed for a reproducible shuffle")
	flags.BoolVar(&opts.archive, "archive", false, "Write a zip archive of the output directory when the batch ends")
	flags.StringVar(&opts.archiveName, "archive-name", "", "Archive file name (default <session>.zip)")
	flags.StringVar(&opts.session, "session", "", "Session name (default run-<random>)")
	flags.BoolVar(&opts.resume, "resume", false, "Continue the session from its checkpoint")
	flags.BoolVar(&opts.reset, "reset", false, "Discard the session checkpoint and start over")
	flags.IntVar(&opts.maxArtists, "max-artists", 0, "Stop after processing this many artists (0 means no limit)")
	flags.StringVar(&opts.tree, "tree", "", "Write the discovery tree as JSON to this file")

	return cmd
}

// buildParameters turns flags into session parameters, taking unset values
// from the [discovery] config section. Without seeds the explicitly given
// discovery flags are also returned as overrides so a resume can check them
// against the stored session.
func buildParameters(cmd *cobra.Command, cfg *config.Config, opts *runOptions) (params.Parameters, params.Overrides, error) {
	flags := cmd.Flags()
	p := params.Parameters{
		TracksPerArtist:    cfg.Discovery.TracksPerArtist,
		SimilarCount:       cfg.Discovery.SimilarCount,
		MaxDepth:           cfg.Discovery.MaxDepth,
		MaxSimilarAttempts: cfg.Discovery.MaxSimilarAttempts,
		Countries:          params.SplitList(opts.countries),
		Exclude:            params.SplitList(opts.exclude),
		MaxArtists:         opts.maxArtists,
	}
	if flags.Changed("tracks") {
		p.TracksPerArtist = opts.tracks
	}
	if flags.Changed("similar") {
		p.SimilarCount = opts.similar
	}
	if flags.Changed("depth") {
		p.MaxDepth = opts.depth
	}

	switch {
	case strings.TrimSpace(opts.seedsFile) != "" && len(opts.artists) > 0:
		return p, params.Overrides{}, fmt.Errorf("%w: --artist and --seeds-file are mutually exclusive", services.ErrConfiguration)
	case strings.TrimSpace(opts.seedsFile) != "":
		path, err := config.ExpandPath(strings.TrimSpace(opts.seedsFile))
		if err != nil {
			return p, params.Overrides{}, fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
		seeds, err := params.LoadSeedFile(path)
		if err != nil {
			return p, params.Overrides{}, fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
		p.Seeds = seeds
	default:
		p.Seeds = params.SplitList(opts.artists)
	}

	if strings.TrimSpace(opts.years) != "" {
		years, err := params.ParseYears(opts.years)
		if err != nil {
			return p, params.Overrides{}, err
		}
		p.Years = years
	}
	if strings.TrimSpace(opts.inTop) != "" {
		inTop, err := params.ParseInTop(opts.inTop)
		if err != nil {
			return p, params.Overrides{}, err
		}
		p.InTop = inTop
	}

	p.Normalize()
	if len(p.Seeds) > 0 {
		if err := p.Validate(); err != nil {
			return p, params.Overrides{}, err
		}
		return p, params.Overrides{}, nil
	}
	if p.MaxArtists < 0 {
		return p, params.Overrides{}, fmt.Errorf("%w: max artists must be >= 0", services.ErrValidation)
	}
	return p, discoveryOverrides(cmd, p), nil
}

func discoveryOverrides(cmd *cobra.Command, p params.Parameters) params.Overrides {
	flags := cmd.Flags()
	var o params.Overrides
	if flags.Changed("tracks") {
		o.TracksPerArtist = &p.TracksPerArtist
	}
	if flags.Changed("similar") {
		o.SimilarCount = &p.SimilarCount
	}
	if flags.Changed("depth") {
		o.MaxDepth = &p.MaxDepth
	}
	if flags.Changed("years") {
		o.Years = p.Years
	}
	if flags.Changed("countries") {
		o.Countries = nonNil(p.Countries)
	}
	if flags.Changed("exclude") {
		o.Exclude = nonNil(p.Exclude)
	}
	if flags.Changed("in-top") {
		o.InTop = p.InTop
	}
	return o
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func resolveSessionName(opts *runOptions) (string, error) {
	name := strings.TrimSpace(opts.session)
	if name != "" {
		return name, nil
	}
	if opts.resume {
		return "", fmt.Errorf("%w: --resume requires --session", services.ErrConfiguration)
	}
	return "run-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8], nil
}

func runSession(cmd *cobra.Command, ctx *commandContext, opts *runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	p, overrides, err := buildParameters(cmd, cfg, opts)
	if err != nil {
		return err
	}
	session, err := resolveSessionName(opts)
	if err != nil {
		return err
	}
	quality := cfg.Download.Quality
	if strings.TrimSpace(opts.quality) != "" {
		quality = opts.quality
	}
	q, err := catalog.ParseQuality(quality)
	if err != nil {
		return fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	parallel := cfg.Download.Parallel
	if cmd.Flags().Changed("parallel") {
		if opts.parallel < 1 {
			return fmt.Errorf("%w: --parallel must be >= 1", services.ErrValidation)
		}
		parallel = opts.parallel
	}
	outputDir := cfg.Paths.OutputDir
	if strings.TrimSpace(opts.outputDir) != "" {
		if outputDir, err = config.ExpandPath(strings.TrimSpace(opts.outputDir)); err != nil {
			return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
	}
	var shuffleSeed *uint64
	if cmd.Flags().Changed("shuffle-seed") {
		seed := opts.shuffleSeed
		shuffleSeed = &seed
	}

	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	client, err := ctx.catalogClient(logger)
	if err != nil {
		return err
	}
	store, err := ctx.openStore(runCtx, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	cache, err := ctx.openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	collector := stats.NewCollector()
	downloader := download.New(client, cache, download.Options{
		OutputDir:     outputDir,
		Quality:       q,
		Parallel:      parallel,
		MaxRetries:    cfg.Download.MaxRetries,
		RetryCooldown: time.Duration(cfg.Download.RetryCooldownSeconds) * time.Second,
		RetryExponent: cfg.Download.RetryExponent,
		Extension:     cfg.Download.FileExtension,
		WriteTags:     cfg.Download.WriteTags,
	}, collector, logger)

	runner, err := workflow.NewRunner(workflow.Dependencies{
		Store:      store,
		Engine:     discovery.New(client, logger),
		Downloader: downloader,
		Organizer:  organizer.New(logger),
		Relocator:  cache,
		Collector:  collector,
		OutputDir:  outputDir,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var treePath string
	if strings.TrimSpace(opts.tree) != "" {
		if treePath, err = config.ExpandPath(strings.TrimSpace(opts.tree)); err != nil {
			return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
	}

	summary, runErr := runner.Run(runCtx, workflow.Request{
		Session:     session,
		Params:      p,
		Overrides:   overrides,
		Resume:      opts.resume,
		Reset:       opts.reset,
		Shuffle:     opts.shuffle,
		ShuffleSeed: shuffleSeed,
		Archive:     opts.archive,
		ArchiveName: opts.archiveName,
		TreePath:    treePath,
	})
	if summary.Stop != "" {
		printRunSummary(cmd.OutOrStdout(), summary, opts, isDecorated(cmd.OutOrStdout()))
	}
	if errors.Is(runErr, context.Canceled) {
		logging.WarnWithContext(logger, "run interrupted", "run_interrupted",
			logging.String(logging.FieldSession, session),
			logging.String(logging.FieldImpact, "work after the last completed artist is discarded"),
			logging.String(logging.FieldErrorHint, "rerun with --resume to continue"),
		)
	}
	return runErr
}

func printRunSummary(out io.Writer, summary workflow.Summary, opts *runOptions, decorated bool) {
	fmt.Fprintln(out, stats.Render(summary.Stats, decorated))
	switch summary.Stop {
	case workflow.StopBatchLimit:
		fmt.Fprintf(out, "Batch limit reached: %d artists processed this run, %d pending.\n", summary.Processed, summary.Pending)
		fmt.Fprintf(out, "Continue with: %s\n", resumeCommand(summary.Session, opts))
	case workflow.StopInterrupted:
		fmt.Fprintf(out, "Interrupted after %d artists. Continue with: %s\n", summary.Processed, resumeCommand(summary.Session, opts))
	case workflow.StopComplete:
		fmt.Fprintf(out, "Session %s complete: %d artists processed in total.\n", summary.Session, summary.TotalProcessed)
	}
	if summary.Organizer.Archive != nil {
		fmt.Fprintf(out, "Archive: %s (%d files)\n", summary.Organizer.Archive.Path, summary.Organizer.Archive.Files)
	}
	if summary.TreePath != "" {
		fmt.Fprintf(out, "Discovery tree: %s\n", summary.TreePath)
	}
}

func resumeCommand(session string, opts *runOptions) string {
	cmd := fmt.Sprintf("trawl run --resume --session %s", session)
	if opts != nil && opts.maxArtists > 0 {
		cmd += fmt.Sprintf(" --max-artists %d", opts.maxArtists)
	}
	return cmd
}
