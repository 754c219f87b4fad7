package preflight

import (
	"context"

	"trawl/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name    string
	Passed  bool
	Skipped bool
	Detail  string
}

// OK reports whether the check passed or did not apply.
func (r Result) OK() bool { return r.Passed || r.Skipped }

// RunAll executes every check that applies to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckCreatableDirectory("Output directory", cfg.Paths.OutputDir),
		CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeBytes),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	if cfg.Checkpoint.Backend != "file" {
		results = append(results, CheckRedis(ctx, cfg.Checkpoint.RedisURL))
	}

	results = append(results, CheckCatalog(ctx, cfg.Catalog))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
