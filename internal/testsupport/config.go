package testsupport

import (
	"path/filepath"
	"testing"

	"trawl/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Checkpoints default to the file backend so tests never reach for Redis.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Checkpoint.Backend = "file"
	cfgVal.Checkpoint.RedisURL = ""
	cfgVal.Download.RetryCooldownSeconds = 0
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRedis switches checkpoints to a Redis server, typically miniredis.
func WithRedis(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Checkpoint.Backend = "redis"
		b.cfg.Checkpoint.RedisURL = url
	}
}

// WithFixtureCatalog points the catalog at a YAML fixture.
func WithFixtureCatalog(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Backend = "fixture"
		b.cfg.Catalog.FixturePath = path
	}
}

// WithParallel overrides download concurrency.
func WithParallel(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.Parallel = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
