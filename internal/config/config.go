package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Catalog contains configuration for the remote music catalog.
type Catalog struct {
	Backend        string `toml:"backend"` // http or fixture
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	FixturePath    string `toml:"fixture_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Retries        int    `toml:"retries"`
	UserAgent      string `toml:"user_agent"`
}

// Checkpoint contains configuration for session checkpoint persistence.
type Checkpoint struct {
	Backend          string `toml:"backend"` // auto, redis, or file
	RedisURL         string `toml:"redis_url"`
	KeyPrefix        string `toml:"key_prefix"`
	TTLDays          int    `toml:"ttl_days"`
	CompletedTTLDays int    `toml:"completed_ttl_days"`
}

// Download contains configuration for the download orchestrator.
type Download struct {
	Quality              string  `toml:"quality"`
	Parallel             int     `toml:"parallel"`
	MaxRetries           int     `toml:"max_retries"`
	RetryCooldownSeconds int     `toml:"retry_cooldown_seconds"`
	RetryExponent        float64 `toml:"retry_exponent"`
	FileExtension        string  `toml:"file_extension"`
	WriteTags            bool    `toml:"write_tags"`
}

// Discovery contains default traversal parameters applied when the command
// line leaves them unset.
type Discovery struct {
	TracksPerArtist    int `toml:"tracks_per_artist"`
	SimilarCount       int `toml:"similar_count"`
	MaxDepth           int `toml:"max_depth"`
	MaxSimilarAttempts int `toml:"max_similar_attempts"`
}

// Server contains configuration for the output directory browser.
type Server struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for trawl.
//
// Configuration sections by subsystem:
//   - Paths: output, state, and log directories
//   - Catalog: remote catalog endpoint and credentials
//   - Checkpoint: session persistence backend and retention
//   - Download: quality, concurrency, and retry policy
//   - Discovery: default traversal parameters
//   - Server: bind address for `trawl serve`
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Catalog    Catalog    `toml:"catalog"`
	Checkpoint Checkpoint `toml:"checkpoint"`
	Download   Download   `toml:"download"`
	Discovery  Discovery  `toml:"discovery"`
	Server     Server     `toml:"server"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/trawl/config.toml")
}

// Load reads the configuration at path, or searches the default locations
// when path is empty. It returns the config, the file it came from (or would
// have come from), and whether that file existed. Missing files fall back to
// defaults; the result is always normalized and validated.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config %s: %w", resolved, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// resolveConfigPath honours an explicit path even when the file is missing.
// Otherwise the user config wins over ./trawl.toml.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		ok, err := isRegularFile(expanded)
		return expanded, ok, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	localPath, err := expandPath("trawl.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if ok, _ := isRegularFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isRegularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	}
	return !info.IsDir(), nil
}

// EnsureDirectories creates the state and log directories. The output
// directory is created lazily by the first download.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionsDir is where the file checkpoint backend keeps session records.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.Paths.StateDir, "sessions")
}

// CachePath is the SQLite track cache location.
func (c *Config) CachePath() string {
	return filepath.Join(c.Paths.StateDir, "cache.db")
}

// CacheDir holds cached track payloads that live outside any output directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Paths.StateDir, "tracks")
}

// CatalogTimeout returns the per-request catalog timeout.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// CheckpointTTL returns the retention for active and completed sessions.
func (c *Config) CheckpointTTL() (active, completed time.Duration) {
	day := 24 * time.Hour
	return time.Duration(c.Checkpoint.TTLDays) * day, time.Duration(c.Checkpoint.CompletedTTLDays) * day
}

// expandPath resolves a leading ~ and makes the result absolute. Empty
// input stays empty so optional paths can pass through.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the same rules the config uses to a caller-supplied path.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the annotated sample config to path, creating parent
// directories as needed.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
