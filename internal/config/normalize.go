package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeCheckpoint()
	c.normalizeDownload()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.Backend = strings.ToLower(strings.TrimSpace(c.Catalog.Backend))
	if c.Catalog.Backend == "" {
		c.Catalog.Backend = defaultCatalogBackend
	}
	if c.Catalog.Token == "" {
		if value, ok := os.LookupEnv("TRAWL_CATALOG_TOKEN"); ok {
			c.Catalog.Token = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv("TRAWL_CATALOG_URL"); ok && strings.TrimSpace(value) != "" {
		c.Catalog.BaseURL = value
	}
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	if strings.TrimSpace(c.Catalog.FixturePath) != "" {
		var err error
		if c.Catalog.FixturePath, err = expandPath(c.Catalog.FixturePath); err != nil {
			return fmt.Errorf("catalog.fixture_path: %w", err)
		}
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeout
	}
	if strings.TrimSpace(c.Catalog.UserAgent) == "" {
		c.Catalog.UserAgent = defaultCatalogUserAgent
	}
	return nil
}

func (c *Config) normalizeCheckpoint() {
	c.Checkpoint.Backend = strings.ToLower(strings.TrimSpace(c.Checkpoint.Backend))
	if c.Checkpoint.Backend == "" {
		c.Checkpoint.Backend = defaultCheckpointBackend
	}
	if c.Checkpoint.RedisURL == "" {
		if value, ok := os.LookupEnv("REDIS_URL"); ok {
			c.Checkpoint.RedisURL = strings.TrimSpace(value)
		}
	}
	if c.Checkpoint.KeyPrefix == "" {
		c.Checkpoint.KeyPrefix = defaultCheckpointKeyPrefix
	}
	if c.Checkpoint.TTLDays <= 0 {
		c.Checkpoint.TTLDays = defaultCheckpointTTLDays
	}
	if c.Checkpoint.CompletedTTLDays <= 0 {
		c.Checkpoint.CompletedTTLDays = defaultCompletedTTLDays
	}
}

func (c *Config) normalizeDownload() {
	c.Download.Quality = strings.ToLower(strings.TrimSpace(c.Download.Quality))
	if c.Download.Quality == "" {
		c.Download.Quality = defaultQuality
	}
	c.Download.FileExtension = strings.TrimPrefix(strings.TrimSpace(c.Download.FileExtension), ".")
	if c.Download.FileExtension == "" {
		c.Download.FileExtension = defaultFileExtension
	}
	if c.Download.RetryExponent <= 0 {
		c.Download.RetryExponent = defaultRetryExponent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
