package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateCheckpoint(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Backend {
	case "http":
		if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
			return fmt.Errorf("catalog.base_url must be an http(s) URL, got %q", c.Catalog.BaseURL)
		}
	case "fixture":
		if strings.TrimSpace(c.Catalog.FixturePath) == "" {
			return errors.New("catalog.fixture_path must be set when catalog.backend is fixture")
		}
	default:
		return fmt.Errorf("catalog.backend: unsupported value %q (want http or fixture)", c.Catalog.Backend)
	}
	if c.Catalog.Retries < 0 {
		return errors.New("catalog.retries must be >= 0")
	}
	return nil
}

func (c *Config) validateCheckpoint() error {
	switch c.Checkpoint.Backend {
	case "auto", "file":
	case "redis":
		if c.Checkpoint.RedisURL == "" {
			return errors.New("checkpoint.redis_url must be set when checkpoint.backend is redis (or set REDIS_URL)")
		}
	default:
		return fmt.Errorf("checkpoint.backend: unsupported value %q (want auto, redis, or file)", c.Checkpoint.Backend)
	}
	return nil
}

func (c *Config) validateDownload() error {
	switch c.Download.Quality {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("download.quality: unsupported value %q (want low, medium, or high)", c.Download.Quality)
	}
	if c.Download.Parallel < 1 {
		return errors.New("download.parallel must be >= 1")
	}
	if c.Download.MaxRetries < 0 {
		return errors.New("download.max_retries must be >= 0")
	}
	if c.Download.RetryCooldownSeconds < 0 {
		return errors.New("download.retry_cooldown_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if c.Discovery.TracksPerArtist < 1 {
		return errors.New("discovery.tracks_per_artist must be >= 1")
	}
	if c.Discovery.SimilarCount < 0 {
		return errors.New("discovery.similar_count must be >= 0")
	}
	if c.Discovery.MaxDepth < 0 {
		return errors.New("discovery.max_depth must be >= 0")
	}
	if c.Discovery.MaxSimilarAttempts < 0 {
		return errors.New("discovery.max_similar_attempts must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console, json, or auto)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
