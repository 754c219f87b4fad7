package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"trawl/internal/catalog"
	"trawl/internal/checkpoint"
	"trawl/internal/config"
	"trawl/internal/logging"
	"trawl/internal/services"
	"trawl/internal/trackcache"
)

type commandContext struct {
	configFlag    *string
	logFormatFlag *string
	verboseFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logFormatFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logFormatFlag: logFormatFlag,
		verboseFlag:   verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("%w: %w", services.ErrConfiguration, err)
			return
		}
		if c.logFormatFlag != nil && strings.TrimSpace(*c.logFormatFlag) != "" {
			cfg.Logging.Format = strings.TrimSpace(*c.logFormatFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		verbose := c.verboseFlag != nil && *c.verboseFlag
		logger, err := logging.NewFromConfig(cfg, verbose)
		if err != nil {
			c.loggerErr = fmt.Errorf("%w: %w", services.ErrConfiguration, err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// catalogClient builds the configured catalog backend. No network activity
// happens here.
func (c *commandContext) catalogClient(logger *slog.Logger) (catalog.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	switch cfg.Catalog.Backend {
	case "fixture":
		client, err := catalog.LoadFixture(cfg.Catalog.FixturePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", services.ErrConfiguration, err)
		}
		return client, nil
	default:
		return catalog.NewHTTPClient(catalog.HTTPOptions{
			BaseURL:   cfg.Catalog.BaseURL,
			Token:     cfg.Catalog.Token,
			UserAgent: cfg.Catalog.UserAgent,
			Timeout:   cfg.CatalogTimeout(),
			Retries:   cfg.Catalog.Retries,
		}, logger), nil
	}
}

func (c *commandContext) openStore(ctx context.Context, logger *slog.Logger) (checkpoint.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return checkpoint.Open(ctx, cfg, logger)
}

func (c *commandContext) openCache() (*trackcache.Cache, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	cache, err := trackcache.Open(cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("open track cache: %w", err)
	}
	return cache, nil
}

// withStore opens the checkpoint store for the duration of fn.
func (c *commandContext) withStore(ctx context.Context, fn func(checkpoint.Store) error) error {
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	store, err := c.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// withCache opens the track cache for the duration of fn.
func (c *commandContext) withCache(fn func(*trackcache.Cache) error) error {
	cache, err := c.openCache()
	if err != nil {
		return err
	}
	defer cache.Close()
	return fn(cache)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
