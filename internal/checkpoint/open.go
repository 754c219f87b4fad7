package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"trawl/internal/config"
	"trawl/internal/logging"
	"trawl/internal/services"
)

// Open returns the store selected by cfg.Checkpoint.Backend. With "auto",
// Redis is used when a URL is configured and answers; otherwise sessions
// fall back to files under the state directory.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	logger = logging.NewComponentLogger(logger, "checkpoint")
	active, completed := cfg.CheckpointTTL()
	redisCfg := RedisConfig{
		URL:          cfg.Checkpoint.RedisURL,
		KeyPrefix:    cfg.Checkpoint.KeyPrefix,
		TTL:          active,
		CompletedTTL: completed,
	}
	fileStore := func() Store { return NewFileStore(cfg.SessionsDir(), logger) }

	switch cfg.Checkpoint.Backend {
	case "file":
		return fileStore(), nil
	case "redis":
		store, err := NewRedisStore(ctx, redisCfg, logger)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "checkpoint", "open", "redis backend unavailable", err)
		}
		return store, nil
	case "auto", "":
		if cfg.Checkpoint.RedisURL == "" {
			logger.Debug("no redis url configured; using file checkpoints", logging.String("dir", cfg.SessionsDir()))
			return fileStore(), nil
		}
		redisCfg.Retries = 1
		store, err := NewRedisStore(ctx, redisCfg, logger)
		if err != nil {
			logging.WarnWithContext(logger, "redis unavailable; using file checkpoints", "checkpoint_fallback",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check checkpoint.redis_url or REDIS_URL"),
				logging.String(logging.FieldImpact, "sessions stored in "+cfg.SessionsDir()),
			)
			return fileStore(), nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: checkpoint backend %q", services.ErrConfiguration, cfg.Checkpoint.Backend)
	}
}
