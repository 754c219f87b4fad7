package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"trawl/internal/logging"
)

const (
	// DefaultKeyPrefix namespaces session keys.
	DefaultKeyPrefix = "trawl:progress:"
	// DefaultTTL retains active sessions.
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultCompletedTTL retains completed sessions.
	DefaultCompletedTTL = 7 * 24 * time.Hour
	// DefaultTimeout bounds each Redis command.
	DefaultTimeout = 5 * time.Second
	// DefaultRetries is the number of retry attempts after the first.
	DefaultRetries = 3
)

// RedisConfig configures the Redis checkpoint backend.
type RedisConfig struct {
	// URL format: redis://[:password@]host:port[/db]
	URL          string
	KeyPrefix    string
	TTL          time.Duration
	CompletedTTL time.Duration
	Timeout      time.Duration
	Retries      int
	// Backoff is the wait before the first retry; it doubles per attempt.
	Backoff time.Duration
}

// RedisStore keeps msgpack encoded checkpoints in Redis with a TTL.
type RedisStore struct {
	cfg    RedisConfig
	client *goredis.Client
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies the server answers PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis checkpoint store requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis checkpoint store: invalid URL: %w", err)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CompletedTTL <= 0 {
		cfg.CompletedTTL = DefaultCompletedTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}

	s := &RedisStore{
		cfg:    cfg,
		client: goredis.NewClient(opts),
		logger: logging.NewComponentLogger(logger, "checkpoint"),
	}
	if err := s.Ping(ctx); err != nil {
		s.client.Close()
		return nil, err
	}
	return s, nil
}

// Backend implements Store.
func (s *RedisStore) Backend() string { return "redis" }

// Close releases the connection pool.
func (s *RedisStore) Close() error { return s.client.Close() }

// Key returns the Redis key for session.
func (s *RedisStore) Key(session string) string {
	return s.cfg.KeyPrefix + SafeName(session)
}

// IndexKey returns the sorted set listing known sessions, scored by their
// last update. It sits outside the session key space so no session name can
// collide with it.
func (s *RedisStore) IndexKey() string {
	return strings.TrimSuffix(s.cfg.KeyPrefix, ":") + "-index"
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, session string) (*Checkpoint, error) {
	if err := validateSession(session); err != nil {
		return nil, err
	}
	var data []byte
	err := s.do(ctx, "get", func(ctx context.Context) error {
		var err error
		data, err = s.client.Get(ctx, s.Key(session)).Bytes()
		return err
	})
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Save implements Store. SET replaces the value atomically; completed
// sessions get the shorter retention.
func (s *RedisStore) Save(ctx context.Context, session string, cp *Checkpoint) error {
	if err := validateSession(session); err != nil {
		return err
	}
	data, err := msgpack.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	ttl := s.cfg.TTL
	if cp.Complete {
		ttl = s.cfg.CompletedTTL
	}
	member := goredis.Z{Score: float64(cp.UpdatedAt.Unix()), Member: SafeName(session)}
	return s.do(ctx, "set", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, s.Key(session), data, ttl)
			pipe.ZAdd(ctx, s.IndexKey(), member)
			pipe.Expire(ctx, s.IndexKey(), s.cfg.TTL)
			return nil
		})
		return err
	})
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, session string) error {
	if err := validateSession(session); err != nil {
		return err
	}
	return s.do(ctx, "del", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, s.Key(session))
			pipe.ZRem(ctx, s.IndexKey(), SafeName(session))
			return nil
		})
		return err
	})
}

// TTL reports the remaining retention of a session.
func (s *RedisStore) TTL(ctx context.Context, session string) (time.Duration, error) {
	var ttl time.Duration
	err := s.do(ctx, "ttl", func(ctx context.Context) error {
		var err error
		ttl, err = s.client.TTL(ctx, s.Key(session)).Result()
		return err
	})
	return ttl, err
}

// List implements Store from the session index. Index members whose
// checkpoint has expired are pruned.
func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	var names []string
	err := s.do(ctx, "zrange", func(ctx context.Context) error {
		var err error
		names, err = s.client.ZRange(ctx, s.IndexKey(), 0, -1).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis: list sessions: %w", err)
	}

	out := make([]Summary, 0, len(names))
	var expired []any
	for _, name := range names {
		cp, err := s.Load(ctx, name)
		if errors.Is(err, ErrNotFound) {
			expired = append(expired, name)
			continue
		}
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unreadable session", "checkpoint_decode_failed",
				logging.String("key", s.Key(name)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "reset the session"),
				logging.String(logging.FieldImpact, "session is hidden from listings"),
			)
			continue
		}
		out = append(out, cp.Summarize())
	}
	if len(expired) > 0 {
		if err := s.do(ctx, "zrem", func(ctx context.Context) error {
			return s.client.ZRem(ctx, s.IndexKey(), expired...).Err()
		}); err != nil {
			s.logger.Debug("failed to prune session index", logging.Error(err))
		}
	}
	sortSummaries(out)
	return out, nil
}

// do runs op with a per-attempt timeout and exponential backoff between
// attempts. goredis.Nil is returned immediately.
func (s *RedisStore) do(ctx context.Context, name string, op func(context.Context) error) error {
	attempts := 1 + s.cfg.Retries
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: %s: %w", name, err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * s.cfg.Backoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: %s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		lastErr = op(opCtx)
		cancel()

		if lastErr == nil || errors.Is(lastErr, goredis.Nil) {
			return lastErr
		}
		s.logger.Debug("redis command failed",
			logging.String("command", name),
			logging.Int("attempt", i+1),
			logging.Error(lastErr),
		)
	}
	return fmt.Errorf("redis: %s failed after %d attempts: %w", name, attempts, lastErr)
}

func decode(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := msgpack.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if cp.Reserves == nil {
		cp.Reserves = map[string]*Reserve{}
	}
	return &cp, nil
}

var _ Store = (*RedisStore)(nil)
