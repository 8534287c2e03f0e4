package costplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cachePrefix = "costplan"

// Cache wraps Redis based caching with per-project version invalidation.
// A nil Cache or nil client degrades to calling the loader every time.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, logger: slog.Default()}
}

// WithLogger sets the logger used to report Redis failures that the cache
// absorbs.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	if c != nil && logger != nil {
		c.logger = logger
	}
	return c
}

func versionKey(projectID uuid.UUID) string {
	return cachePrefix + ":version:" + projectID.String()
}

// Version returns the current cache version of a project, initialising when missing.
func (c *Cache) Version(ctx context.Context, projectID uuid.UUID) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(projectID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the project's current version.
func (c *Cache) BuildKey(ctx context.Context, projectID uuid.UUID, parts ...string) (string, error) {
	joined := strings.Join(append([]string{cachePrefix, projectID.String()}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, projectID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader. Redis
// read and write failures are logged and the loader result is returned, so an
// unhealthy cache only costs a recomputation. Loader errors are returned.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("costplan: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(payload, dest); err == nil {
			return nil
		}
		c.logger.Warn("costplan cache entry unreadable", slog.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("costplan cache read", slog.String("key", key), slog.Any("error", err))
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("costplan cache write", slog.String("key", key), slog.Any("error", err))
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached entry of a project.
func (c *Cache) Bump(ctx context.Context, projectID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	if _, err := c.Version(ctx, projectID); err != nil {
		return err
	}
	return c.client.Incr(ctx, versionKey(projectID)).Err()
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func reportCacheKey(period *Period) string {
	if period == nil {
		return "report:all"
	}
	return "report:" + period.String()
}
