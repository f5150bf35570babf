package assets

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StatsVersionKey stores the current stats cache generation.
	StatsVersionKey = "itasset:stats:version"
	// StatsBumpChannel announces cache generation changes.
	StatsBumpChannel = "itasset.stats.bump"

	statsKeyPrefix = "itasset:stats"
)

// StatsCache stores aggregate payloads in Redis under versioned keys so a
// single INCR invalidates every cached filter combination.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStatsCache instantiates the cache. A nil client disables caching.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl, logger: slog.Default()}
}

// WithLogger sets the logger used for cache write failures.
func (c *StatsCache) WithLogger(logger *slog.Logger) *StatsCache {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Version returns the current generation, initialising it when missing.
func (c *StatsCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, StatsVersionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.SetNX(ctx, StatsVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, StatsVersionKey).Int64()
	}
	return ver, err
}

// Key derives the versioned cache key of a filter.
func (c *StatsCache) Key(ctx context.Context, filter StatsFilter) (string, error) {
	sum := sha1.Sum([]byte(filter.Key()))
	token := hex.EncodeToString(sum[:8])
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d", statsKeyPrefix, token, ver), nil
}

// Fetch returns the cached stats for key or computes and stores them with loader.
func (c *StatsCache) Fetch(ctx context.Context, key string, loader func(context.Context) (DashboardStats, error)) (DashboardStats, bool, error) {
	if loader == nil {
		return DashboardStats{}, false, errors.New("assets: cache loader required")
	}
	if c == nil || c.client == nil {
		stats, err := loader(ctx)
		return stats, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var stats DashboardStats
		if err := json.Unmarshal(payload, &stats); err != nil {
			return DashboardStats{}, false, err
		}
		return stats, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return DashboardStats{}, false, err
	}
	stats, err := loader(ctx)
	if err != nil {
		return DashboardStats{}, false, err
	}
	// A failed write only costs the next request a reload.
	if err := c.store(ctx, key, stats); err != nil {
		c.logger.Warn("stats cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return stats, false, nil
}

func (c *StatsCache) store(ctx context.Context, key string, stats DashboardStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump moves to a new generation and publishes it.
func (c *StatsCache) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, StatsVersionKey).Result()
	if err != nil {
		return 0, err
	}
	if err := c.client.Publish(ctx, StatsBumpChannel, strconv.FormatInt(ver, 10)).Err(); err != nil {
		return ver, err
	}
	return ver, nil
}

// ListenForInvalidation follows bump notifications published by other
// processes until ctx is cancelled. onBump is optional.
func (c *StatsCache) ListenForInvalidation(ctx context.Context, onBump func(version int64)) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, StatsBumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				if onBump != nil {
					onBump(ver)
				}
			}
		}
	}()
	return nil
}
