package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/tile-duel/internal/config"
	"github.com/tile-duel/internal/domain"
)

// MatchCache holds the hot copy of public match views so the polling read
// path doesn't hit PostgreSQL on every tick. Entries carry a short TTL and
// are rewritten on every engine mutation; durable state always lives in
// the match store.
type MatchCache struct {
	client *redis.Client
	cfg    *config.RedisConfig
	logger *slog.Logger
}

// NewMatchCache creates a Redis-backed view cache.
func NewMatchCache(cfg *config.RedisConfig, logger *slog.Logger) (*MatchCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &MatchCache{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *MatchCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client
func (c *MatchCache) Client() *redis.Client {
	return c.client
}

// viewKey returns the Redis key for a match's cached public view
func (c *MatchCache) viewKey(matchID string) string {
	return fmt.Sprintf("match:%s:view", matchID)
}

// SetView stores a match's public view with the configured TTL.
func (c *MatchCache) SetView(ctx context.Context, view *domain.MatchView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshaling view: %w", err)
	}
	if err := c.client.Set(ctx, c.viewKey(view.ID), data, c.cfg.ViewTTL).Err(); err != nil {
		return fmt.Errorf("caching view: %w", err)
	}
	return nil
}

// GetView returns the cached view, or nil on a miss.
func (c *MatchCache) GetView(ctx context.Context, matchID string) (*domain.MatchView, error) {
	data, err := c.client.Get(ctx, c.viewKey(matchID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cached view: %w", err)
	}

	var view domain.MatchView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("unmarshaling cached view: %w", err)
	}
	return &view, nil
}

// Invalidate drops a match's cached view.
func (c *MatchCache) Invalidate(ctx context.Context, matchID string) error {
	if err := c.client.Del(ctx, c.viewKey(matchID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached view: %w", err)
	}
	return nil
}
