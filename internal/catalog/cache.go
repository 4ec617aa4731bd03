/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/models"
)

// Default TTL values for cached lookups. Playlists change rarely relative to
// how often displays resolve them; players almost never.
const (
	DefaultPlaylistTTL = 5 * time.Minute
	DefaultPlayerTTL   = 30 * time.Minute
)

// Key prefixes for Redis cache.
const (
	keyPlaylist = "heimdall:cache:playlist:" // + playlist_id
	keyPlayer   = "heimdall:cache:player:"   // + player_id
)

// CacheConfig contains cache configuration.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PlaylistTTL time.Duration
	PlayerTTL   time.Duration

	// If true, disable caching entirely after a Redis error instead of
	// retrying every lookup against a dead server.
	DisableOnError bool
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		PlaylistTTL:    DefaultPlaylistTTL,
		PlayerTTL:      DefaultPlayerTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed lookup caching with graceful fallback. All
// methods are best-effort: a cache failure never fails the lookup, it only
// falls through to the database.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config CacheConfig

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// NewCache creates a cache instance, probing the Redis connection. An
// unreachable Redis yields a disabled cache, not an error.
func NewCache(cfg CacheConfig, logger zerolog.Logger) *Cache {
	if cfg.PlaylistTTL == 0 {
		cfg.PlaylistTTL = DefaultPlaylistTTL
	}
	if cfg.PlayerTTL == 0 {
		cfg.PlayerTTL = DefaultPlayerTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := &Cache{
		client: client,
		logger: logger.With().Str("component", "catalog_cache").Logger(),
		config: cfg,
	}

	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Redis unavailable, catalog cache disabled")
		c.disabled = true
		return c
	}

	c.logger.Info().Str("addr", cfg.RedisAddr).Msg("catalog cache initialized")
	return c
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")
	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling catalog cache due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.IsAvailable() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
	}
}

func (c *Cache) delete(ctx context.Context, key string) {
	if !c.IsAvailable() {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
	}
}

// GetPlaylist returns a cached playlist, if present.
func (c *Cache) GetPlaylist(ctx context.Context, id string) (*models.Playlist, bool) {
	var pl models.Playlist
	if c.get(ctx, keyPlaylist+id, &pl) {
		return &pl, true
	}
	return nil, false
}

// SetPlaylist caches a playlist.
func (c *Cache) SetPlaylist(ctx context.Context, pl *models.Playlist) {
	c.set(ctx, keyPlaylist+pl.ID, pl, c.config.PlaylistTTL)
}

// InvalidatePlaylist drops a cached playlist.
func (c *Cache) InvalidatePlaylist(ctx context.Context, id string) {
	c.delete(ctx, keyPlaylist+id)
}

// GetPlayer returns a cached player, if present.
func (c *Cache) GetPlayer(ctx context.Context, id string) (*models.Player, bool) {
	var p models.Player
	if c.get(ctx, keyPlayer+id, &p) {
		return &p, true
	}
	return nil, false
}

// SetPlayer caches a player.
func (c *Cache) SetPlayer(ctx context.Context, p *models.Player) {
	c.set(ctx, keyPlayer+p.ID, p, c.config.PlayerTTL)
}

// InvalidatePlayer drops a cached player.
func (c *Cache) InvalidatePlayer(ctx context.Context, id string) {
	c.delete(ctx, keyPlayer+id)
}
