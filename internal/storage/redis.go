package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pkgstorage "github.com/jwebster45206/dialogue-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultGameStateTTL = time.Hour
	DefaultCastFile     = "cast.toml"
)

// RedisStorage implements the Storage interface using Redis for gamestate
// and the filesystem for static resources (graphs, cast)
type RedisStorage struct {
	client   *redis.Client
	logger   *slog.Logger
	dataDir  string
	castFile string
	ttl      time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ pkgstorage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance.
// redisURL is either host:port or a redis:// URL.
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) *RedisStorage {
	opts := &redis.Options{Addr: redisURL}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("Invalid Redis URL, using it as an address", "url", redisURL, "error", err)
		} else {
			opts = parsed
		}
	}

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:   redis.NewClient(opts),
		logger:   logger,
		dataDir:  dataDir,
		castFile: DefaultCastFile,
		ttl:      DefaultGameStateTTL,
	}
}

// WithCastFile sets the cast file, relative to the data directory unless absolute
// Returns the RedisStorage for method chaining
func (r *RedisStorage) WithCastFile(path string) *RedisStorage {
	if path != "" {
		r.castFile = path
	}
	return r
}

// WithTTL sets how long a saved gamestate lives without being saved again
// Returns the RedisStorage for method chaining
func (r *RedisStorage) WithTTL(ttl time.Duration) *RedisStorage {
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// Client exposes the Redis client for pub/sub consumers (event broadcaster, SSE, WebSocket)
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}
