package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Client wraps a Redis connection used for distributed schedule locks.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	logger.Info("Connecting to Redis",
		slog.String("addr", config.Addr),
		slog.Int("db", config.DB),
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: config.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")

	return &Client{rdb: rdb, logger: logger}, nil
}

// AcquireLock takes a lock via SET NX with a TTL. It returns true when the
// lock was acquired, false when another holder already owns it.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// ReleaseLock drops a lock before its TTL expires
func (c *Client) ReleaseLock(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")

	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection",
			slog.Any("error", err),
		)
		return err
	}
	return nil
}
