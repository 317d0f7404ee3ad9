// Package cache holds the Redis connection used by the dependency checks.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"

	"github.com/abnerjacobsen/das-sankhya/internal/config"
	"github.com/abnerjacobsen/das-sankhya/internal/logger"
)

// ErrClosed is returned by Ping after Close
var ErrClosed = errors.New("redis client closed")

// Client wraps a Redis client opened at startup and closed on shutdown
type Client struct {
	rdb         *redis.Client
	pingTimeout time.Duration
	log         *logger.ComponentLogger
}

// New wraps an existing Redis client
func New(rdb *redis.Client, pingTimeout time.Duration) *Client {
	return &Client{
		rdb:         rdb,
		pingTimeout: pingTimeout,
		log:         logger.Get().WithComponent("cache"),
	}
}

// Connect opens a client from cfg and pings it, retrying up to cfg.ConnectAttempts times
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	c := New(redis.NewClient(opts), cfg.PingTimeout)

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	err = retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.ConnectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("redis connection attempt failed", logger.Fields{
				"attempt": n + 1,
				"addr":    opts.Addr,
				"error":   err.Error(),
			})
		}),
	).Do(func() error {
		return c.Ping(ctx)
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	c.log.Info("redis connected", logger.Fields{
		"addr": opts.Addr,
		"db":   opts.DB,
	})
	return c, nil
}

// Ping checks that Redis answers within the ping timeout
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return ErrClosed
	}

	if c.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pingTimeout)
		defer cancel()
	}

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	c.log.Info("redis client closed")
	return nil
}
