// Package redis builds the shared go-redis client behind the gate decision
// cache. A process without Redis recomputes every decision instead of caching,
// so an empty URL yields a nil client rather than an error.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"docket/internal/platform/config"
)

// Client wraps the go-redis client so callers can probe connection health
// without importing the driver.
type Client struct {
	*goredis.Client
}

// New connects using cfg and verifies the connection with a ping bounded by
// ctx. Returns (nil, nil) when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
