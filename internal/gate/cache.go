package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	id "docket/pkg/domain"
	"docket/pkg/platform/circuit"
)

// DefaultDecisionTTL bounds how long a positive download decision is served
// without recomputation.
const DefaultDecisionTTL = 5 * time.Minute

// probeEvery is the cadence of primary probes while the breaker is open:
// one call in every probeEvery reaches Redis, the rest short-circuit.
const probeEvery = 8

// RedisDecisionCache stores positive download decisions in Redis. With a
// breaker attached, a failing Redis stops being consulted after a few
// consecutive errors instead of adding its timeout to every download check;
// short-circuited reads report a miss and short-circuited writes are dropped.
type RedisDecisionCache struct {
	client    *goredis.Client
	ttl       time.Duration
	breaker   *circuit.Breaker
	logger    *slog.Logger
	probeTick atomic.Uint64
}

// CacheOption configures a RedisDecisionCache.
type CacheOption func(*RedisDecisionCache)

// WithCacheBreaker guards Redis calls with the given breaker.
func WithCacheBreaker(b *circuit.Breaker) CacheOption {
	return func(c *RedisDecisionCache) {
		c.breaker = b
	}
}

// WithCacheLogger sets the logger used for breaker transitions.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *RedisDecisionCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisDecisionCache wraps a Redis client as a DecisionCache. A
// non-positive ttl falls back to DefaultDecisionTTL.
func NewRedisDecisionCache(client *goredis.Client, ttl time.Duration, opts ...CacheOption) *RedisDecisionCache {
	if ttl <= 0 {
		ttl = DefaultDecisionTTL
	}
	c := &RedisDecisionCache{client: client, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func decisionKey(sourceID id.SourceID) string {
	return fmt.Sprintf("docket:gate:download:%s", sourceID)
}

func (c *RedisDecisionCache) GetAllowed(ctx context.Context, sourceID id.SourceID) (bool, error) {
	if c.skip() {
		return false, nil
	}
	val, err := c.client.Get(ctx, decisionKey(sourceID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// A miss is still a healthy Redis reply.
			c.observeSuccess(ctx)
			return false, nil
		}
		c.observeFailure(ctx, err)
		return false, fmt.Errorf("read decision cache: %w", err)
	}
	c.observeSuccess(ctx)
	return val == "1", nil
}

func (c *RedisDecisionCache) SetAllowed(ctx context.Context, sourceID id.SourceID) error {
	if c.skip() {
		return nil
	}
	if err := c.client.Set(ctx, decisionKey(sourceID), "1", c.ttl).Err(); err != nil {
		c.observeFailure(ctx, err)
		return fmt.Errorf("write decision cache: %w", err)
	}
	c.observeSuccess(ctx)
	return nil
}

// skip reports whether this call should bypass Redis. While the breaker is
// open every probeEvery-th call goes through as a probe so the circuit can
// close again once Redis recovers.
func (c *RedisDecisionCache) skip() bool {
	if c.breaker == nil || !c.breaker.IsOpen() {
		return false
	}
	return c.probeTick.Add(1)%probeEvery != 0
}

func (c *RedisDecisionCache) observeFailure(ctx context.Context, err error) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "decision cache circuit opened",
			"breaker", c.breaker.Name(), "error", err)
	}
}

func (c *RedisDecisionCache) observeSuccess(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "decision cache circuit closed",
			"breaker", c.breaker.Name())
	}
}
