// Package redis wraps go-redis for the per-table migration lease and the form
// schema cache. Redis is optional: callers degrade when NewClient fails.
package redis

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/config"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

var (
	ErrClientClosed     = errors.New(errors.ErrCodeInternal, "redis client is closed")
	ErrConnectionFailed = errors.New(errors.ErrCodeServiceUnavailable, "redis connection failed")
)

const connectTimeout = 5 * time.Second

// Client owns one go-redis connection pool and the key prefix every lease and
// cache entry lives under.
type Client struct {
	rdb    redis.UniversalClient
	prefix string
	log    logging.Logger
	closed atomic.Bool
}

// NewClient dials cfg.Addr and fails unless the first PING succeeds.
func NewClient(cfg config.RedisConfig, log logging.Logger) (*Client, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     orDefault(cfg.PoolSize, 20),
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  orDefaultDuration(cfg.DialTimeout, connectTimeout),
		ReadTimeout:  orDefaultDuration(cfg.ReadTimeout, 3*time.Second),
		WriteTimeout: orDefaultDuration(cfg.WriteTimeout, 3*time.Second),
	}
	c := NewClientWithRDB(redis.NewClient(opts), cfg.KeyPrefix, log)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, ErrConnectionFailed.WithDetail(cfg.Addr).WithCause(err)
	}

	c.log.Info("redis connected", logging.String("addr", cfg.Addr), logging.Int("db", cfg.DB))
	return c, nil
}

// NewClientWithRDB adopts an already configured go-redis client.
func NewClientWithRDB(rdb redis.UniversalClient, prefix string, log logging.Logger) *Client {
	if prefix == "" {
		prefix = config.DefaultRedisKeyPrefix
	}
	return &Client{rdb: rdb, prefix: prefix, log: log}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

// Key joins parts under the client prefix with ':'.
func (c *Client) Key(parts ...string) string {
	return strings.Join(append([]string{c.prefix}, parts...), ":")
}

// conn returns the pool, or ErrClientClosed once Close has run.
func (c *Client) conn() (redis.UniversalClient, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.rdb, nil
}

func (c *Client) Ping(ctx context.Context) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

// Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		c.log.Error("redis close failed", logging.Err(err))
		return err
	}
	c.log.Info("redis client closed")
	return nil
}
