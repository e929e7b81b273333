package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "cache value is not valid JSON")
)

// absent is stored for keys the loader confirmed do not exist.
const absent = "\x00absent"

// Cache is a JSON cache-aside layer. Concurrent misses on one key share a
// single loader call.
type Cache struct {
	client    *Client
	log       logging.Logger
	namespace string
	ttl       time.Duration
	absentTTL time.Duration
	loads     singleflight.Group
}

type CacheOption func(*Cache)

// WithNamespace scopes keys below the client prefix. The default is "cache".
func WithNamespace(ns string) CacheOption {
	return func(c *Cache) { c.namespace = ns }
}

// WithDefaultTTL applies when Set or GetOrSet get a zero ttl.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithAbsentTTL bounds how long a confirmed absence is remembered.
func WithAbsentTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.absentTTL = ttl }
}

func NewCache(client *Client, log logging.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		client:    client,
		log:       log,
		namespace: "cache",
		ttl:       10 * time.Minute,
		absentTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(k string) string { return c.client.Key(c.namespace, k) }

// expiry spreads ttl by up to 10% either way so entries written together do
// not expire together.
func (c *Cache) expiry(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = c.ttl
	}
	if ttl <= 0 {
		return 0
	}
	spread := int64(ttl) / 10
	if spread == 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(2*spread+1)-spread)
}

// Get decodes the entry at k into dest. Missing and absent entries both
// return ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, k string, dest interface{}) error {
	_, err := c.read(ctx, k, dest)
	return err
}

func (c *Cache) read(ctx context.Context, k string, dest interface{}) (isAbsent bool, err error) {
	rdb, err := c.client.conn()
	if err != nil {
		return false, err
	}
	raw, err := rdb.Get(ctx, c.key(k)).Bytes()
	switch {
	case err == redis.Nil:
		return false, ErrCacheMiss
	case err != nil:
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "cache read failed")
	case string(raw) == absent:
		return true, ErrCacheMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, ErrSerializationFailed.WithDetail(k).WithCause(err)
	}
	return false, nil
}

func (c *Cache) Set(ctx context.Context, k string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithDetail(k).WithCause(err)
	}
	return c.write(ctx, k, raw, c.expiry(ttl))
}

func (c *Cache) write(ctx context.Context, k string, raw interface{}, ttl time.Duration) error {
	rdb, err := c.client.conn()
	if err != nil {
		return err
	}
	if err := rdb.Set(ctx, c.key(k), raw, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache write failed")
	}
	return nil
}

// Delete drops every key given. Unknown keys are ignored.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	rdb, err := c.client.conn()
	if err != nil {
		return err
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.key(k))
	}
	if err := rdb.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache delete failed")
	}
	return nil
}

// GetOrSet fills dest from the cache, or from load on a miss. A load that
// returns nil is remembered as absent and reported as ErrCacheMiss. A cache
// that cannot be read falls through to load.
func (c *Cache) GetOrSet(ctx context.Context, k string, dest interface{}, ttl time.Duration, load func(ctx context.Context) (interface{}, error)) error {
	isAbsent, err := c.read(ctx, k, dest)
	if err == nil || isAbsent {
		return err
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("cache unreadable, loading from source", logging.String("key", k), logging.Err(err))
	}

	v, err, _ := c.loads.Do(k, func() (interface{}, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			if werr := c.write(ctx, k, absent, c.absentTTL); werr != nil {
				c.log.Warn("cache absent marker not written", logging.String("key", k), logging.Err(werr))
			}
			return nil, nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, ErrSerializationFailed.WithDetail(k).WithCause(err)
		}
		if werr := c.write(ctx, k, raw, c.expiry(ttl)); werr != nil {
			c.log.Warn("cache fill failed", logging.String("key", k), logging.Err(werr))
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	if v == nil {
		return ErrCacheMiss
	}
	return json.Unmarshal(v.([]byte), dest)
}
