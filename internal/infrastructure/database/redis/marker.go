package redis

import (
	"context"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// SentMarker records delivered notification keys with SET NX so every worker
// sharing the Redis instance agrees on what was already sent.
type SentMarker struct {
	client *Client
	ttl    time.Duration
}

// NewSentMarker keeps each mark for ttl; zero or less keeps it forever.
func NewSentMarker(client *Client, ttl time.Duration) *SentMarker {
	if ttl < 0 {
		ttl = 0
	}
	return &SentMarker{client: client, ttl: ttl}
}

func (m *SentMarker) key(k string) string { return m.client.Key("notified", k) }

// Claim sets the mark and reports whether it was absent.
func (m *SentMarker) Claim(ctx context.Context, key string) (bool, error) {
	rdb, err := m.client.conn()
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, m.key(key), time.Now().UTC().Format(time.RFC3339), m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "notification mark failed")
	}
	return ok, nil
}

func (m *SentMarker) Release(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	rdb, err := m.client.conn()
	if err != nil {
		return err
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, m.key(k))
	}
	if err := rdb.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "notification unmark failed")
	}
	return nil
}
