package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

type cachedModule struct {
	ServiceID int64  `json:"service_id"`
	Table     string `json:"db_table"`
}

func TestCache_SetGetDelete(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, logging.NewNopLogger(), WithNamespace("formschema"))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "service:1", cachedModule{ServiceID: 1, Table: "education"}, time.Minute))
	assert.True(t, mr.Exists("ss:formschema:service:1"))

	var got cachedModule
	require.NoError(t, cache.Get(ctx, "service:1", &got))
	assert.Equal(t, "education", got.Table)

	require.NoError(t, cache.Delete(ctx, "service:1"))
	assert.ErrorIs(t, cache.Get(ctx, "service:1", &got), ErrCacheMiss)
}

func TestCache_GetOrSet(t *testing.T) {
	client, _ := newTestClient(t)
	cache := NewCache(client, logging.NewNopLogger())
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return cachedModule{ServiceID: 4, Table: "employment"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got cachedModule
			assert.NoError(t, cache.GetOrSet(ctx, "service:4", &got, time.Minute, loader))
			assert.Equal(t, int64(4), got.ServiceID)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var again cachedModule
	require.NoError(t, cache.GetOrSet(ctx, "service:4", &again, time.Minute, loader))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_GetOrSet_NullCached(t *testing.T) {
	client, _ := newTestClient(t)
	cache := NewCache(client, logging.NewNopLogger())
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return nil, nil
	}
	var got cachedModule
	assert.ErrorIs(t, cache.GetOrSet(ctx, "service:9", &got, time.Minute, loader), ErrCacheMiss)
	assert.ErrorIs(t, cache.GetOrSet(ctx, "service:9", &got, time.Minute, loader), ErrCacheMiss)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrSet_LoaderError(t *testing.T) {
	client, _ := newTestClient(t)
	cache := NewCache(client, logging.NewNopLogger())

	var got cachedModule
	err := cache.GetOrSet(context.Background(), "service:2", &got, time.Minute,
		func(context.Context) (interface{}, error) { return nil, assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCache_CorruptEntry(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, logging.NewNopLogger())
	require.NoError(t, mr.Set("ss:cache:service:3", "{not json"))

	var got cachedModule
	err := cache.Get(context.Background(), "service:3", &got)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSerialization, errors.GetCode(err))
}

func TestCache_ClosedClientFallsBackToLoader(t *testing.T) {
	client, _ := newTestClient(t)
	cache := NewCache(client, logging.NewNopLogger())
	require.NoError(t, client.Close())

	var got cachedModule
	err := cache.GetOrSet(context.Background(), "service:5", &got, time.Minute,
		func(context.Context) (interface{}, error) { return cachedModule{ServiceID: 5}, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ServiceID)
	assert.ErrorIs(t, cache.Delete(context.Background(), "service:5"), ErrClientClosed)
}

func TestCache_ExpirySpread(t *testing.T) {
	client, _ := newTestClient(t)
	cache := NewCache(client, logging.NewNopLogger(), WithDefaultTTL(time.Minute))

	for i := 0; i < 50; i++ {
		d := cache.expiry(0)
		assert.GreaterOrEqual(t, d, 54*time.Second)
		assert.LessOrEqual(t, d, 66*time.Second)
	}
	assert.Equal(t, time.Duration(0), NewCache(client, logging.NewNopLogger(), WithDefaultTTL(-1)).expiry(0))
}
