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

const educationLease = "ss:lock:annexure:education"

func TestLease_LockUnlock(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("annexure:education", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))
	assert.True(t, mr.Exists(educationLease))

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists(educationLease))
}

func TestLease_WaitElapses(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	first := factory.NewMutex("annexure:education")
	second := factory.NewMutex("annexure:education", WithLockWait(20*time.Millisecond), WithPollInterval(5*time.Millisecond))

	require.NoError(t, first.Lock(ctx))
	err := second.Lock(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaConflict(err))

	require.NoError(t, first.Unlock(ctx))
	require.NoError(t, second.Lock(ctx))
	require.NoError(t, second.Unlock(ctx))
}

func TestLease_SingleTryWithoutWait(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, factory.NewMutex("annexure:education").Lock(ctx))

	start := time.Now()
	err := factory.NewMutex("annexure:education", WithLockWait(0)).Lock(ctx)
	assert.True(t, errors.IsSchemaConflict(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestLease_ContextCancelled(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())

	require.NoError(t, factory.NewMutex("annexure:education").Lock(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := factory.NewMutex("annexure:education", WithLockWait(time.Minute)).Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLease_UnlockAfterExpiry(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("annexure:education", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))
	mr.FastForward(2 * time.Second)

	err := lock.Unlock(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.GetCode(err))
}

func TestLease_UnlockLeavesOtherOwner(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("annexure:education")
	require.NoError(t, mr.Set(educationLease, "someone-else"))

	err := lock.Unlock(ctx)
	assert.Equal(t, errors.ErrCodeConflict, errors.GetCode(err))
	got, _ := mr.Get(educationLease)
	assert.Equal(t, "someone-else", got)
}

func TestLease_Refresh(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("annexure:education", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))

	ok, err := lock.Refresh(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, mr.TTL(educationLease), 30*time.Second)

	require.NoError(t, lock.Unlock(ctx))
	ok, err = lock.Refresh(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLease_AutoRefresh(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	ttl := 90 * time.Millisecond
	lock := factory.NewMutex("annexure:education", WithLockTTL(ttl), WithAutoRefresh(true))
	require.NoError(t, lock.Lock(ctx))

	mr.SetTTL(educationLease, time.Millisecond)
	assert.Eventually(t, func() bool { return mr.TTL(educationLease) == ttl }, time.Second, 5*time.Millisecond)

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists(educationLease))
}

func TestLease_ClosedClient(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	require.NoError(t, client.Close())

	err := factory.NewMutex("annexure:education").Lock(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestLease_SerializesCriticalSection(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := factory.NewMutex("annexure:shared", WithLockWait(5*time.Second), WithPollInterval(2*time.Millisecond))
			require.NoError(t, lock.Lock(ctx))
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			require.NoError(t, lock.Unlock(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}
