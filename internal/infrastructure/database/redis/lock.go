package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

var (
	// ErrLockNotAcquired carries the schema conflict code: a writer that
	// cannot get the table lease in time reports a migration collision.
	ErrLockNotAcquired = errors.New(errors.ErrCodeAnnexureSchemaConflict, "migration lease not acquired")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lease is not held by this owner")
)

// ownerScript releases (ARGV[2] == "0") or re-arms the lease only while it
// still holds the caller's token.
var ownerScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if ARGV[2] == "0" then
	return redis.call("DEL", KEYS[1])
end
return redis.call("PEXPIRE", KEYS[1], ARGV[2])
`)

// Mutex is a lease on one Redis key, owned through a random token.
type Mutex interface {
	// Lock polls until the lease is taken, ctx ends or the wait elapses.
	Lock(ctx context.Context) error
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	// Refresh resets the lease expiry to ttl. It reports false once the
	// lease has been lost.
	Refresh(ctx context.Context, ttl time.Duration) (bool, error)
}

type LockFactory interface {
	NewMutex(name string, opts ...LockOption) Mutex
}

type leaseOptions struct {
	ttl         time.Duration
	wait        time.Duration
	poll        time.Duration
	autoRefresh bool
}

type LockOption func(*leaseOptions)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(o *leaseOptions) { o.ttl = ttl }
}

// WithLockWait bounds how long Lock polls. Zero or less means a single try.
func WithLockWait(wait time.Duration) LockOption {
	return func(o *leaseOptions) { o.wait = wait }
}

func WithPollInterval(d time.Duration) LockOption {
	return func(o *leaseOptions) { o.poll = d }
}

// WithAutoRefresh re-arms the lease every ttl/3 until Unlock.
func WithAutoRefresh(on bool) LockOption {
	return func(o *leaseOptions) { o.autoRefresh = on }
}

type leaseFactory struct {
	client *Client
	log    logging.Logger
}

func NewLockFactory(client *Client, log logging.Logger) LockFactory {
	return &leaseFactory{client: client, log: log}
}

func (f *leaseFactory) NewMutex(name string, opts ...LockOption) Mutex {
	o := leaseOptions{ttl: 30 * time.Second, wait: 10 * time.Second, poll: 50 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	if o.poll <= 0 {
		o.poll = 50 * time.Millisecond
	}
	return &lease{
		client: f.client,
		key:    f.client.Key("lock", name),
		token:  uuid.NewString(),
		opts:   o,
		log:    f.log,
	}
}

type lease struct {
	client *Client
	key    string
	token  string
	opts   leaseOptions
	log    logging.Logger

	stopRefresh context.CancelFunc
	refreshDone chan struct{}
}

func (l *lease) Lock(ctx context.Context) error {
	deadline := time.NewTimer(l.opts.wait)
	defer deadline.Stop()
	poll := time.NewTicker(l.opts.poll)
	defer poll.Stop()

	start := time.Now()
	for {
		ok, err := l.TryLock(ctx)
		if err != nil || ok {
			return err
		}
		if l.opts.wait <= 0 {
			return ErrLockNotAcquired.WithDetail(l.key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrLockNotAcquired.WithDetail(l.key + " after " + time.Since(start).Truncate(time.Millisecond).String())
		case <-poll.C:
		}
	}
}

func (l *lease) TryLock(ctx context.Context) (bool, error) {
	rdb, err := l.client.conn()
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, l.key, l.token, l.opts.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "lease acquire failed")
	}
	if ok && l.opts.autoRefresh {
		l.startRefresh()
	}
	return ok, nil
}

func (l *lease) Unlock(ctx context.Context) error {
	l.haltRefresh()
	n, err := l.runOwner(ctx, "0")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "lease release failed")
	}
	if n == 0 {
		return ErrLockNotHeld.WithDetail(l.key)
	}
	return nil
}

func (l *lease) Refresh(ctx context.Context, ttl time.Duration) (bool, error) {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	n, err := l.runOwner(ctx, strconv.FormatInt(ms, 10))
	return n == 1, err
}

func (l *lease) runOwner(ctx context.Context, arg string) (int64, error) {
	rdb, err := l.client.conn()
	if err != nil {
		return 0, err
	}
	return ownerScript.Run(ctx, rdb, []string{l.key}, l.token, arg).Int64()
}

func (l *lease) startRefresh() {
	every := l.opts.ttl / 3
	if every <= 0 {
		every = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.stopRefresh = cancel
	l.refreshDone = make(chan struct{})

	go func() {
		defer close(l.refreshDone)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			ok, err := l.Refresh(ctx, l.opts.ttl)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				l.log.Error("lease refresh failed", logging.String("key", l.key), logging.Err(err))
				return
			}
			if !ok {
				l.log.Warn("lease lost before unlock", logging.String("key", l.key))
				return
			}
		}
	}()
}

func (l *lease) haltRefresh() {
	if l.stopRefresh == nil {
		return
	}
	l.stopRefresh()
	<-l.refreshDone
	l.stopRefresh = nil
}
