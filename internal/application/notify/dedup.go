package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
)

// Deduper remembers which event keys were already sent.
type Deduper interface {
	// Claim marks key as sent and reports whether it was unclaimed.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets keys whose delivery failed so the next run retries them.
	Release(ctx context.Context, keys ...string) error
}

// Key identifies the state an event reports. A breach is keyed by its delay,
// so a case that stays overdue is announced once per additional day and a
// completion is announced once per case.
func Key(e Event) string {
	k := e.Type + ":" + strconv.FormatInt(e.CaseID, 10)
	if d, ok := e.Data["days_out_of_tat"]; ok {
		k += ":" + fmt.Sprint(d)
	}
	return k
}

type dedupDispatcher struct {
	next Dispatcher
	seen Deduper
	log  logging.Logger
}

// Deduplicate forwards to next only the events whose key seen has not claimed
// yet. An unreachable deduper lets the event through.
func Deduplicate(next Dispatcher, seen Deduper, log logging.Logger) Dispatcher {
	return &dedupDispatcher{next: next, seen: seen, log: log}
}

func (d *dedupDispatcher) Dispatch(ctx context.Context, events ...Event) error {
	fresh := make([]Event, 0, len(events))
	claimed := make([]string, 0, len(events))
	for _, e := range events {
		key := Key(e)
		ok, err := d.seen.Claim(ctx, key)
		if err != nil {
			d.log.Warn("notification dedup unavailable", logging.String("key", key), logging.Err(err))
			fresh = append(fresh, e)
			continue
		}
		if ok {
			fresh = append(fresh, e)
			claimed = append(claimed, key)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := d.next.Dispatch(ctx, fresh...); err != nil {
		if rerr := d.seen.Release(ctx, claimed...); rerr != nil {
			d.log.Warn("notification dedup release failed", logging.Err(rerr))
		}
		return err
	}
	return nil
}

// MemoryDeduper is a process-local Deduper for deployments without Redis.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (m *MemoryDeduper) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.seen[key]; ok && (m.ttl <= 0 || now.Before(exp)) {
		return false, nil
	}
	m.seen[key] = now.Add(m.ttl)
	if len(m.seen)%1024 == 0 {
		m.sweep(now)
	}
	return true, nil
}

func (m *MemoryDeduper) Release(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.seen, k)
	}
	return nil
}

func (m *MemoryDeduper) sweep(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for k, exp := range m.seen {
		if !now.Before(exp) {
			delete(m.seen, k)
		}
	}
}
