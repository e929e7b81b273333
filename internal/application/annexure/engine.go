// Package annexure runs the write path for per-service annexure tables: the
// schema evolution engine that materializes tables and columns on demand, the
// record store that keeps one row per case, and the service combining both.
package annexure

import (
	"context"
	"sync"
	"time"

	domainAnnexure "github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/redis"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/prometheus"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

const (
	opEnsureTable   = "ensure_table"
	opEnsureColumns = "ensure_columns"
)

// EngineConfig holds migration tunables.
type EngineConfig struct {
	// RetryBackoff is the pause before the single retry after a schema conflict.
	RetryBackoff time.Duration
	// LockTTL and LockWait size the distributed per-table lock.
	LockTTL  time.Duration
	LockWait time.Duration
}

// Engine ensures annexure tables and columns exist. It only ever adds.
//
// Migrations of one table are serialized three ways: an in-process keyed
// mutex, an optional Redis mutex shared by every instance, and the advisory
// lock the store takes inside its DDL transaction.
type Engine struct {
	store   domainAnnexure.Store
	locks   redis.LockFactory
	local   *keyedMutex
	cfg     EngineConfig
	log     logging.Logger
	metrics *prometheus.AppMetrics

	// known caches the columns of tables this process has seen, so repeat
	// writes skip the describe round trip.
	mu    sync.RWMutex
	known map[string]map[string]struct{}
}

// NewEngine builds an Engine. locks may be nil for single-instance setups;
// metrics may be nil.
func NewEngine(store domainAnnexure.Store, locks redis.LockFactory, cfg EngineConfig, log logging.Logger, metrics *prometheus.AppMetrics) *Engine {
	return &Engine{
		store:   store,
		locks:   locks,
		local:   newKeyedMutex(),
		cfg:     cfg,
		log:     log.Named("annexure.engine"),
		metrics: metrics,
		known:   make(map[string]map[string]struct{}),
	}
}

// Ensure applies a validated descriptor: the table, then its columns.
func (e *Engine) Ensure(ctx context.Context, d formschema.AnnexureDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := e.EnsureTable(ctx, d.TableName); err != nil {
		return err
	}
	return e.EnsureColumns(ctx, d.TableName, d.Fields)
}

// EnsureTable creates table with the canonical annexure shape if it is absent.
func (e *Engine) EnsureTable(ctx context.Context, table string) error {
	if err := formschema.ValidateTableName(table); err != nil {
		return err
	}
	if e.isKnown(table) {
		return nil
	}

	return e.withRetry(ctx, opEnsureTable, table, func(ctx context.Context) error {
		return e.withTableLock(ctx, table, func(ctx context.Context) error {
			if e.isKnown(table) {
				return nil
			}
			start := time.Now()
			created, err := e.store.CreateTable(ctx, table)
			if err != nil {
				prometheus.RecordMigration(e.metrics, opEnsureTable, "error", time.Since(start))
				return err
			}
			result := "noop"
			if created {
				result = "applied"
			}
			prometheus.RecordMigration(e.metrics, opEnsureTable, result, time.Since(start))
			return e.refresh(ctx, table)
		})
	})
}

// EnsureColumns adds a nullable text column for every field not yet present.
// Canonical columns are skipped. Either every missing column is added or
// none is.
func (e *Engine) EnsureColumns(ctx context.Context, table string, fields []formschema.FieldSpec) error {
	if err := formschema.ValidateTableName(table); err != nil {
		return err
	}
	wanted := make([]string, 0, len(fields))
	for _, f := range fields {
		if err := formschema.ValidateFieldName(f.Name); err != nil {
			return err
		}
		if formschema.IsCanonicalColumn(f.Name) {
			continue
		}
		wanted = append(wanted, f.Name)
	}
	if len(wanted) == 0 || len(e.unknownColumns(table, wanted)) == 0 {
		return nil
	}

	return e.withRetry(ctx, opEnsureColumns, table, func(ctx context.Context) error {
		return e.withTableLock(ctx, table, func(ctx context.Context) error {
			missing := e.unknownColumns(table, wanted)
			if len(missing) == 0 {
				return nil
			}
			start := time.Now()
			added, err := e.store.AddColumns(ctx, table, missing)
			if err != nil {
				prometheus.RecordMigration(e.metrics, opEnsureColumns, "error", time.Since(start))
				e.Forget(table)
				return err
			}
			result := "noop"
			if len(added) > 0 {
				result = "applied"
			}
			prometheus.RecordMigration(e.metrics, opEnsureColumns, result, time.Since(start))
			return e.refresh(ctx, table)
		})
	})
}

// Forget drops the cached column set of table.
func (e *Engine) Forget(table string) {
	e.mu.Lock()
	delete(e.known, table)
	e.mu.Unlock()
}

func (e *Engine) isKnown(table string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.known[table]
	return ok
}

// unknownColumns returns the names in wanted not cached as present. With no
// cache entry every name is unknown.
func (e *Engine) unknownColumns(table string, wanted []string) []string {
	e.mu.RLock()
	cols, ok := e.known[table]
	e.mu.RUnlock()
	if !ok {
		return wanted
	}
	var out []string
	for _, w := range wanted {
		if _, present := cols[w]; !present {
			out = append(out, w)
		}
	}
	return out
}

func (e *Engine) refresh(ctx context.Context, table string) error {
	cols, err := e.store.Columns(ctx, table)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	e.mu.Lock()
	e.known[table] = cols
	e.mu.Unlock()
	return nil
}

// withRetry runs fn and, on a schema conflict, once more after the backoff.
func (e *Engine) withRetry(ctx context.Context, op, table string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || !errors.IsSchemaConflict(err) {
		return err
	}

	prometheus.RecordMigrationRetry(e.metrics, op)
	e.log.Warn("schema conflict, retrying migration",
		logging.String("op", op), logging.String("table", table),
		logging.Duration("backoff", e.cfg.RetryBackoff), logging.Err(err))

	timer := time.NewTimer(e.cfg.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return fn(ctx)
}

func (e *Engine) withTableLock(ctx context.Context, table string, fn func(context.Context) error) error {
	start := time.Now()
	unlock, err := e.local.Lock(ctx, table)
	if err != nil {
		return err
	}
	defer unlock()
	prometheus.RecordLockWait(e.metrics, "local", time.Since(start))

	if e.locks == nil {
		return fn(ctx)
	}

	start = time.Now()
	mu := e.locks.NewMutex("annexure:"+table,
		redis.WithLockTTL(e.cfg.LockTTL),
		redis.WithLockWait(e.cfg.LockWait),
		redis.WithAutoRefresh(true))
	if err := mu.Lock(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.IsSchemaConflict(err) {
			return err
		}
		// Redis unavailable: the store's advisory lock still serializes DDL.
		e.log.Warn("distributed migration lock unavailable", logging.String("table", table), logging.Err(err))
		return fn(ctx)
	}
	prometheus.RecordLockWait(e.metrics, "redis", time.Since(start))
	defer func() {
		if err := mu.Unlock(context.Background()); err != nil {
			e.log.Warn("failed to release migration lock", logging.String("table", table), logging.Err(err))
		}
	}()
	return fn(ctx)
}
