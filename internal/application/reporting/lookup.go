package reporting

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/casefile"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// SchemaSource resolves a service's form definition; nil means none.
type SchemaSource interface {
	Get(ctx context.Context, serviceID int64) (*formschema.Schema, error)
}

// serviceStatus is the outcome of one per-service lookup.
type serviceStatus struct {
	serviceID int64
	heading   string
	status    *string
	err       error
}

// memo runs fn at most once per key for the lifetime of a build.
type memo[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*memoEntry[V]
}

type memoEntry[V any] struct {
	once sync.Once
	val  V
	err  error
}

func (m *memo[K, V]) get(key K, fn func() (V, error)) (V, error) {
	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[K]*memoEntry[V])
	}
	e, ok := m.entries[key]
	if !ok {
		e = &memoEntry[V]{}
		m.entries[key] = e
	}
	m.mu.Unlock()

	e.once.Do(func() { e.val, e.err = fn() })
	return e.val, e.err
}

// statusResolver answers "what is service S's status for case C" during one
// build, sharing schema and table-existence lookups across cases.
type statusResolver struct {
	schemas SchemaSource
	store   annexure.Store

	schemaMemo memo[int64, *formschema.Schema]
	tableMemo  memo[string, bool]
}

func newStatusResolver(schemas SchemaSource, store annexure.Store) *statusResolver {
	return &statusResolver{schemas: schemas, store: store}
}

func (r *statusResolver) resolve(ctx context.Context, caseID, serviceID int64) serviceStatus {
	out := serviceStatus{serviceID: serviceID, heading: "service " + strconv.FormatInt(serviceID, 10)}

	schema, err := r.schemaMemo.get(serviceID, func() (*formschema.Schema, error) {
		return r.schemas.Get(ctx, serviceID)
	})
	if err != nil {
		out.err = err
		return out
	}
	if schema == nil {
		out.err = errors.NotFound("form schema not found").WithDetail(strconv.FormatInt(serviceID, 10))
		return out
	}
	out.heading = schema.Heading
	if out.heading == "" {
		out.heading = schema.TargetTable
	}
	table := schema.TargetTable
	if err := formschema.ValidateTableName(table); err != nil {
		out.err = err
		return out
	}

	exists, err := r.tableMemo.get(table, func() (bool, error) {
		return r.store.TableExists(ctx, table)
	})
	if err != nil {
		out.err = err
		return out
	}
	if !exists {
		out.status = strPtr(annexure.StatusInitiated)
		return out
	}

	status, err := r.store.ReadStatus(ctx, table, caseID)
	switch {
	case errors.IsNotFound(err):
		// dropped after the existence check
		out.status = strPtr(annexure.StatusInitiated)
	case err != nil:
		out.err = err
	default:
		out.status = status
	}
	return out
}

// resolveAll looks up every assigned service of every case with at most
// parallelism lookups in flight. results[i] lines up with cases[i].Services.
// Lookup failures are carried per service; only ctx cancellation aborts.
func (r *statusResolver) resolveAll(ctx context.Context, cases []*casefile.Case, parallelism int) ([][]serviceStatus, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	results := make([][]serviceStatus, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, c := range cases {
		if c.ServicesErr != nil {
			continue
		}
		results[i] = make([]serviceStatus, len(c.ServiceIDs))
		for j, sid := range c.ServiceIDs {
			i, j, caseID, sid := i, j, c.ID, sid
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res := r.resolve(gctx, caseID, sid)
				if res.err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				results[i][j] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// applyStatuses copies lookup results into e and reports how many services
// have a non-null status and how many lookups failed.
func applyStatuses(e *CaseEntry, statuses []serviceStatus) (resolved, failed int) {
	var firstErr error
	for _, s := range statuses {
		key := s.heading
		if _, dup := e.ServicesStatus[key]; dup {
			key += " #" + strconv.FormatInt(s.serviceID, 10)
		}
		if s.err != nil {
			failed++
			if firstErr == nil {
				firstErr = s.err
			}
			e.ServicesStatus[key] = strPtr(annexure.StatusUnresolved)
			continue
		}
		e.ServicesStatus[key] = s.status
		if s.status != nil {
			resolved++
		}
	}
	if firstErr != nil {
		e.Error = firstErr.Error()
	}
	return resolved, failed
}

// directoryCache loads customers and branches once per build.
type directoryCache struct {
	dir       casefile.Directory
	customers map[int64]*casefile.Customer
	branches  map[int64]*casefile.Branch
	loadedC   map[int64]struct{}
	loadedB   map[int64]struct{}
}

func newDirectoryCache(dir casefile.Directory) *directoryCache {
	return &directoryCache{
		dir:       dir,
		customers: make(map[int64]*casefile.Customer),
		branches:  make(map[int64]*casefile.Branch),
		loadedC:   make(map[int64]struct{}),
		loadedB:   make(map[int64]struct{}),
	}
}

// load fetches the customers and branches of cases not fetched yet.
func (d *directoryCache) load(ctx context.Context, cases []*casefile.Case) error {
	var custIDs, branchIDs []int64
	for _, c := range cases {
		if _, ok := d.loadedC[c.CustomerID]; !ok {
			d.loadedC[c.CustomerID] = struct{}{}
			custIDs = append(custIDs, c.CustomerID)
		}
		if _, ok := d.loadedB[c.BranchID]; !ok {
			d.loadedB[c.BranchID] = struct{}{}
			branchIDs = append(branchIDs, c.BranchID)
		}
	}
	if len(custIDs) > 0 {
		found, err := d.dir.GetCustomers(ctx, custIDs)
		if err != nil {
			return err
		}
		for id, c := range found {
			d.customers[id] = c
		}
	}
	if len(branchIDs) > 0 {
		found, err := d.dir.GetBranches(ctx, branchIDs)
		if err != nil {
			return err
		}
		for id, b := range found {
			d.branches[id] = b
		}
	}
	return nil
}

// owners returns the case's customer and branch, or false when either is
// deleted or the branch belongs to another customer.
func (d *directoryCache) owners(c *casefile.Case) (*casefile.Customer, *casefile.Branch, bool) {
	cust, ok := d.customers[c.CustomerID]
	if !ok || cust.Deleted {
		return nil, nil, false
	}
	br, ok := d.branches[c.BranchID]
	if !ok || br.CustomerID != cust.ID {
		return nil, nil, false
	}
	return cust, br, true
}

func strPtr(s string) *string { return &s }
