package reporting

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/notify"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/calendar"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/casefile"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
)

type fakeDirectory struct {
	cases     []*casefile.Case
	customers map[int64]*casefile.Customer
	branches  map[int64]*casefile.Branch
}

func (f *fakeDirectory) GetCase(_ context.Context, id int64) (*casefile.Case, error) {
	for _, c := range f.cases {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) ListCases(_ context.Context, filter casefile.CaseFilter) ([]*casefile.Case, error) {
	sorted := append([]*casefile.Case(nil), f.cases...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	var out []*casefile.Case
	for _, c := range sorted {
		if c.ID <= filter.AfterID || (filter.OnlyUnresolved && c.IsResolved) {
			continue
		}
		out = append(out, c)
		if len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDirectory) GetCustomers(_ context.Context, ids []int64) (map[int64]*casefile.Customer, error) {
	out := make(map[int64]*casefile.Customer)
	for _, id := range ids {
		if c, ok := f.customers[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeDirectory) GetBranches(_ context.Context, ids []int64) (map[int64]*casefile.Branch, error) {
	out := make(map[int64]*casefile.Branch)
	for _, id := range ids {
		if b, ok := f.branches[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

type fakeSchemas map[int64]*formschema.Schema

func (f fakeSchemas) Get(_ context.Context, id int64) (*formschema.Schema, error) {
	return f[id], nil
}

// fakeStore serves table existence and statuses; only the read methods are used.
type fakeStore struct {
	mu       sync.Mutex
	tables   map[string]map[int64]*string
	failRead map[string]error
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	existsCalls atomic.Int32
}

func (f *fakeStore) TableExists(_ context.Context, table string) (bool, error) {
	f.existsCalls.Add(1)
	_, ok := f.tables[table]
	return ok, nil
}

func (f *fakeStore) Columns(context.Context, string) (map[string]struct{}, error) { return nil, nil }

func (f *fakeStore) CreateTable(context.Context, string) (bool, error) { return false, nil }

func (f *fakeStore) AddColumns(context.Context, string, []string) ([]string, error) { return nil, nil }

func (f *fakeStore) Upsert(context.Context, annexure.Record) (annexure.WriteOutcome, error) {
	return "", nil
}

func (f *fakeStore) ReadStatus(_ context.Context, table string, caseID int64) (*string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failRead[table]; ok {
		return nil, err
	}
	return f.tables[table][caseID], nil
}

func (f *fakeStore) ReadColumns(context.Context, string, int64, []string) (map[string]*string, error) {
	return nil, nil
}

type fakeCalendar struct {
	holidays []calendar.Holiday
	weekend  []string
}

func (f fakeCalendar) ListHolidays(context.Context) ([]calendar.Holiday, error) {
	return f.holidays, nil
}
func (f fakeCalendar) ListWeekendDays(context.Context) ([]string, error) { return f.weekend, nil }

type chanDispatcher struct {
	events chan notify.Event
}

func newChanDispatcher() *chanDispatcher {
	return &chanDispatcher{events: make(chan notify.Event, 64)}
}

func (d *chanDispatcher) Dispatch(_ context.Context, events ...notify.Event) error {
	for _, e := range events {
		d.events <- e
	}
	return nil
}

func (d *chanDispatcher) collect(n int, timeout time.Duration) []notify.Event {
	var out []notify.Event
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case e := <-d.events:
			out = append(out, e)
		case <-deadline:
			return out
		}
	}
	return out
}

func schemaFor(table, heading string) *formschema.Schema {
	return &formschema.Schema{TargetTable: table, Heading: heading}
}
