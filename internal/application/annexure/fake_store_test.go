package annexure

import (
	"context"
	"strconv"
	"sync"

	domainAnnexure "github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// memStore is an in-memory domainAnnexure.Store with injectable failures.
type memStore struct {
	mu     sync.Mutex
	tables map[string]*memTable

	createCalls int
	addCalls    int
	createErrs  []error
	addErrs     []error
	readCols    [][]string
}

type memTable struct {
	cols []string
	rows []map[string]*string
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string]*memTable)}
}

func (m *memStore) TableExists(_ context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[table]
	return ok, nil
}

func (m *memStore) Columns(_ context.Context, table string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	if t, ok := m.tables[table]; ok {
		for _, c := range t.cols {
			out[c] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) CreateTable(_ context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return false, err
	}
	if _, ok := m.tables[table]; ok {
		return false, nil
	}
	m.tables[table] = &memTable{cols: []string{
		formschema.ColumnID, formschema.ColumnApplicationID, formschema.ColumnBranchID,
		formschema.ColumnCustomerID, formschema.ColumnStatus, formschema.ColumnLegacyDocument,
		formschema.ColumnCreatedAt, formschema.ColumnUpdatedAt,
	}}
	return true, nil
}

func (m *memStore) AddColumns(_ context.Context, table string, columns []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if len(m.addErrs) > 0 {
		err := m.addErrs[0]
		m.addErrs = m.addErrs[1:]
		return nil, err
	}
	t, ok := m.tables[table]
	if !ok {
		return nil, errors.NotFound("annexure table does not exist").WithDetail(table)
	}
	present := make(map[string]struct{}, len(t.cols))
	for _, c := range t.cols {
		present[c] = struct{}{}
	}
	var added []string
	for _, c := range columns {
		if _, ok := present[c]; ok {
			continue
		}
		present[c] = struct{}{}
		added = append(added, c)
	}
	t.cols = append(t.cols, added...)
	return added, nil
}

func (m *memStore) Upsert(_ context.Context, rec domainAnnexure.Record) (domainAnnexure.WriteOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[rec.Table]
	if !ok {
		return "", errors.NotFound("relation does not exist").WithDetail(rec.Table)
	}
	for _, row := range t.rows {
		if row[formschema.ColumnApplicationID] != nil && *row[formschema.ColumnApplicationID] == itoa(rec.CaseID) {
			for k, v := range rec.Fields {
				row[k] = v
			}
			return domainAnnexure.OutcomeUpdated, nil
		}
	}
	id := itoa(rec.CaseID)
	row := map[string]*string{formschema.ColumnApplicationID: &id}
	for k, v := range rec.Fields {
		row[k] = v
	}
	t.rows = append(t.rows, row)
	return domainAnnexure.OutcomeInserted, nil
}

func (m *memStore) ReadStatus(ctx context.Context, table string, caseID int64) (*string, error) {
	vals, err := m.ReadColumns(ctx, table, caseID, []string{formschema.ColumnStatus})
	if err != nil || vals == nil {
		return nil, err
	}
	return vals[formschema.ColumnStatus], nil
}

func (m *memStore) ReadColumns(_ context.Context, table string, caseID int64, columns []string) (map[string]*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCols = append(m.readCols, append([]string(nil), columns...))
	t, ok := m.tables[table]
	if !ok {
		return nil, errors.NotFound("relation does not exist").WithDetail(table)
	}
	for _, row := range t.rows {
		if *row[formschema.ColumnApplicationID] == itoa(caseID) {
			out := make(map[string]*string, len(columns))
			for _, c := range columns {
				out[c] = row[c]
			}
			return out, nil
		}
	}
	return nil, nil
}

func (m *memStore) rowsFor(table string) []map[string]*string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[table]; ok {
		return t.rows
	}
	return nil
}

func (m *memStore) columnList(table string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[table]; ok {
		return append([]string(nil), t.cols...)
	}
	return nil
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func strPtr(s string) *string { return &s }
