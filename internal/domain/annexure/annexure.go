// Package annexure defines the storage port for the dynamically managed
// per-service tables. Each table holds at most one row per case.
package annexure

import "context"

// StatusInitiated is reported for a service whose table was never created.
const StatusInitiated = "INITIATED"

// StatusUnresolved marks a service whose status lookup failed.
const StatusUnresolved = "UNRESOLVED"

// Record is a write request for one case's row in Table. Fields maps column
// names to values; a nil value writes NULL.
type Record struct {
	CaseID     int64
	BranchID   int64
	CustomerID int64
	Table      string
	Fields     map[string]*string
}

// LabeledValue is one populated column of a case row together with the label
// its form declares. Labels need not be unique within a table.
type LabeledValue struct {
	Column string
	Label  string
	Value  string
}

// WriteOutcome says whether an upsert inserted or updated the row.
type WriteOutcome string

const (
	OutcomeInserted WriteOutcome = "inserted"
	OutcomeUpdated  WriteOutcome = "updated"
)

// Store is the physical access layer over annexure tables. Every method that
// takes a table name expects it to have passed formschema.ValidateTableName.
type Store interface {
	// TableExists reports whether table is physically present.
	TableExists(ctx context.Context, table string) (bool, error)

	// Columns describes table. An absent table yields an empty set.
	Columns(ctx context.Context, table string) (map[string]struct{}, error)

	// CreateTable creates table with the canonical shape unless it exists and
	// reports whether this call created it.
	CreateTable(ctx context.Context, table string) (bool, error)

	// AddColumns adds every missing column as nullable text in one
	// transaction and returns the names it added. On error nothing is added.
	AddColumns(ctx context.Context, table string, columns []string) ([]string, error)

	// Upsert updates the case's row in rec.Table or inserts it. At most one
	// row per (case, table) exists afterwards.
	Upsert(ctx context.Context, rec Record) (WriteOutcome, error)

	// ReadStatus returns the status column of the case's row. A missing row
	// or NULL status yields nil.
	ReadStatus(ctx context.Context, table string, caseID int64) (*string, error)

	// ReadColumns returns the requested columns of the case's row, or nil
	// when the case has no row. Callers pass physically present columns only.
	ReadColumns(ctx context.Context, table string, caseID int64, columns []string) (map[string]*string, error)
}
