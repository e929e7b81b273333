package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

const (
	queryTableExists = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1)`

	queryDescribeTable = `SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`

	queryAdvisoryLock = `SELECT pg_advisory_xact_lock(hashtext($1))`
)

// AnnexureRepo implements annexure.Store. Table and column names are
// interpolated quoted; callers validate them first.
type AnnexureRepo struct {
	baseRepo
}

var _ annexure.Store = (*AnnexureRepo)(nil)

func NewAnnexureRepo(conn *postgres.Connection, log logging.Logger) *AnnexureRepo {
	return &AnnexureRepo{baseRepo{conn: conn, log: log}}
}

func (r *AnnexureRepo) TableExists(ctx context.Context, table string) (bool, error) {
	return tableExists(ctx, r.db(), table)
}

func tableExists(ctx context.Context, q queryExecutor, table string) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, queryTableExists, table).Scan(&exists); err != nil {
		return false, storageErr(err, "failed to check table existence", table)
	}
	return exists, nil
}

func (r *AnnexureRepo) Columns(ctx context.Context, table string) (map[string]struct{}, error) {
	return describe(ctx, r.db(), table)
}

func describe(ctx context.Context, q queryExecutor, table string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, queryDescribeTable, table)
	if err != nil {
		return nil, storageErr(err, "failed to describe table", table)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr(err, "failed to scan column name", table)
		}
		cols[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to describe table", table)
	}
	return cols, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// DDL
// ─────────────────────────────────────────────────────────────────────────────

// createTableSQL renders the canonical annexure shape.
func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s BIGSERIAL PRIMARY KEY,
		%s BIGINT REFERENCES cases(id) ON DELETE CASCADE,
		%s BIGINT REFERENCES branches(id) ON DELETE CASCADE,
		%s BIGINT REFERENCES customers(id) ON DELETE CASCADE,
		%s TEXT,
		%s TEXT,
		%s TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		%s TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
		quoteIdent(table),
		quoteIdent(formschema.ColumnID),
		quoteIdent(formschema.ColumnApplicationID),
		quoteIdent(formschema.ColumnBranchID),
		quoteIdent(formschema.ColumnCustomerID),
		quoteIdent(formschema.ColumnStatus),
		quoteIdent(formschema.ColumnLegacyDocument),
		quoteIdent(formschema.ColumnCreatedAt),
		quoteIdent(formschema.ColumnUpdatedAt),
	)
}

// indexName derives the per-table lookup index name, truncated to the
// identifier limit.
func indexName(table string) string {
	name := "idx_" + table + "_" + formschema.ColumnApplicationID
	if len(name) > formschema.MaxIdentifierLength {
		name = name[:formschema.MaxIdentifierLength]
	}
	return name
}

func createIndexSQL(table string) string {
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
		quoteIdent(indexName(table)), quoteIdent(table), quoteIdent(formschema.ColumnApplicationID))
}

// addColumnsSQL adds every column in a single statement so the change is
// applied as a whole or not at all.
func addColumnsSQL(table string, columns []string) string {
	clauses := make([]string, len(columns))
	for i, c := range columns {
		clauses[i] = "ADD COLUMN IF NOT EXISTS " + quoteIdent(c) + " TEXT"
	}
	return "ALTER TABLE " + quoteIdent(table) + " " + strings.Join(clauses, ", ")
}

// CreateTable creates table under a transaction-scoped advisory lock keyed on
// the table name. A table created concurrently by another writer yields
// (false, nil).
func (r *AnnexureRepo) CreateTable(ctx context.Context, table string) (bool, error) {
	created := false
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, queryAdvisoryLock, lockKey(table)); err != nil {
			return err
		}
		exists, err := tableExists(ctx, tx, table)
		if err != nil || exists {
			return err
		}
		if _, err := tx.ExecContext(ctx, createTableSQL(table)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, createIndexSQL(table)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if isAlreadyExists(err) {
			r.log.Debug("annexure table created concurrently", logging.String("table", table))
			return false, nil
		}
		return false, storageErr(err, "failed to create annexure table", table)
	}
	if created {
		r.log.Info("annexure table created", logging.String("table", table))
	}
	return created, nil
}

// AddColumns re-describes table inside the locked transaction and adds the
// columns still missing.
func (r *AnnexureRepo) AddColumns(ctx context.Context, table string, columns []string) ([]string, error) {
	var added []string
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, queryAdvisoryLock, lockKey(table)); err != nil {
			return err
		}
		present, err := describe(ctx, tx, table)
		if err != nil {
			return err
		}
		if len(present) == 0 {
			return errors.NotFound("annexure table does not exist").WithDetail(table)
		}
		missing := missingColumns(present, columns)
		if len(missing) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, addColumnsSQL(table, missing)); err != nil {
			return err
		}
		added = missing
		return nil
	})
	if err != nil {
		if isAlreadyExists(err) {
			return nil, nil
		}
		return nil, storageErr(err, "failed to add annexure columns", table)
	}
	if len(added) > 0 {
		r.log.Info("annexure columns added",
			logging.String("table", table), logging.Strings("columns", added))
	}
	return added, nil
}

// missingColumns keeps the first spelling of each name absent from present.
func missingColumns(present map[string]struct{}, wanted []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(wanted))
	for _, c := range wanted {
		if _, ok := present[c]; ok {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// Upsert serializes writers for the same (table, case) with an advisory lock,
// then updates the case's oldest row or inserts one.
func (r *AnnexureRepo) Upsert(ctx context.Context, rec annexure.Record) (annexure.WriteOutcome, error) {
	names := sortedKeys(rec.Fields)
	var outcome annexure.WriteOutcome

	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, queryAdvisoryLock,
			lockKey(rec.Table, strconv.FormatInt(rec.CaseID, 10))); err != nil {
			return err
		}

		var id int64
		err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s LIMIT 1 FOR UPDATE`,
			quoteIdent(formschema.ColumnID), quoteIdent(rec.Table),
			quoteIdent(formschema.ColumnApplicationID), quoteIdent(formschema.ColumnID),
		), rec.CaseID).Scan(&id)

		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.ExecContext(ctx, insertSQL(rec.Table, names), insertArgs(rec, names)...); err != nil {
				return err
			}
			outcome = annexure.OutcomeInserted
		case err != nil:
			return err
		default:
			args := make([]interface{}, 0, len(names)+1)
			for _, n := range names {
				args = append(args, nullable(rec.Fields[n]))
			}
			args = append(args, id)
			if _, err := tx.ExecContext(ctx, updateSQL(rec.Table, names), args...); err != nil {
				return err
			}
			outcome = annexure.OutcomeUpdated
		}
		return nil
	})
	if err != nil {
		return "", storageErr(err, "failed to upsert annexure record",
			fmt.Sprintf("%s/%d", rec.Table, rec.CaseID))
	}
	return outcome, nil
}

func insertSQL(table string, names []string) string {
	cols := []string{
		quoteIdent(formschema.ColumnApplicationID),
		quoteIdent(formschema.ColumnBranchID),
		quoteIdent(formschema.ColumnCustomerID),
	}
	for _, n := range names {
		cols = append(cols, quoteIdent(n))
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

func insertArgs(rec annexure.Record, names []string) []interface{} {
	args := []interface{}{rec.CaseID, nullableID(rec.BranchID), nullableID(rec.CustomerID)}
	for _, n := range names {
		args = append(args, nullable(rec.Fields[n]))
	}
	return args
}

// updateSQL sets only the supplied fields and always touches updated_at.
func updateSQL(table string, names []string) string {
	sets := make([]string, 0, len(names)+1)
	for i, n := range names {
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(n), i+1))
	}
	sets = append(sets, quoteIdent(formschema.ColumnUpdatedAt)+" = NOW()")
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quoteIdent(table), strings.Join(sets, ", "), quoteIdent(formschema.ColumnID), len(names)+1)
}

// ReadStatus returns the status of the case's oldest row.
func (r *AnnexureRepo) ReadStatus(ctx context.Context, table string, caseID int64) (*string, error) {
	var status sql.NullString
	err := r.db().QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s LIMIT 1`,
		quoteIdent(formschema.ColumnStatus), quoteIdent(table),
		quoteIdent(formschema.ColumnApplicationID), quoteIdent(formschema.ColumnID),
	), caseID).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "failed to read annexure status", table)
	}
	if !status.Valid {
		return nil, nil
	}
	return &status.String, nil
}

func (r *AnnexureRepo) ReadColumns(ctx context.Context, table string, caseID int64, columns []string) (map[string]*string, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	values := make([]sql.NullString, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	err := r.db().QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s LIMIT 1`,
		strings.Join(quoted, ", "), quoteIdent(table),
		quoteIdent(formschema.ColumnApplicationID), quoteIdent(formschema.ColumnID),
	), caseID).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "failed to read annexure columns", table)
	}

	out := make(map[string]*string, len(columns))
	for i, c := range columns {
		if values[i].Valid {
			v := values[i].String
			out[c] = &v
		} else {
			out[c] = nil
		}
	}
	return out, nil
}

func sortedKeys(m map[string]*string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nullable(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableID(id int64) interface{} {
	if id <= 0 {
		return nil
	}
	return id
}
