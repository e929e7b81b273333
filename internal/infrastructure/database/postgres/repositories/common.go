// Package repositories implements the domain storage ports on PostgreSQL.
package repositories

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

type baseRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

func (r *baseRepo) db() queryExecutor {
	return r.conn.DB()
}

// SQLSTATE codes inspected by the repositories.
const (
	stateUniqueViolation     = "23505"
	stateForeignKeyViolation = "23503"
	stateSerialization       = "40001"
	stateDeadlock            = "40P01"
	stateUndefinedColumn     = "42703"
	stateUndefinedTable      = "42P01"
	stateDuplicateTable      = "42P07"
	stateDuplicateColumn     = "42701"
	stateDuplicateObject     = "42710"
	stateLockNotAvailable    = "55P03"
	stateInternal            = "XX000"
)

// sqlState extracts the SQLSTATE from lib/pq and pgx errors alike.
func sqlState(err error) (code, message string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Message
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.Message
	}
	return "", ""
}

func hasState(err error, codes ...string) bool {
	code, _ := sqlState(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// isAlreadyExists reports a DDL collision that a concurrent writer already
// resolved the way this caller wanted.
func isAlreadyExists(err error) bool {
	return hasState(err, stateDuplicateTable, stateDuplicateColumn, stateDuplicateObject)
}

// isMigrationConflict reports a DDL failure caused by a concurrent migration
// that is worth retrying.
func isMigrationConflict(err error) bool {
	code, msg := sqlState(err)
	switch code {
	case stateDeadlock, stateSerialization, stateLockNotAvailable:
		return true
	case stateUniqueViolation:
		// concurrent CREATE TABLE races on pg_type
		return strings.Contains(msg, "pg_type") || strings.Contains(msg, "pg_class")
	case stateInternal:
		return strings.Contains(msg, "concurrently updated")
	}
	return false
}

func isUndefinedTable(err error) bool {
	return hasState(err, stateUndefinedTable)
}

// storageErr wraps a driver error, mapping known SQLSTATEs onto the error
// taxonomy and everything else onto StorageError.
func storageErr(err error, message, detail string) error {
	if err == nil {
		return nil
	}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case isUndefinedTable(err):
		return errors.NotFound("table does not exist").WithDetail(detail).WithCause(err)
	case hasState(err, stateUndefinedColumn):
		return errors.Validation("column does not exist").WithDetail(detail).WithCause(err)
	case hasState(err, stateForeignKeyViolation):
		return errors.NotFound("referenced record does not exist").WithDetail(detail).WithCause(err)
	case isMigrationConflict(err):
		return errors.SchemaConflict(message).WithDetail(detail).WithCause(err)
	}
	return errors.Storage(message).WithDetail(detail).WithCause(err)
}

// quoteIdent quotes a validated identifier for interpolation into SQL.
func quoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

// lockKey is hashed by pg_advisory_xact_lock(hashtext($1)).
func lockKey(parts ...string) string {
	return "annexure:" + strings.Join(parts, ":")
}
