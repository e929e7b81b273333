package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

func newMockConn(t *testing.T) (*postgres.Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewConnectionWithDB(db, logging.NewNopLogger()), mock
}

func strPtr(s string) *string { return &s }

func TestAnnexureRepo_TableExists(t *testing.T) {
	conn, mock := newMockConn(t)
	repo := NewAnnexureRepo(conn, logging.NewNopLogger())

	mock.ExpectQuery("information_schema.tables").
		WithArgs("employment_check").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.TableExists(context.Background(), "employment_check")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnexureRepo_Columns(t *testing.T) {
	conn, mock := newMockConn(t)
	repo := NewAnnexureRepo(conn, logging.NewNopLogger())

	mock.ExpectQuery("information_schema.columns").
		WithArgs("employment_check").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("id").AddRow("client_application_id").AddRow("employer"))

	cols, err := repo.Columns(context.Background(), "employment_check")
	require.NoError(t, err)
	assert.Len(t, cols, 3)
	assert.Contains(t, cols, "employer")
}

func TestAnnexureRepo_CreateTable(t *testing.T) {
	t.Run("creates when absent", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WithArgs("annexure:employment_check").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("information_schema.tables").WithArgs("employment_check").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "employment_check"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "idx_employment_check_client_application_id"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		created, err := repo.CreateTable(context.Background(), "employment_check")
		require.NoError(t, err)
		assert.True(t, created)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing table is a no-op", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("information_schema.tables").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectCommit()

		created, err := repo.CreateTable(context.Background(), "employment_check")
		require.NoError(t, err)
		assert.False(t, created)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate table counts as success", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("information_schema.tables").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE TABLE").
			WillReturnError(&pq.Error{Code: "42P07", Message: `relation "employment_check" already exists`})
		mock.ExpectRollback()

		created, err := repo.CreateTable(context.Background(), "employment_check")
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("deadlock is a schema conflict", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").
			WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
		mock.ExpectRollback()

		_, err := repo.CreateTable(context.Background(), "employment_check")
		require.Error(t, err)
		assert.True(t, errors.IsSchemaConflict(err))
	})

	t.Run("other failures are storage errors", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

		_, err := repo.CreateTable(context.Background(), "employment_check")
		require.Error(t, err)
		assert.Equal(t, errors.CodeStorage, errors.GetCode(err))
	})
}

func TestAnnexureRepo_AddColumns(t *testing.T) {
	t.Run("adds only missing columns in one statement", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WithArgs("annexure:employment_check").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("information_schema.columns").
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
				AddRow("id").AddRow("client_application_id").AddRow("employer"))
		mock.ExpectExec(regexp.QuoteMeta(
			`ALTER TABLE "employment_check" ADD COLUMN IF NOT EXISTS "designation" TEXT, ADD COLUMN IF NOT EXISTS "salary" TEXT`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		added, err := repo.AddColumns(context.Background(), "employment_check",
			[]string{"employer", "designation", "salary", "designation"})
		require.NoError(t, err)
		assert.Equal(t, []string{"designation", "salary"}, added)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing missing", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("information_schema.columns").
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("employer"))
		mock.ExpectCommit()

		added, err := repo.AddColumns(context.Background(), "employment_check", []string{"employer"})
		require.NoError(t, err)
		assert.Empty(t, added)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent table", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("information_schema.columns").
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
		mock.ExpectRollback()

		_, err := repo.AddColumns(context.Background(), "employment_check", []string{"employer"})
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("failure adds nothing", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("information_schema.columns").
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
		mock.ExpectExec("ALTER TABLE").
			WillReturnError(&pq.Error{Code: "XX000", Message: "tuple concurrently updated"})
		mock.ExpectRollback()

		added, err := repo.AddColumns(context.Background(), "employment_check", []string{"employer"})
		require.Error(t, err)
		assert.Nil(t, added)
		assert.True(t, errors.IsSchemaConflict(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAnnexureRepo_Upsert(t *testing.T) {
	rec := annexure.Record{
		CaseID:     7,
		BranchID:   3,
		CustomerID: 2,
		Table:      "employment_check",
		Fields: map[string]*string{
			"status":   strPtr("completed"),
			"employer": nil,
		},
	}

	t.Run("inserts when the case has no row", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WithArgs("annexure:employment_check:7").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(regexp.QuoteMeta(
			`INSERT INTO "employment_check" ("client_application_id", "branch_id", "customer_id", "employer", "status") VALUES ($1, $2, $3, $4, $5)`)).
			WithArgs(int64(7), int64(3), int64(2), nil, "completed").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		outcome, err := repo.Upsert(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, annexure.OutcomeInserted, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("updates only supplied fields", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FOR UPDATE").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))
		mock.ExpectExec(regexp.QuoteMeta(
			`UPDATE "employment_check" SET "employer" = $1, "status" = $2, "updated_at" = NOW() WHERE "id" = $3`)).
			WithArgs(nil, "completed", int64(41)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		outcome, err := repo.Upsert(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, annexure.OutcomeUpdated, outcome)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown column", func(t *testing.T) {
		conn, mock := newMockConn(t)
		repo := NewAnnexureRepo(conn, logging.NewNopLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec("INSERT INTO").
			WillReturnError(&pq.Error{Code: "42703", Message: `column "employer" does not exist`})
		mock.ExpectRollback()

		_, err := repo.Upsert(context.Background(), rec)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})
}

func TestAnnexureRepo_ReadStatus(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		err     error
		want    *string
		wantErr func(error) bool
	}{
		{name: "value", rows: sqlmock.NewRows([]string{"status"}).AddRow("completed"), want: strPtr("completed")},
		{name: "null status", rows: sqlmock.NewRows([]string{"status"}).AddRow(nil)},
		{name: "no row", rows: sqlmock.NewRows([]string{"status"})},
		{name: "missing table", err: &pq.Error{Code: "42P01"}, wantErr: errors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := newMockConn(t)
			repo := NewAnnexureRepo(conn, logging.NewNopLogger())

			q := mock.ExpectQuery(regexp.QuoteMeta(`SELECT "status" FROM "employment_check"`)).WithArgs(int64(7))
			if tt.err != nil {
				q.WillReturnError(tt.err)
			} else {
				q.WillReturnRows(tt.rows)
			}

			got, err := repo.ReadStatus(context.Background(), "employment_check", 7)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnnexureRepo_ReadColumns(t *testing.T) {
	conn, mock := newMockConn(t)
	repo := NewAnnexureRepo(conn, logging.NewNopLogger())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "photo", "resume" FROM "employment_check"`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"photo", "resume"}).AddRow("a.png", nil))

	got, err := repo.ReadColumns(context.Background(), "employment_check", 7, []string{"photo", "resume"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.png", *got["photo"])
	assert.Nil(t, got["resume"])

	none, err := repo.ReadColumns(context.Background(), "employment_check", 7, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexName_Truncated(t *testing.T) {
	table := strings.Repeat("t", 60)
	name := indexName(table)
	assert.Len(t, name, 63)
	assert.True(t, strings.HasPrefix(name, "idx_ttt"))
	assert.Equal(t, "idx_x_client_application_id", indexName("x"))
}

func TestCreateTableSQL_QuotesIdentifiers(t *testing.T) {
	ddl := createTableSQL("education")
	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "education"`)
	assert.Contains(t, ddl, `"client_application_id" BIGINT REFERENCES cases(id) ON DELETE CASCADE`)
	assert.Contains(t, ddl, `"customer_id" BIGINT REFERENCES customers(id) ON DELETE CASCADE`)
	assert.Contains(t, ddl, `"team_management_docs" TEXT`)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isAlreadyExists(&pq.Error{Code: "42701"}))
	assert.True(t, isAlreadyExists(&pgconn.PgError{Code: "42P07"}))
	assert.False(t, isAlreadyExists(sql.ErrNoRows))

	assert.True(t, isMigrationConflict(&pq.Error{Code: "40001"}))
	assert.True(t, isMigrationConflict(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, isMigrationConflict(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "pg_type_typname_nsp_index"`}))
	assert.False(t, isMigrationConflict(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "customers_pkey"`}))
	assert.False(t, isMigrationConflict(&pq.Error{Code: "XX000", Message: "could not read block"}))

	wrapped := storageErr(&pq.Error{Code: "08006"}, "query failed", "x")
	assert.Equal(t, errors.CodeStorage, errors.GetCode(wrapped))
	assert.Nil(t, storageErr(nil, "noop", ""))
}
