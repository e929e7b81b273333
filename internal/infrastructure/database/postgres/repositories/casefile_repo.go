package repositories

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/lib/pq"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/casefile"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

const caseColumns = `c.id, c.application_id, c.name, c.branch_id, c.customer_id, c.services,
	c.created_at, c.overall_status, c.is_resolved, c.tat_excluded`

const (
	queryGetCase = `SELECT ` + caseColumns + `
		FROM cases c
		JOIN customers cu ON cu.id = c.customer_id
		WHERE c.id = $1 AND c.is_deleted = FALSE AND cu.is_deleted = FALSE`

	queryListCases = `SELECT ` + caseColumns + `
		FROM cases c
		JOIN customers cu ON cu.id = c.customer_id
		WHERE c.id > $1
		  AND c.is_deleted = FALSE AND cu.is_deleted = FALSE
		  AND (NOT $2 OR c.is_resolved = FALSE)
		ORDER BY c.id
		LIMIT $3`

	queryGetCustomers = `SELECT id, client_unique_id, name, COALESCE(tat_days, '')
		FROM customers WHERE id = ANY($1) AND is_deleted = FALSE`

	queryGetBranches = `SELECT id, customer_id, name FROM branches WHERE id = ANY($1)`
)

// CaseDirectoryRepo implements casefile.Directory over the intake tables.
type CaseDirectoryRepo struct {
	baseRepo
}

var _ casefile.Directory = (*CaseDirectoryRepo)(nil)

func NewCaseDirectoryRepo(conn *postgres.Connection, log logging.Logger) *CaseDirectoryRepo {
	return &CaseDirectoryRepo{baseRepo{conn: conn, log: log}}
}

func (r *CaseDirectoryRepo) GetCase(ctx context.Context, id int64) (*casefile.Case, error) {
	c, err := r.scanCase(r.db().QueryRowContext(ctx, queryGetCase, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("case not found").WithDetail(strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, storageErr(err, "failed to load case", strconv.FormatInt(id, 10))
	}
	return c, nil
}

func (r *CaseDirectoryRepo) ListCases(ctx context.Context, filter casefile.CaseFilter) ([]*casefile.Case, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = casefile.DefaultPageSize
	}
	rows, err := r.db().QueryContext(ctx, queryListCases, filter.AfterID, filter.OnlyUnresolved, limit)
	if err != nil {
		return nil, storageErr(err, "failed to list cases", "")
	}
	defer rows.Close()

	var out []*casefile.Case
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, storageErr(err, "failed to scan case", "")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to list cases", "")
	}
	return out, nil
}

func (r *CaseDirectoryRepo) GetCustomers(ctx context.Context, ids []int64) (map[int64]*casefile.Customer, error) {
	out := make(map[int64]*casefile.Customer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db().QueryContext(ctx, queryGetCustomers, pq.Array(ids))
	if err != nil {
		return nil, storageErr(err, "failed to load customers", "")
	}
	defer rows.Close()

	for rows.Next() {
		var cu casefile.Customer
		if err := rows.Scan(&cu.ID, &cu.UniqueID, &cu.Name, &cu.TATDays); err != nil {
			return nil, storageErr(err, "failed to scan customer", "")
		}
		out[cu.ID] = &cu
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to load customers", "")
	}
	return out, nil
}

func (r *CaseDirectoryRepo) GetBranches(ctx context.Context, ids []int64) (map[int64]*casefile.Branch, error) {
	out := make(map[int64]*casefile.Branch, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db().QueryContext(ctx, queryGetBranches, pq.Array(ids))
	if err != nil {
		return nil, storageErr(err, "failed to load branches", "")
	}
	defer rows.Close()

	for rows.Next() {
		var b casefile.Branch
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.Name); err != nil {
			return nil, storageErr(err, "failed to scan branch", "")
		}
		out[b.ID] = &b
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to load branches", "")
	}
	return out, nil
}

func (r *CaseDirectoryRepo) scanCase(row scanner) (*casefile.Case, error) {
	var (
		c        casefile.Case
		services string
	)
	if err := row.Scan(&c.ID, &c.ApplicationID, &c.Name, &c.BranchID, &c.CustomerID, &services,
		&c.CreatedAt, &c.OverallStatus, &c.IsResolved, &c.TATExcluded); err != nil {
		return nil, err
	}
	ids, err := casefile.SplitServiceIDs(services)
	if err != nil {
		r.log.Warn("case has malformed service list",
			logging.Int64("case_id", c.ID), logging.String("services", services))
		c.ServicesErr = err
	}
	c.ServiceIDs = ids
	return &c, nil
}
