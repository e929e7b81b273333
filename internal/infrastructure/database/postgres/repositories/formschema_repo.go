package repositories

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

const (
	queryListModules = `SELECT s.id, s.title, COALESCE(s.group_id, 0), f.db_table, f.heading
		FROM form_schemas f
		JOIN services s ON s.id = f.service_id
		ORDER BY s.id`

	querySchemaByService = `SELECT service_id, document, COALESCE(author_id, 0), updated_at
		FROM form_schemas WHERE service_id = $1`

	querySchemasByTable = `SELECT service_id, document, COALESCE(author_id, 0), updated_at
		FROM form_schemas WHERE db_table = $1 ORDER BY service_id`

	// xmax is zero only for a freshly inserted tuple.
	queryUpsertSchema = `INSERT INTO form_schemas (service_id, db_table, heading, document, author_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (service_id) DO UPDATE SET
			db_table   = EXCLUDED.db_table,
			heading    = EXCLUDED.heading,
			document   = EXCLUDED.document,
			author_id  = EXCLUDED.author_id,
			updated_at = NOW()
		RETURNING (xmax = 0)`
)

// FormSchemaRepo implements formschema.Repository.
type FormSchemaRepo struct {
	baseRepo
}

var _ formschema.Repository = (*FormSchemaRepo)(nil)

func NewFormSchemaRepo(conn *postgres.Connection, log logging.Logger) *FormSchemaRepo {
	return &FormSchemaRepo{baseRepo{conn: conn, log: log}}
}

func (r *FormSchemaRepo) ListModules(ctx context.Context) ([]formschema.Module, error) {
	rows, err := r.db().QueryContext(ctx, queryListModules)
	if err != nil {
		return nil, storageErr(err, "failed to list form modules", "")
	}
	defer rows.Close()

	var out []formschema.Module
	for rows.Next() {
		var m formschema.Module
		if err := rows.Scan(&m.ServiceID, &m.Title, &m.GroupID, &m.TargetTable, &m.Heading); err != nil {
			return nil, storageErr(err, "failed to scan form module", "")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to list form modules", "")
	}
	return out, nil
}

func (r *FormSchemaRepo) GetByServiceID(ctx context.Context, serviceID int64) (*formschema.Schema, error) {
	s, err := r.scanSchema(r.db().QueryRowContext(ctx, querySchemaByService, serviceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "failed to load form schema", strconv.FormatInt(serviceID, 10))
	}
	return s, nil
}

func (r *FormSchemaRepo) FindByTargetTable(ctx context.Context, table string) ([]*formschema.Schema, error) {
	rows, err := r.db().QueryContext(ctx, querySchemasByTable, table)
	if err != nil {
		return nil, storageErr(err, "failed to find form schemas by table", table)
	}
	defer rows.Close()

	var out []*formschema.Schema
	for rows.Next() {
		s, err := r.scanSchema(rows)
		if err != nil {
			return nil, storageErr(err, "failed to scan form schema", table)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to find form schemas by table", table)
	}
	return out, nil
}

func (r *FormSchemaRepo) Upsert(ctx context.Context, s *formschema.Schema) (formschema.UpsertResult, error) {
	if s == nil || len(s.Raw) == 0 {
		return "", errors.Validation("form schema document is empty")
	}
	var author interface{}
	if s.AuthorID > 0 {
		author = s.AuthorID
	}
	var inserted bool
	err := r.db().QueryRowContext(ctx, queryUpsertSchema,
		s.ServiceID, s.TargetTable, s.Heading, []byte(s.Raw), author,
	).Scan(&inserted)
	if err != nil {
		if hasState(err, stateForeignKeyViolation) {
			return "", errors.NotFound("service does not exist").
				WithDetail(strconv.FormatInt(s.ServiceID, 10)).WithCause(err)
		}
		return "", storageErr(err, "failed to upsert form schema", strconv.FormatInt(s.ServiceID, 10))
	}
	if inserted {
		return formschema.UpsertInserted, nil
	}
	return formschema.UpsertUpdated, nil
}

// scanSchema decodes a stored document; a malformed one surfaces as the
// ValidationError from formschema.Decode.
func (r *FormSchemaRepo) scanSchema(row scanner) (*formschema.Schema, error) {
	var (
		serviceID int64
		doc       []byte
		authorID  int64
		updated   sql.NullTime
	)
	if err := row.Scan(&serviceID, &doc, &authorID, &updated); err != nil {
		return nil, err
	}
	s, err := formschema.Decode(doc)
	if err != nil {
		return nil, err
	}
	s.ServiceID = serviceID
	s.AuthorID = authorID
	if updated.Valid {
		s.UpdatedAt = updated.Time
	}
	return s, nil
}
