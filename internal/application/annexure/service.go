package annexure

import (
	"context"
	"sort"

	domainAnnexure "github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// TableCatalog says which annexure tables some service form writes to.
type TableCatalog interface {
	DeclaresTable(ctx context.Context, table string) (bool, error)
}

// Service is the intake write path: migrate on first sight, then upsert.
type Service struct {
	engine  *Engine
	records *RecordStore
	tables  TableCatalog
	log     logging.Logger
}

func NewService(engine *Engine, records *RecordStore, tables TableCatalog, log logging.Logger) *Service {
	return &Service{engine: engine, records: records, tables: tables, log: log.Named("annexure")}
}

// EnsureAndUpsert makes sure rec.Table and a column for every supplied field
// exist, then writes the case's row. Only tables targeted by a stored form
// definition are created.
func (s *Service) EnsureAndUpsert(ctx context.Context, rec domainAnnexure.Record) (domainAnnexure.WriteOutcome, error) {
	if err := Validate(rec); err != nil {
		return "", err
	}
	declared, err := s.tables.DeclaresTable(ctx, rec.Table)
	if err != nil {
		return "", err
	}
	if !declared {
		return "", errors.NotFound("no form schema targets this table").WithDetail(rec.Table)
	}

	names := make([]string, 0, len(rec.Fields))
	for n := range rec.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	desc := formschema.AnnexureDescriptor{TableName: rec.Table, Fields: formschema.FieldSpecsFor(names)}

	if err := s.engine.Ensure(ctx, desc); err != nil {
		return "", err
	}

	outcome, err := s.records.Upsert(ctx, rec)
	if err != nil {
		// A column or table dropped behind our back invalidates the cache.
		if errors.IsValidation(err) || errors.IsNotFound(err) {
			s.engine.Forget(rec.Table)
		}
		s.log.Error("annexure upsert failed",
			logging.String("table", rec.Table), logging.Int64("case_id", rec.CaseID), logging.Err(err))
		return "", err
	}
	return outcome, nil
}
