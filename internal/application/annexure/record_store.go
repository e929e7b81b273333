package annexure

import (
	"context"
	"strings"

	domainAnnexure "github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/prometheus"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// RecordStore reads and writes the per-case rows of annexure tables.
type RecordStore struct {
	store   domainAnnexure.Store
	log     logging.Logger
	metrics *prometheus.AppMetrics
}

func NewRecordStore(store domainAnnexure.Store, log logging.Logger, metrics *prometheus.AppMetrics) *RecordStore {
	return &RecordStore{store: store, log: log.Named("annexure.records"), metrics: metrics}
}

// Validate checks the identifiers of rec.
func Validate(rec domainAnnexure.Record) error {
	if rec.CaseID <= 0 {
		return errors.Validation("case id must be positive")
	}
	if rec.BranchID < 0 || rec.CustomerID < 0 {
		return errors.Validation("branch and customer ids must not be negative")
	}
	if err := formschema.ValidateTableName(rec.Table); err != nil {
		return err
	}
	for name := range rec.Fields {
		if err := formschema.ValidateFieldName(name); err != nil {
			return err
		}
	}
	return nil
}

// Upsert writes rec's fields to the case's row, inserting the row on first
// write. Only the supplied fields change on update.
func (s *RecordStore) Upsert(ctx context.Context, rec domainAnnexure.Record) (domainAnnexure.WriteOutcome, error) {
	if err := Validate(rec); err != nil {
		return "", err
	}
	outcome, err := s.store.Upsert(ctx, rec)
	if err != nil {
		return "", err
	}
	prometheus.RecordUpsert(s.metrics, string(outcome))
	s.log.Debug("annexure record written",
		logging.String("table", rec.Table),
		logging.Int64("case_id", rec.CaseID),
		logging.String("outcome", string(outcome)),
		logging.Int("fields", len(rec.Fields)))
	return outcome, nil
}

// FetchLabeled reads the requested columns of the case's row and returns the
// non-empty values in request order, each paired with its label. Columns
// missing from the physical table are never selected; an absent table or row
// yields no values.
func (s *RecordStore) FetchLabeled(ctx context.Context, table string, caseID int64, columns []string, labels map[string]string) ([]domainAnnexure.LabeledValue, error) {
	if err := formschema.ValidateTableName(table); err != nil {
		return nil, err
	}
	present, err := s.store.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := present[c]; !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		selected = append(selected, c)
	}
	if len(selected) == 0 {
		return nil, nil
	}

	values, err := s.store.ReadColumns(ctx, table, caseID, selected)
	if err != nil {
		return nil, err
	}
	var out []domainAnnexure.LabeledValue
	for _, c := range selected {
		v := values[c]
		if v == nil || strings.TrimSpace(*v) == "" {
			continue
		}
		label := labels[c]
		if label == "" {
			label = c
		}
		out = append(out, domainAnnexure.LabeledValue{Column: c, Label: label, Value: *v})
	}
	return out, nil
}
