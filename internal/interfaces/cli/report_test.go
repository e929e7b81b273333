package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/reporting"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/config"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/calendar"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

type fakeStatus struct {
	tree  *reporting.Tree
	err   error
	modes []reporting.Mode
}

func (f *fakeStatus) Build(_ context.Context, mode reporting.Mode) (*reporting.Tree, error) {
	f.modes = append(f.modes, mode)
	return f.tree, f.err
}

type fakeDelay struct {
	tree *reporting.Tree
	err  error
	asOf []time.Time
}

func (f *fakeDelay) Build(_ context.Context, now time.Time) (*reporting.Tree, error) {
	f.asOf = append(f.asOf, now)
	return f.tree, f.err
}

func str(s string) *string { return &s }

var reportGenerated = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func statusTree() *reporting.Tree {
	return &reporting.Tree{
		GeneratedAt: reportGenerated,
		Customers: []*reporting.CustomerNode{{
			ID: 2, UniqueID: "CL-2", Name: "Acme", TATDays: "3",
			Branches: []*reporting.BranchNode{{
				ID: 3, Name: "Pune",
				Cases: []*reporting.CaseEntry{{
					ID: 10, ApplicationID: "SS-10", Name: "Asha", OverallStatus: "wip",
					ServicesStatus: map[string]*string{"Employment": str("completed"), "Address": str("INITIATED")},
				}},
			}},
		}},
	}
}

func delayTree() *reporting.Tree {
	due := time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)
	return &reporting.Tree{
		GeneratedAt: reportGenerated,
		Holidays:    []calendar.Holiday{{ID: 1, Date: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), Title: "Founders Day"}},
		Customers: []*reporting.CustomerNode{{
			ID: 2, UniqueID: "CL-2", Name: "Acme", TATDays: "3",
			Branches: []*reporting.BranchNode{{
				ID: 3, Name: "Pune",
				Cases: []*reporting.CaseEntry{{
					ID: 10, ApplicationID: "SS-10", Name: "Asha",
					CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), DueDate: &due, DaysOutOfTAT: 3,
				}},
			}},
		}},
	}
}

type backendRecorder struct {
	opened int
	closed int
}

func reportDeps(rec *backendRecorder, status StatusReporter, delay DelayReporter, openErr error) Dependencies {
	return Dependencies{
		LoadConfig: defaultConfigLoader,
		OpenBackend: func(ctx context.Context, cfg *config.Config, log logging.Logger) (*Backend, error) {
			rec.opened++
			if openErr != nil {
				return nil, openErr
			}
			if _, ok := ctx.Deadline(); !ok {
				return nil, errors.Internal("expected a command deadline")
			}
			return &Backend{Status: status, Delay: delay, Close: func() error {
				rec.closed++
				return nil
			}}, nil
		},
	}
}

func TestReportStatus(t *testing.T) {
	t.Run("table output and mode", func(t *testing.T) {
		rec := &backendRecorder{}
		status := &fakeStatus{tree: statusTree()}

		out, err := runCLI(t, reportDeps(rec, status, nil, nil), "-o", "table", "report", "status", "--mode", "Prepared")
		require.NoError(t, err)
		assert.Equal(t, []reporting.Mode{reporting.ModePrepared}, status.modes)
		assert.Contains(t, out, "CUSTOMER  BRANCH  CASE")
		assert.Contains(t, out, "Address=INITIATED, Employment=completed")
		assert.Equal(t, 1, rec.opened)
		assert.Equal(t, 1, rec.closed)
	})

	t.Run("json output is the tree", func(t *testing.T) {
		rec := &backendRecorder{}
		status := &fakeStatus{tree: statusTree()}

		out, err := runCLI(t, reportDeps(rec, status, nil, nil), "-o", "json", "report", "status")
		require.NoError(t, err)
		assert.Equal(t, []reporting.Mode{reporting.ModePending}, status.modes)

		var got reporting.Tree
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got.Customers, 1)
		assert.Equal(t, "completed", *got.Customers[0].Branches[0].Cases[0].ServicesStatus["Employment"])
	})

	t.Run("text summary", func(t *testing.T) {
		rec := &backendRecorder{}
		out, err := runCLI(t, reportDeps(rec, &fakeStatus{tree: statusTree()}, nil, nil), "report", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "completion report: 1 case(s) across 1 customer(s)")
		assert.Contains(t, out, "  Pune: 1 case(s)")
	})

	t.Run("unknown mode never opens the backend", func(t *testing.T) {
		rec := &backendRecorder{}
		_, err := runCLI(t, reportDeps(rec, &fakeStatus{}, nil, nil), "report", "status", "--mode", "done")
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
		assert.Zero(t, rec.opened)
	})

	t.Run("build failure still closes", func(t *testing.T) {
		rec := &backendRecorder{}
		_, err := runCLI(t, reportDeps(rec, &fakeStatus{err: assert.AnError}, nil, nil), "report", "status")
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1, rec.closed)
	})

	t.Run("open failure", func(t *testing.T) {
		rec := &backendRecorder{}
		_, err := runCLI(t, reportDeps(rec, nil, nil, assert.AnError), "report", "status")
		assert.ErrorIs(t, err, assert.AnError)
		assert.Zero(t, rec.closed)
	})
}

func TestReportTAT(t *testing.T) {
	t.Run("as-of", func(t *testing.T) {
		rec := &backendRecorder{}
		delay := &fakeDelay{tree: delayTree()}

		out, err := runCLI(t, reportDeps(rec, nil, delay, nil), "-o", "table", "report", "tat", "--as-of", "2024-01-10T12:00:00Z")
		require.NoError(t, err)
		require.Len(t, delay.asOf, 1)
		assert.True(t, delay.asOf[0].Equal(reportGenerated))
		assert.Contains(t, out, "DAYS OUT")
		assert.Contains(t, out, "2024-01-01  2024-01-04  3")
	})

	t.Run("defaults to now", func(t *testing.T) {
		rec := &backendRecorder{}
		delay := &fakeDelay{tree: delayTree()}
		before := time.Now()

		out, err := runCLI(t, reportDeps(rec, nil, delay, nil), "report", "tat")
		require.NoError(t, err)
		require.Len(t, delay.asOf, 1)
		assert.False(t, delay.asOf[0].Before(before))
		assert.Contains(t, out, "TAT delay report: 1 case(s)")
		assert.Contains(t, out, "1 holiday(s)")
	})

	t.Run("bad as-of", func(t *testing.T) {
		rec := &backendRecorder{}
		_, err := runCLI(t, reportDeps(rec, nil, &fakeDelay{}, nil), "report", "tat", "--as-of", "yesterday")
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidParam, errors.GetCode(err))
		assert.Zero(t, rec.opened)
	})
}
