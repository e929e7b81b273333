package reporting

import (
	"context"
	"strings"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/notify"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/casefile"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/prometheus"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// Mode selects the cases of a completion status report.
type Mode string

const (
	// ModePending lists unresolved cases whose services all have a status.
	ModePending Mode = "pending"
	// ModePrepared lists every active case.
	ModePrepared Mode = "prepared"
)

// ParseMode accepts "pending" or "prepared", ignoring case.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModePending:
		return ModePending, nil
	case ModePrepared:
		return ModePrepared, nil
	}
	return "", errors.Validation("report mode must be pending or prepared").WithDetail(raw)
}

// Config holds report tunables.
type Config struct {
	// Parallelism bounds in-flight per-service lookups.
	Parallelism int
	// PageSize is the case page size; zero means casefile.DefaultPageSize.
	PageSize int
	// CompletedStatuses are overall statuses that stop the TAT clock.
	CompletedStatuses []string
	NotifyBreaches    bool
	NotifyCompletions bool
}

// Deps are the collaborators shared by both report builders.
type Deps struct {
	Directory  casefile.Directory
	Schemas    SchemaSource
	Store      annexure.Store
	Dispatcher notify.Dispatcher
	Log        logging.Logger
	Metrics    *prometheus.AppMetrics
}

// CompletionAggregator builds the completion status tree.
type CompletionAggregator struct {
	deps Deps
	cfg  Config
	log  logging.Logger
}

func NewCompletionAggregator(deps Deps, cfg Config) *CompletionAggregator {
	return &CompletionAggregator{deps: deps, cfg: cfg, log: deps.Log.Named("report.status")}
}

// Build walks every qualifying case. A table that was never created reports
// INITIATED. A failed lookup marks that case and the build goes on.
func (a *CompletionAggregator) Build(ctx context.Context, mode Mode) (*Tree, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	start := time.Now()
	resolver := newStatusResolver(a.deps.Schemas, a.deps.Store)
	dirCache := newDirectoryCache(a.deps.Directory)
	builder := newTreeBuilder()
	var completed []notify.Event
	failures := 0

	filter := casefile.CaseFilter{OnlyUnresolved: mode == ModePending, Limit: a.cfg.PageSize}
	err := casefile.Each(ctx, a.deps.Directory, filter, func(page []*casefile.Case) error {
		if err := dirCache.load(ctx, page); err != nil {
			return err
		}
		results, err := resolver.resolveAll(ctx, page, a.cfg.Parallelism)
		if err != nil {
			return err
		}

		for i, c := range page {
			cust, br, ok := dirCache.owners(c)
			if !ok {
				continue
			}
			entry := newCaseEntry(c)
			if c.ServicesErr != nil {
				entry.Error = c.ServicesErr.Error()
				failures++
				builder.add(cust, br, entry)
				continue
			}
			resolved, failed := applyStatuses(entry, results[i])
			failures += failed
			if failed > 0 {
				a.log.Warn("service status lookup failed",
					logging.Int64("case_id", c.ID), logging.Int("failed", failed), logging.String("error", entry.Error))
				builder.add(cust, br, entry)
				continue
			}
			if mode == ModePending && resolved != len(c.ServiceIDs) {
				continue
			}
			builder.add(cust, br, entry)
			if mode == ModePending && a.cfg.NotifyCompletions {
				completed = append(completed, notify.NewEvent(notify.EventCaseCompleted, c.ID, cust.ID, br.ID,
					map[string]interface{}{"application_id": c.ApplicationID, "services_status": entry.ServicesStatus}))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tree := &Tree{Customers: builder.build(), GeneratedAt: time.Now().UTC()}
	prometheus.RecordReportBuild(a.deps.Metrics, "case_status", tree.CaseCount(), failures, time.Since(start))
	prometheus.RecordNotification(a.deps.Metrics, notify.EventCaseCompleted, len(completed))
	notify.Fire(a.deps.Dispatcher, a.log, completed...)

	a.log.Info("case status report built",
		logging.String("mode", string(mode)),
		logging.Int("customers", len(tree.Customers)),
		logging.Int("cases", tree.CaseCount()),
		logging.Int("lookup_failures", failures),
		logging.Duration("elapsed", time.Since(start)))
	return tree, nil
}
