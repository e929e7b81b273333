package reporting

import (
	"context"
	"strings"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/notify"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/calendar"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/casefile"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/prometheus"
)

// DelayCalculator builds the TAT delay tree.
type DelayCalculator struct {
	deps      Deps
	cfg       Config
	calendar  calendar.Repository
	completed map[string]struct{}
	log       logging.Logger
}

func NewDelayCalculator(deps Deps, cal calendar.Repository, cfg Config) *DelayCalculator {
	completed := make(map[string]struct{}, len(cfg.CompletedStatuses))
	for _, s := range cfg.CompletedStatuses {
		completed[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return &DelayCalculator{deps: deps, cfg: cfg, calendar: cal, completed: completed, log: deps.Log.Named("report.tat")}
}

func (d *DelayCalculator) isCompleted(status string) bool {
	_, ok := d.completed[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

type overdueCase struct {
	c     *casefile.Case
	due   time.Time
	delay int
}

// Build lists every case past its due date as of now. The calendar is read
// once and used for the whole build; the holiday list is attached to the
// tree.
//
// A case qualifies when it is not TAT-excluded, its status is not a completed
// one, its customer's policy parses and lies in [1,365], and at least one
// business day has passed since the due date.
func (d *DelayCalculator) Build(ctx context.Context, now time.Time) (*Tree, error) {
	start := time.Now()
	snap, err := calendar.LoadSnapshot(ctx, d.calendar)
	if err != nil {
		return nil, err
	}

	resolver := newStatusResolver(d.deps.Schemas, d.deps.Store)
	dirCache := newDirectoryCache(d.deps.Directory)
	builder := newTreeBuilder()
	var breaches []notify.Event
	failures, badPolicies := 0, 0

	filter := casefile.CaseFilter{Limit: d.cfg.PageSize}
	err = casefile.Each(ctx, d.deps.Directory, filter, func(page []*casefile.Case) error {
		if err := dirCache.load(ctx, page); err != nil {
			return err
		}

		var overdue []overdueCase
		for _, c := range page {
			if c.TATExcluded || d.isCompleted(c.OverallStatus) {
				continue
			}
			cust, _, ok := dirCache.owners(c)
			if !ok {
				continue
			}
			days, err := calendar.ParseTATDays(cust.TATDays)
			if err != nil {
				badPolicies++
				d.log.Warn("skipping case with malformed tat policy",
					logging.Int64("case_id", c.ID), logging.Int64("customer_id", cust.ID), logging.Err(err))
				continue
			}
			if !calendar.InPolicyRange(days) {
				continue
			}
			due, err := snap.DueDate(c.CreatedAt, days)
			if err != nil {
				return err
			}
			if delay := snap.DaysOutOfTAT(due, now); delay > 0 {
				overdue = append(overdue, overdueCase{c: c, due: due, delay: delay})
			}
		}
		if len(overdue) == 0 {
			return nil
		}

		cases := make([]*casefile.Case, len(overdue))
		for i, o := range overdue {
			cases[i] = o.c
		}
		results, err := resolver.resolveAll(ctx, cases, d.cfg.Parallelism)
		if err != nil {
			return err
		}

		for i, o := range overdue {
			cust, br, _ := dirCache.owners(o.c)
			entry := newCaseEntry(o.c)
			due := o.due
			entry.DueDate = &due
			entry.DaysOutOfTAT = o.delay
			if o.c.ServicesErr != nil {
				entry.Error = o.c.ServicesErr.Error()
				failures++
			} else {
				_, failed := applyStatuses(entry, results[i])
				failures += failed
			}
			builder.add(cust, br, entry)
			if d.cfg.NotifyBreaches {
				breaches = append(breaches, notify.NewEvent(notify.EventTATBreached, o.c.ID, cust.ID, br.ID,
					map[string]interface{}{
						"application_id":  o.c.ApplicationID,
						"due_date":        due.Format("2006-01-02"),
						"days_out_of_tat": o.delay,
					}))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tree := &Tree{Customers: builder.build(), Holidays: snap.Holidays(), GeneratedAt: time.Now().UTC()}
	prometheus.RecordReportBuild(d.deps.Metrics, "tat_delay", tree.CaseCount(), failures, time.Since(start))
	prometheus.RecordNotification(d.deps.Metrics, notify.EventTATBreached, len(breaches))
	notify.Fire(d.deps.Dispatcher, d.log, breaches...)

	d.log.Info("tat delay report built",
		logging.Int("cases", tree.CaseCount()),
		logging.Int("malformed_policies", badPolicies),
		logging.Int("lookup_failures", failures),
		logging.Duration("elapsed", time.Since(start)))
	return tree, nil
}
