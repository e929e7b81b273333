package repositories

import (
	"context"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/calendar"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
)

const (
	queryListHolidays    = `SELECT id, holiday_date, title FROM holidays ORDER BY holiday_date`
	queryListWeekendDays = `SELECT day_name FROM weekend_days ORDER BY day_name`
)

// CalendarRepo implements calendar.Repository.
type CalendarRepo struct {
	baseRepo
}

var _ calendar.Repository = (*CalendarRepo)(nil)

func NewCalendarRepo(conn *postgres.Connection, log logging.Logger) *CalendarRepo {
	return &CalendarRepo{baseRepo{conn: conn, log: log}}
}

func (r *CalendarRepo) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	rows, err := r.db().QueryContext(ctx, queryListHolidays)
	if err != nil {
		return nil, storageErr(err, "failed to list holidays", "")
	}
	defer rows.Close()

	var out []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Title); err != nil {
			return nil, storageErr(err, "failed to scan holiday", "")
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to list holidays", "")
	}
	return out, nil
}

func (r *CalendarRepo) ListWeekendDays(ctx context.Context) ([]string, error) {
	rows, err := r.db().QueryContext(ctx, queryListWeekendDays)
	if err != nil {
		return nil, storageErr(err, "failed to list weekend days", "")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, storageErr(err, "failed to scan weekend day", "")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to list weekend days", "")
	}
	return out, nil
}
