// Package calendar implements the business-day arithmetic behind turnaround
// time (TAT) tracking. A Snapshot freezes the org-wide holiday list and weekend
// pattern for the duration of one computation batch.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// MinTATDays and MaxTATDays bound a valid TAT policy. Values outside the range
// exclude a case from TAT tracking.
const (
	MinTATDays = 1
	MaxTATDays = 365
)

const dateKeyLayout = "2006-01-02"

// ErrNoBusinessDays is returned for a weekend pattern that covers the whole week.
var ErrNoBusinessDays = errors.Computation("calendar has no business days")

// Holiday is a single non-working calendar date.
type Holiday struct {
	ID    int64     `json:"id"`
	Date  time.Time `json:"date"`
	Title string    `json:"title"`
}

// WeekendPattern is the set of weekdays that are never business days.
type WeekendPattern map[time.Weekday]struct{}

// DefaultWeekend is Saturday and Sunday.
func DefaultWeekend() WeekendPattern {
	return WeekendPattern{time.Saturday: {}, time.Sunday: {}}
}

// Contains reports whether d is a weekend day.
func (w WeekendPattern) Contains(d time.Weekday) bool {
	_, ok := w[d]
	return ok
}

// Names returns the lower-case weekday names in Sunday-first order.
func (w WeekendPattern) Names() []string {
	out := make([]string, 0, len(w))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Contains(d) {
			out = append(out, strings.ToLower(d.String()))
		}
	}
	return out
}

// ParseWeekendPattern builds a pattern from weekday names such as "Saturday"
// or "sun". Names are matched case-insensitively on their first three letters.
func ParseWeekendPattern(names []string) (WeekendPattern, error) {
	w := WeekendPattern{}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		d, ok := weekdayByPrefix(name)
		if !ok {
			return nil, errors.Computation("unrecognised weekend day").WithDetail(raw)
		}
		w[d] = struct{}{}
	}
	if len(w) == 7 {
		return nil, ErrNoBusinessDays
	}
	return w, nil
}

func weekdayByPrefix(name string) (time.Weekday, bool) {
	if len(name) < 3 {
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if strings.HasPrefix(full, name) {
			return d, true
		}
	}
	return 0, false
}

// ParseTATDays converts a stored policy value into a day count. Blank values
// and non-integers are ComputationErrors; range checks are left to InPolicyRange.
func ParseTATDays(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.Computation("tat policy is empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Computation("tat policy is not an integer").WithDetail(raw).WithCause(err)
	}
	return n, nil
}

// InPolicyRange reports whether days is within [MinTATDays, MaxTATDays].
func InPolicyRange(days int) bool {
	return days >= MinTATDays && days <= MaxTATDays
}

// Snapshot is an immutable view of the holiday list and weekend pattern.
// It is safe for concurrent use.
type Snapshot struct {
	holidays   []Holiday
	holidaySet map[string]struct{}
	weekend    WeekendPattern
}

// NewSnapshot copies holidays and weekend into a new Snapshot. A nil weekend
// pattern means no weekend days.
func NewSnapshot(holidays []Holiday, weekend WeekendPattern) *Snapshot {
	s := &Snapshot{
		holidays:   make([]Holiday, len(holidays)),
		holidaySet: make(map[string]struct{}, len(holidays)),
		weekend:    WeekendPattern{},
	}
	copy(s.holidays, holidays)
	sort.SliceStable(s.holidays, func(i, j int) bool { return s.holidays[i].Date.Before(s.holidays[j].Date) })
	for _, h := range s.holidays {
		s.holidaySet[h.Date.Format(dateKeyLayout)] = struct{}{}
	}
	for d := range weekend {
		s.weekend[d] = struct{}{}
	}
	return s
}

// Holidays returns a copy of the holiday list sorted by date.
func (s *Snapshot) Holidays() []Holiday {
	out := make([]Holiday, len(s.holidays))
	copy(out, s.holidays)
	return out
}

// Weekend returns a copy of the weekend pattern.
func (s *Snapshot) Weekend() WeekendPattern {
	out := make(WeekendPattern, len(s.weekend))
	for d := range s.weekend {
		out[d] = struct{}{}
	}
	return out
}

// IsHoliday reports whether the calendar date of t is a listed holiday.
func (s *Snapshot) IsHoliday(t time.Time) bool {
	_, ok := s.holidaySet[t.Format(dateKeyLayout)]
	return ok
}

// IsBusinessDay reports whether t falls on neither a weekend day nor a holiday.
func (s *Snapshot) IsBusinessDay(t time.Time) bool {
	return !s.weekend.Contains(t.Weekday()) && !s.IsHoliday(t)
}

// DueDate advances from start one calendar day at a time, counting landed
// business days, and returns the day on which tatDays have been counted. The
// day after start is the first candidate, so the result is always later than
// start. The time of day of start is preserved.
//
// A calendar without business days cannot produce a due date; the walk stops
// after tatDays weeks plus one day per holiday and returns ErrNoBusinessDays.
func (s *Snapshot) DueDate(start time.Time, tatDays int) (time.Time, error) {
	limit := 7*max(tatDays, 1) + len(s.holidays)
	remaining := tatDays
	d := start
	for i := 0; i < limit; i++ {
		d = d.AddDate(0, 0, 1)
		if s.IsBusinessDay(d) {
			remaining--
		}
		if remaining <= 0 {
			return d, nil
		}
	}
	return time.Time{}, ErrNoBusinessDays.WithDetail(fmt.Sprintf("%d business days from %s", tatDays, start.Format(dateKeyLayout)))
}

// DaysOutOfTAT counts business days strictly after due whose timestamp (due's
// time of day carried forward) is before now.
func (s *Snapshot) DaysOutOfTAT(due, now time.Time) int {
	count := 0
	for d := due.AddDate(0, 0, 1); d.Before(now); d = d.AddDate(0, 0, 1) {
		if s.IsBusinessDay(d) {
			count++
		}
	}
	return count
}

// Repository loads the org-wide calendar reference data.
type Repository interface {
	ListHolidays(ctx context.Context) ([]Holiday, error)
	ListWeekendDays(ctx context.Context) ([]string, error)
}

// LoadSnapshot reads holidays and weekend days from repo into a new Snapshot.
// An empty weekend table yields DefaultWeekend.
func LoadSnapshot(ctx context.Context, repo Repository) (*Snapshot, error) {
	holidays, err := repo.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	names, err := repo.ListWeekendDays(ctx)
	if err != nil {
		return nil, err
	}
	weekend, err := ParseWeekendPattern(names)
	if err != nil {
		return nil, err
	}
	if len(weekend) == 0 {
		weekend = DefaultWeekend()
	}
	return NewSnapshot(holidays, weekend), nil
}
