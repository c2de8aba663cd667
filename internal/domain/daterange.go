package domain

import (
	"time"
)

// DateRange is an inclusive [From, To] pair of instants.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange validates and builds a range. Returns ErrInvalidDateRange
// when from is after to or either bound is the zero time.
func NewDateRange(from, to time.Time) (DateRange, error) {
	if from.IsZero() || to.IsZero() || from.After(to) {
		return DateRange{}, ErrInvalidDateRange
	}
	return DateRange{From: from, To: to}, nil
}

// CalendarDays returns the number of calendar days covered by the range,
// counting both endpoints (a single-day range is 1).
func (r DateRange) CalendarDays() int {
	from := truncateToDay(r.From)
	to := truncateToDay(r.To)
	return int(to.Sub(from).Hours()/24) + 1
}

// WorkingDays counts the Mon-Fri days within the range, both endpoints
// included.
func (r DateRange) WorkingDays() int {
	count := 0
	for d := truncateToDay(r.From); !d.After(r.To); d = d.AddDate(0, 0, 1) {
		if IsWorkingDay(d) {
			count++
		}
	}
	return count
}

// Contains reports whether t falls within the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Overlaps reports whether the two ranges share at least one instant.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.From.After(other.To) && !other.From.After(r.To)
}

// Encompasses reports whether other lies entirely within r.
func (r DateRange) Encompasses(other DateRange) bool {
	return !other.From.Before(r.From) && !other.To.After(r.To)
}

// Days returns each calendar day of the range in order, truncated to
// midnight in the From location.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := truncateToDay(r.From); !d.After(r.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// IsWorkingDay reports whether t is a Mon-Fri day. Weekends are the only
// non-working days; no holiday calendar is applied.
func IsWorkingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
