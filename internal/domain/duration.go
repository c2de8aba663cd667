package domain

import "fmt"

// SecondsPerWorkday is the length of one workday used when converting
// logged time into day units (Jira's default 8h workday).
const SecondsPerWorkday = 8 * 3600

// Duration is a non-negative amount of logged time in whole seconds.
// The zero value is a valid zero duration.
type Duration struct {
	seconds int64
}

// NewDuration builds a Duration from seconds, clamping negatives to zero.
func NewDuration(seconds int64) Duration {
	if seconds < 0 {
		seconds = 0
	}
	return Duration{seconds: seconds}
}

// DurationFromHours builds a Duration from fractional hours.
func DurationFromHours(hours float64) Duration {
	if hours < 0 {
		hours = 0
	}
	return Duration{seconds: int64(hours * 3600)}
}

func (d Duration) Seconds() int64 { return d.seconds }

func (d Duration) Minutes() float64 { return float64(d.seconds) / 60 }

func (d Duration) Hours() float64 { return float64(d.seconds) / 3600 }

// Workdays converts to 8-hour workday units.
func (d Duration) Workdays() float64 { return float64(d.seconds) / SecondsPerWorkday }

func (d Duration) IsZero() bool { return d.seconds == 0 }

// Add returns the sum of two durations.
func (d Duration) Add(other Duration) Duration {
	return Duration{seconds: d.seconds + other.seconds}
}

// Sub returns d minus other, clamped at zero.
func (d Duration) Sub(other Duration) Duration {
	s := d.seconds - other.seconds
	if s < 0 {
		s = 0
	}
	return Duration{seconds: s}
}

// Scale multiplies the duration by a non-negative factor.
func (d Duration) Scale(factor float64) Duration {
	if factor < 0 {
		factor = 0
	}
	return Duration{seconds: int64(float64(d.seconds) * factor)}
}

func (d Duration) GreaterThan(other Duration) bool { return d.seconds > other.seconds }

// String renders the duration as "Nh Mm" for logs.
func (d Duration) String() string {
	h := d.seconds / 3600
	m := (d.seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", h, m)
}
