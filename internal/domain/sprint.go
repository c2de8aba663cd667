package domain

import (
	"math"
	"time"
)

// SprintState is the lifecycle state reported by the source.
type SprintState string

const (
	SprintFuture SprintState = "future"
	SprintActive SprintState = "active"
	SprintClosed SprintState = "closed"
)

// Sprint is a board iteration as reported by the source.
type Sprint struct {
	ID       int64
	Name     string
	State    SprintState
	Start    *time.Time
	End      *time.Time
	Complete *time.Time
	BoardID  int64
}

// PlannedDuration returns the scheduled sprint length, zero when either
// bound is missing.
func (s *Sprint) PlannedDuration() time.Duration {
	if s.Start == nil || s.End == nil {
		return 0
	}
	return s.End.Sub(*s.Start)
}

// ElapsedDays returns whole calendar days since the sprint started,
// clamped to the planned length; 0 for future or unscheduled sprints.
func (s *Sprint) ElapsedDays(now time.Time) int {
	if s.Start == nil || now.Before(*s.Start) {
		return 0
	}
	elapsed := int(now.Sub(*s.Start).Hours() / 24)
	if s.End != nil {
		if total := int(s.End.Sub(*s.Start).Hours() / 24); elapsed > total {
			return total
		}
	}
	return elapsed
}

// RemainingDays returns whole calendar days until the sprint end, 0 once
// past the end or when no end is scheduled.
func (s *Sprint) RemainingDays(now time.Time) int {
	if s.End == nil || now.After(*s.End) {
		return 0
	}
	return int(math.Ceil(s.End.Sub(now).Hours() / 24))
}

// ProgressPercent returns elapsed time over planned time for an active
// sprint, capped at 100. Non-active or unscheduled sprints report 0.
func (s *Sprint) ProgressPercent(now time.Time) int {
	if s.State != SprintActive || s.Start == nil || s.End == nil {
		return 0
	}
	total := s.End.Sub(*s.Start)
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(now.Sub(*s.Start)) / float64(total) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Overdue reports an active sprint running past its scheduled end.
func (s *Sprint) Overdue(now time.Time) bool {
	return s.State == SprintActive && s.End != nil && now.After(*s.End)
}
