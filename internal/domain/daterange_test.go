package domain

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewDateRangeRejectsReversedBounds(t *testing.T) {
	_, err := NewDateRange(day(2024, 3, 10), day(2024, 3, 1))
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("Expected ErrInvalidDateRange, got %v", err)
	}
	_, err = NewDateRange(time.Time{}, day(2024, 3, 1))
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("Expected ErrInvalidDateRange for zero bound, got %v", err)
	}
}

func TestCalendarAndWorkingDays(t *testing.T) {
	// Mon 2024-03-04 through Sun 2024-03-10: 7 calendar days, 5 working.
	r, err := NewDateRange(day(2024, 3, 4), day(2024, 3, 10))
	if err != nil {
		t.Fatal(err)
	}
	if got := r.CalendarDays(); got != 7 {
		t.Errorf("Expected 7 calendar days, got %d", got)
	}
	if got := r.WorkingDays(); got != 5 {
		t.Errorf("Expected 5 working days, got %d", got)
	}
}

func TestSingleDayRange(t *testing.T) {
	r, _ := NewDateRange(day(2024, 3, 6), day(2024, 3, 6))
	if got := r.CalendarDays(); got != 1 {
		t.Errorf("Expected 1 calendar day, got %d", got)
	}
	// 2024-03-09 is a Saturday.
	sat, _ := NewDateRange(day(2024, 3, 9), day(2024, 3, 9))
	if got := sat.WorkingDays(); got != 0 {
		t.Errorf("Expected 0 working days on Saturday, got %d", got)
	}
}

func TestContainmentPredicates(t *testing.T) {
	outer, _ := NewDateRange(day(2024, 1, 1), day(2024, 1, 31))
	inner, _ := NewDateRange(day(2024, 1, 10), day(2024, 1, 20))
	shifted, _ := NewDateRange(day(2024, 1, 25), day(2024, 2, 5))
	disjoint, _ := NewDateRange(day(2024, 3, 1), day(2024, 3, 5))

	if !outer.Contains(day(2024, 1, 1)) || !outer.Contains(day(2024, 1, 31)) {
		t.Error("Expected bounds to be contained")
	}
	if outer.Contains(day(2024, 2, 1)) {
		t.Error("Expected day after range to be excluded")
	}
	if !outer.Encompasses(inner) {
		t.Error("Expected outer to encompass inner")
	}
	if outer.Encompasses(shifted) {
		t.Error("Expected outer not to encompass shifted")
	}
	if !outer.Overlaps(shifted) {
		t.Error("Expected outer to overlap shifted")
	}
	if outer.Overlaps(disjoint) {
		t.Error("Expected no overlap with disjoint range")
	}
}

func TestDaysEnumeration(t *testing.T) {
	r, _ := NewDateRange(day(2024, 5, 30), day(2024, 6, 2))
	days := r.Days()
	if len(days) != 4 {
		t.Fatalf("Expected 4 days, got %d", len(days))
	}
	if days[0].Format("2006-01-02") != "2024-05-30" || days[3].Format("2006-01-02") != "2024-06-02" {
		t.Errorf("Unexpected day bounds: %v .. %v", days[0], days[3])
	}
}
