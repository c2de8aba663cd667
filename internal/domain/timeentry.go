package domain

import "time"

// TimeEntry is a single logged block of time against a work item. The
// Item* fields are a denormalized snapshot of the owning item at fetch
// time so calculators never re-fetch the item.
type TimeEntry struct {
	ID        string
	ItemKey   string
	Author    Author
	TimeSpent Duration
	Started   time.Time
	Note      string
	Billable  bool

	ItemSummary string
	ItemType    string
	ItemStatus  string
	ItemPoints  *float64
}

// ProjectKey derives the project from the owning item key.
func (e *TimeEntry) ProjectKey() string {
	for i := 0; i < len(e.ItemKey); i++ {
		if e.ItemKey[i] == '-' {
			return e.ItemKey[:i]
		}
	}
	return e.ItemKey
}

// Day returns the calendar day of the entry start as "2006-01-02".
func (e *TimeEntry) Day() string {
	return e.Started.Format("2006-01-02")
}

// MarkBillable returns a copy with the billable flag set. Entries are
// otherwise treated as immutable once fetched, so the flag never mutates
// a cached copy.
func (e TimeEntry) MarkBillable() TimeEntry {
	e.Billable = true
	return e
}

// MarkNonBillable returns a copy with the billable flag cleared.
func (e TimeEntry) MarkNonBillable() TimeEntry {
	e.Billable = false
	return e
}
