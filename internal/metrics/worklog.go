// Package metrics holds the pure KPI calculators. Every calculator
// recomputes its result wholesale from its input collection; results are
// never incrementally updated and are safe to cache as-is.
package metrics

import (
	"math"
	"slices"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

// WorklogMetrics is the aggregate view over a list of time entries.
type WorklogMetrics struct {
	TotalTimeSpentHours  float64        `json:"totalTimeSpentHours"`
	BillableHours        float64        `json:"billableHours"`
	NonBillableHours     float64        `json:"nonBillableHours"`
	EntryCount           int            `json:"entryCount"`
	UniqueUsers          int            `json:"uniqueUsers"`
	UniqueItems          int            `json:"uniqueItems"`
	UniqueProjects       int            `json:"uniqueProjects"`
	AverageHoursPerEntry float64        `json:"averageHoursPerEntry"`
	ByUser               []UserTotal    `json:"byUser"`
	ByProject            []ProjectTotal `json:"byProject"`
	ByDay                []DayTotal     `json:"byDay"`
	ByType               []TypeTotal    `json:"byType"`
}

// UserTotal is the per-author roll-up.
type UserTotal struct {
	AuthorID     string  `json:"authorId"`
	DisplayName  string  `json:"displayName"`
	TotalHours   float64 `json:"totalHours"`
	WorklogCount int     `json:"worklogCount"`
	ItemCount    int     `json:"itemCount"`
}

// ProjectTotal is the per-project roll-up, keyed by the item key prefix.
type ProjectTotal struct {
	ProjectKey   string  `json:"projectKey"`
	TotalHours   float64 `json:"totalHours"`
	WorklogCount int     `json:"worklogCount"`
}

// DayTotal is the per-calendar-day roll-up of entry starts.
type DayTotal struct {
	Date         string  `json:"date"`
	TotalHours   float64 `json:"totalHours"`
	WorklogCount int     `json:"worklogCount"`
	UserCount    int     `json:"userCount"`
}

// TypeTotal is the per-item-type roll-up.
type TypeTotal struct {
	ItemType     string  `json:"itemType"`
	TotalHours   float64 `json:"totalHours"`
	WorklogCount int     `json:"worklogCount"`
}

// EmptyWorklogMetrics is the explicit all-zero result for empty input.
func EmptyWorklogMetrics() WorklogMetrics {
	return WorklogMetrics{
		ByUser:    []UserTotal{},
		ByProject: []ProjectTotal{},
		ByDay:     []DayTotal{},
		ByType:    []TypeTotal{},
	}
}

// ComputeWorklogMetrics aggregates time entries into grouped totals.
// Grouping is exact-match on the grouping key; ordering within each
// group-by is descending total time, except days which sort ascending by
// date so charts read left to right.
func ComputeWorklogMetrics(entries []domain.TimeEntry) WorklogMetrics {
	if len(entries) == 0 {
		return EmptyWorklogMetrics()
	}

	m := EmptyWorklogMetrics()
	m.EntryCount = len(entries)

	type userAcc struct {
		name  string
		hours float64
		count int
		items map[string]bool
	}
	type dayAcc struct {
		hours float64
		count int
		users map[string]bool
	}
	type keyAcc struct {
		hours float64
		count int
	}

	users := map[string]*userAcc{}
	projects := map[string]*keyAcc{}
	days := map[string]*dayAcc{}
	types := map[string]*keyAcc{}
	items := map[string]bool{}

	for i := range entries {
		e := &entries[i]
		hours := e.TimeSpent.Hours()
		m.TotalTimeSpentHours += hours
		if e.Billable {
			m.BillableHours += hours
		} else {
			m.NonBillableHours += hours
		}
		items[e.ItemKey] = true

		u, ok := users[e.Author.ID]
		if !ok {
			u = &userAcc{name: e.Author.DisplayName, items: map[string]bool{}}
			users[e.Author.ID] = u
		}
		u.hours += hours
		u.count++
		u.items[e.ItemKey] = true

		p, ok := projects[e.ProjectKey()]
		if !ok {
			p = &keyAcc{}
			projects[e.ProjectKey()] = p
		}
		p.hours += hours
		p.count++

		d, ok := days[e.Day()]
		if !ok {
			d = &dayAcc{users: map[string]bool{}}
			days[e.Day()] = d
		}
		d.hours += hours
		d.count++
		d.users[e.Author.ID] = true

		t, ok := types[e.ItemType]
		if !ok {
			t = &keyAcc{}
			types[e.ItemType] = t
		}
		t.hours += hours
		t.count++
	}

	m.UniqueUsers = len(users)
	m.UniqueItems = len(items)
	m.UniqueProjects = len(projects)
	m.AverageHoursPerEntry = roundHours(m.TotalTimeSpentHours / float64(len(entries)))

	for id, u := range users {
		m.ByUser = append(m.ByUser, UserTotal{
			AuthorID:     id,
			DisplayName:  u.name,
			TotalHours:   roundHours(u.hours),
			WorklogCount: u.count,
			ItemCount:    len(u.items),
		})
	}
	slices.SortFunc(m.ByUser, func(a, b UserTotal) int {
		if c := compareDesc(a.TotalHours, b.TotalHours); c != 0 {
			return c
		}
		return compareStrings(a.AuthorID, b.AuthorID)
	})

	for key, p := range projects {
		m.ByProject = append(m.ByProject, ProjectTotal{
			ProjectKey:   key,
			TotalHours:   roundHours(p.hours),
			WorklogCount: p.count,
		})
	}
	slices.SortFunc(m.ByProject, func(a, b ProjectTotal) int {
		if c := compareDesc(a.TotalHours, b.TotalHours); c != 0 {
			return c
		}
		return compareStrings(a.ProjectKey, b.ProjectKey)
	})

	for date, d := range days {
		m.ByDay = append(m.ByDay, DayTotal{
			Date:         date,
			TotalHours:   roundHours(d.hours),
			WorklogCount: d.count,
			UserCount:    len(d.users),
		})
	}
	slices.SortFunc(m.ByDay, func(a, b DayTotal) int {
		return compareStrings(a.Date, b.Date)
	})

	for typ, t := range types {
		m.ByType = append(m.ByType, TypeTotal{
			ItemType:     typ,
			TotalHours:   roundHours(t.hours),
			WorklogCount: t.count,
		})
	}
	slices.SortFunc(m.ByType, func(a, b TypeTotal) int {
		if c := compareDesc(a.TotalHours, b.TotalHours); c != 0 {
			return c
		}
		return compareStrings(a.ItemType, b.ItemType)
	})

	m.TotalTimeSpentHours = roundHours(m.TotalTimeSpentHours)
	m.BillableHours = roundHours(m.BillableHours)
	m.NonBillableHours = roundHours(m.NonBillableHours)
	return m
}

// roundHours keeps two decimals, enough for second-granularity worklogs.
func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
