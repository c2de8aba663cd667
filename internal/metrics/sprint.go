package metrics

import (
	"math"
	"slices"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

// StatusCounts is the 4-way item histogram. Unknown items count toward
// Total only.
type StatusCounts struct {
	Total      int `json:"total"`
	ToDo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	QA         int `json:"qa"`
	Resolved   int `json:"resolved"`
}

// StoryPointSums mirrors StatusCounts for story points.
type StoryPointSums struct {
	Total      float64 `json:"total"`
	ToDo       float64 `json:"todo"`
	InProgress float64 `json:"inProgress"`
	QA         float64 `json:"qa"`
	Resolved   float64 `json:"resolved"`
}

// TypeBreakdown is the per-item-type slice of a sprint.
type TypeBreakdown struct {
	ItemType    string  `json:"itemType"`
	Count       int     `json:"count"`
	StoryPoints float64 `json:"storyPoints"`
	DoneCount   int     `json:"doneCount"`
}

// SprintMetrics is the aggregate view over a sprint's work items.
type SprintMetrics struct {
	StatusCounts       StatusCounts    `json:"statusCounts"`
	StoryPointsByState StoryPointSums  `json:"storyPointsByStatus"`
	CompletionRate     float64         `json:"completionRate"`
	ByType             []TypeBreakdown `json:"byType"`
}

// ComputeSprintMetrics aggregates work items into status and point
// distributions. The bucket for each item is checked Done first, then QA,
// then InProgress, then ToDo: a Done item whose label carries a QA keyword
// still counts as resolved.
func ComputeSprintMetrics(items []domain.WorkItem) SprintMetrics {
	m := SprintMetrics{ByType: []TypeBreakdown{}}

	types := map[string]*TypeBreakdown{}

	for i := range items {
		it := &items[i]
		pts := it.Points()
		m.StatusCounts.Total++
		m.StoryPointsByState.Total += pts

		tb, ok := types[it.Type]
		if !ok {
			tb = &TypeBreakdown{ItemType: it.Type}
			types[it.Type] = tb
		}
		tb.Count++
		tb.StoryPoints += pts

		switch {
		case it.Category == domain.CategoryDone:
			m.StatusCounts.Resolved++
			m.StoryPointsByState.Resolved += pts
			tb.DoneCount++
		case it.InQA || it.Category == domain.CategoryQA:
			m.StatusCounts.QA++
			m.StoryPointsByState.QA += pts
		case it.Category == domain.CategoryInProgress:
			m.StatusCounts.InProgress++
			m.StoryPointsByState.InProgress += pts
		case it.Category == domain.CategoryToDo:
			m.StatusCounts.ToDo++
			m.StoryPointsByState.ToDo += pts
		}
		// Unknown falls through: counted in totals only.
	}

	if m.StatusCounts.Total > 0 {
		m.CompletionRate = float64(m.StatusCounts.Resolved) / float64(m.StatusCounts.Total)
	}

	for _, tb := range types {
		m.ByType = append(m.ByType, *tb)
	}
	slices.SortFunc(m.ByType, func(a, b TypeBreakdown) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return compareStrings(a.ItemType, b.ItemType)
	})

	return m
}

// VelocityMetrics describes one sprint's committed-vs-completed outcome.
type VelocityMetrics struct {
	CommittedPoints float64 `json:"committedPoints"`
	CompletedPoints float64 `json:"completedPoints"`
	CompletionRate  int     `json:"completionRate"`
	Variance        float64 `json:"variance"`
	VariancePercent int     `json:"variancePercent"`
}

// TrendDirection classifies the velocity trend over recent sprints.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// ComputeVelocity compares committed against completed points for one
// sprint. Rates are rounded to the nearest integer percent; a zero
// commitment yields zero rates rather than a division error.
func ComputeVelocity(committed, completed float64) VelocityMetrics {
	v := VelocityMetrics{
		CommittedPoints: committed,
		CompletedPoints: completed,
		Variance:        completed - committed,
	}
	if committed > 0 {
		v.CompletionRate = int(math.Round(completed / committed * 100))
		v.VariancePercent = int(math.Round(v.Variance / committed * 100))
	}
	return v
}

// AverageVelocity returns the mean completed points across sprints,
// rounded to one decimal. Empty input yields 0.
func AverageVelocity(velocities []VelocityMetrics) float64 {
	if len(velocities) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range velocities {
		sum += v.CompletedPoints
	}
	return math.Round(sum/float64(len(velocities))*10) / 10
}

// VelocityTrend compares the first and last of the last three sprints.
// A change above +10% reads increasing, below -10% decreasing, anything
// else stable. Fewer than three samples is always stable: two sprints are
// not a trend.
func VelocityTrend(velocities []VelocityMetrics) TrendDirection {
	if len(velocities) < 3 {
		return TrendStable
	}
	window := velocities[len(velocities)-3:]
	first := window[0].CompletedPoints
	last := window[2].CompletedPoints

	if first == 0 {
		if last > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}

	change := (last - first) / first * 100
	switch {
	case change > 10:
		return TrendIncreasing
	case change < -10:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
