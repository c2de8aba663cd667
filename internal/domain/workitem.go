package domain

import (
	"strings"
	"time"
)

// StatusCategory is the canonical status bucket a raw label maps into.
type StatusCategory string

const (
	CategoryToDo       StatusCategory = "ToDo"
	CategoryInProgress StatusCategory = "InProgress"
	CategoryQA         StatusCategory = "QA"
	CategoryDone       StatusCategory = "Done"
	CategoryUnknown    StatusCategory = "Unknown"
)

// Author identifies the person behind a worklog or change.
type Author struct {
	ID          string
	DisplayName string
}

// WorkItem is a single trackable unit of work fetched from the source.
// Children is populated only when the item participates in a hierarchy
// roll-up; flat calculators leave it nil.
type WorkItem struct {
	Key            string
	Summary        string
	Type           string
	RawStatus      string
	Category       StatusCategory
	CategoryKey    string
	InQA           bool
	StoryPoints    *float64
	Estimate       *Duration
	AggregateSpent *Duration
	AggregateEst   *Duration
	Spent          *Duration
	ParentKey      string
	Team           string
	ResolutionDate *time.Time
	Updated        time.Time
	Children       []*WorkItem
}

// ProjectKey derives the project portion of the item key (text before the
// first '-'); the whole key when no separator exists.
func (w *WorkItem) ProjectKey() string {
	if i := strings.Index(w.Key, "-"); i > 0 {
		return w.Key[:i]
	}
	return w.Key
}

// HasChildren reports whether the item carries nested children.
func (w *WorkItem) HasChildren() bool { return len(w.Children) > 0 }

// Points returns the story point value, 0 when unset.
func (w *WorkItem) Points() float64 {
	if w.StoryPoints == nil {
		return 0
	}
	return *w.StoryPoints
}

// OwnEstimate resolves the estimate to attribute to this node alone.
// Parents with declared children keep their direct field so child effort is
// not counted twice; leaves prefer the source aggregate, falling back to
// the direct field.
func (w *WorkItem) OwnEstimate() Duration {
	if w.HasChildren() {
		if w.Estimate != nil {
			return *w.Estimate
		}
		return Duration{}
	}
	if w.AggregateEst != nil {
		return *w.AggregateEst
	}
	if w.Estimate != nil {
		return *w.Estimate
	}
	return Duration{}
}

// OwnSpent resolves the spent time to attribute to this node alone, with
// the same parent/leaf rule as OwnEstimate.
func (w *WorkItem) OwnSpent() Duration {
	if w.HasChildren() {
		if w.Spent != nil {
			return *w.Spent
		}
		return Duration{}
	}
	if w.AggregateSpent != nil {
		return *w.AggregateSpent
	}
	if w.Spent != nil {
		return *w.Spent
	}
	return Duration{}
}
