// Package hierarchy rolls up estimate, spent time and story points over a
// nested work-item tree (legend -> epic -> story -> subtask) without
// double counting across levels.
//
// The source's own aggregate fields do not compose reliably across custom
// hierarchy levels in mixed-project setups, so every roll-up here is
// recomputed bottom-up from per-node values: each node contributes only
// what WorkItem.OwnEstimate/OwnSpent attribute to it, and the tree sum
// adds children exactly once.
package hierarchy

import (
	"math"
	"slices"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

// Totals is the raw bottom-up sum for one subtree.
type Totals struct {
	Estimate    domain.Duration
	Spent       domain.Duration
	StoryPoints float64
}

// Progress is the chart-ready roll-up for a container.
type Progress struct {
	Key             string     `json:"key"`
	Summary         string     `json:"summary"`
	EstimateHours   float64    `json:"estimateHours"`
	SpentHours      float64    `json:"spentHours"`
	StoryPoints     float64    `json:"storyPoints"`
	ProgressPercent int        `json:"progressPercent"`
	Overrun         bool       `json:"overrun"`
	ChildCount      int        `json:"childCount"`
	Epics           []Progress `json:"epics,omitempty"`
}

// ZeroProgress is the degraded result returned when a container cannot be
// resolved: zero-filled, with an empty (non-nil) epic list.
func ZeroProgress(key string) Progress {
	return Progress{Key: key, Epics: []Progress{}}
}

// BuildTree links a flat fetch result into an explicit tree rooted at
// rootKey. Items whose parent is absent from the list are ignored unless
// they are the root. Children are ordered by key so repeated builds over
// the same fetch are identical.
func BuildTree(items []domain.WorkItem, rootKey string) *domain.WorkItem {
	byKey := make(map[string]*domain.WorkItem, len(items))
	for i := range items {
		item := items[i]
		item.Children = nil
		byKey[item.Key] = &item
	}

	root, ok := byKey[rootKey]
	if !ok {
		return nil
	}

	for _, item := range byKey {
		if item.Key == rootKey || item.ParentKey == "" {
			continue
		}
		if parent, ok := byKey[item.ParentKey]; ok {
			parent.Children = append(parent.Children, item)
		}
	}
	for _, item := range byKey {
		slices.SortFunc(item.Children, func(a, b *domain.WorkItem) int {
			if a.Key < b.Key {
				return -1
			}
			if a.Key > b.Key {
				return 1
			}
			return 0
		})
	}
	return root
}

// Sum performs the bottom-up roll-up: total(node) = own(node) + sum of
// child totals. It is pure over the tree, so aggregating the same tree
// twice yields identical totals.
func Sum(node *domain.WorkItem) Totals {
	if node == nil {
		return Totals{}
	}
	t := Totals{
		Estimate:    node.OwnEstimate(),
		Spent:       node.OwnSpent(),
		StoryPoints: node.Points(),
	}
	for _, child := range node.Children {
		ct := Sum(child)
		t.Estimate = t.Estimate.Add(ct.Estimate)
		t.Spent = t.Spent.Add(ct.Spent)
		t.StoryPoints += ct.StoryPoints
	}
	return t
}

// Aggregate computes the progress view for a container node. For a legend
// (children that are themselves containers) the per-epic breakdown is
// included; a leaf epic reports only its own roll-up.
func Aggregate(node *domain.WorkItem) Progress {
	if node == nil {
		return ZeroProgress("")
	}

	totals := Sum(node)
	p := progressFrom(node, totals)
	p.Epics = []Progress{}
	for _, child := range node.Children {
		if child.HasChildren() {
			p.Epics = append(p.Epics, progressFrom(child, Sum(child)))
		}
	}
	return p
}

func progressFrom(node *domain.WorkItem, t Totals) Progress {
	return Progress{
		Key:             node.Key,
		Summary:         node.Summary,
		EstimateHours:   round2(t.Estimate.Hours()),
		SpentHours:      round2(t.Spent.Hours()),
		StoryPoints:     t.StoryPoints,
		ProgressPercent: progressPercent(t.Spent, t.Estimate),
		Overrun:         !t.Estimate.IsZero() && t.Spent.GreaterThan(t.Estimate),
		ChildCount:      len(node.Children),
	}
}

// progressPercent is spent over estimate capped at 100, 0 for a zero
// estimate.
func progressPercent(spent, estimate domain.Duration) int {
	if estimate.IsZero() {
		return 0
	}
	pct := int(math.Round(float64(spent.Seconds()) / float64(estimate.Seconds()) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
