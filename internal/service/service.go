// Package service is the engine facade the route layer talks to. It wires
// the cached source client into the pure calculators and owns the
// concurrency of multi-fetch aggregations.
package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/hierarchy"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/jira"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/metrics"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/resolved"
)

// Batch widths per call cost: board and project searches are expensive,
// epic child fetches moderate, worklog fetches cheap.
const (
	boardBatchWidth   = 3
	epicBatchWidth    = 5
	worklogBatchWidth = 10
)

var baseItemFields = []string{
	"summary", "issuetype", "status", "resolutiondate", "updated",
	"parent", "timeoriginalestimate", "timespent",
	"aggregatetimeoriginalestimate", "aggregatetimespent",
}

// SprintOverview pairs sprint metadata with its computed metrics.
type SprintOverview struct {
	SprintID        int64                 `json:"sprintId"`
	SprintName      string                `json:"sprintName"`
	State           domain.SprintState    `json:"state"`
	ProgressPercent int                   `json:"progressPercent"`
	Overdue         bool                  `json:"overdue"`
	RemainingDays   int                   `json:"remainingDays"`
	Metrics         metrics.SprintMetrics `json:"metrics"`
}

// VelocityHistory is the per-board velocity roll-up.
type VelocityHistory struct {
	Sprints []metrics.VelocityMetrics `json:"sprints"`
	Average float64                   `json:"average"`
	Trend   metrics.TrendDirection    `json:"trend"`
}

// Service exposes the engine operations. The cache lives inside the
// injected client decorator; the service itself is stateless.
type Service struct {
	client      jira.Client
	dispatcher  *resolved.Dispatcher
	fields      jira.FieldConfig
	nonBillable map[string]bool
	log         zerolog.Logger
	now         func() time.Time
}

// New builds the facade. The dispatcher is injected pre-configured with
// the board list so the service stays ignorant of chart concerns.
// nonBillableTypes lists the item types whose logged time is not billed;
// everything else counts as billable.
func New(client jira.Client, dispatcher *resolved.Dispatcher, fields jira.FieldConfig, nonBillableTypes []string, log zerolog.Logger) *Service {
	nonBillable := make(map[string]bool, len(nonBillableTypes))
	for _, t := range nonBillableTypes {
		nonBillable[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Service{
		client:      client,
		dispatcher:  dispatcher,
		fields:      fields,
		nonBillable: nonBillable,
		log:         log,
		now:         time.Now,
	}
}

// ComputeWorklogMetrics aggregates already-fetched entries.
func (s *Service) ComputeWorklogMetrics(entries []domain.TimeEntry) metrics.WorklogMetrics {
	return metrics.ComputeWorklogMetrics(entries)
}

// WorklogMetricsForItems fetches the worklogs of every listed item
// concurrently and aggregates them. Each entry is stamped with a snapshot
// of its owning item (summary, type, status, points) plus the billable
// flag before aggregation. A failed fetch contributes zero entries; the
// call errors only when every fetch failed.
func (s *Service) WorklogMetricsForItems(ctx context.Context, itemKeys []string) (metrics.WorklogMetrics, error) {
	if len(itemKeys) == 0 {
		return metrics.EmptyWorklogMetrics(), nil
	}

	items := s.itemSnapshots(ctx, itemKeys)

	batches := make([][]domain.TimeEntry, len(itemKeys))
	errs := make([]error, len(itemKeys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(worklogBatchWidth)
	for i, key := range itemKeys {
		g.Go(func() error {
			entries, err := s.client.FetchWorklogs(gctx, key)
			if err != nil {
				s.log.Warn().Err(err).Str("item", key).Msg("worklog fetch failed")
				errs[i] = err
				return nil
			}
			batches[i] = entries
			return nil
		})
	}
	_ = g.Wait()

	var all []domain.TimeEntry
	failures := 0
	for i := range batches {
		if errs[i] != nil {
			failures++
			continue
		}
		for _, e := range batches[i] {
			all = append(all, s.stampEntry(e, items))
		}
	}
	if failures == len(itemKeys) {
		return metrics.WorklogMetrics{}, domain.ErrSourceUnavailable
	}
	return metrics.ComputeWorklogMetrics(all), nil
}

// itemSnapshots fetches the owning items of a worklog aggregation in one
// search. Enrichment is best effort: on failure the entries aggregate
// without their item snapshot instead of failing the whole request.
func (s *Service) itemSnapshots(ctx context.Context, itemKeys []string) map[string]domain.WorkItem {
	quoted := make([]string, len(itemKeys))
	for i, key := range itemKeys {
		quoted[i] = fmt.Sprintf("%q", key)
	}
	jql := fmt.Sprintf("key in (%s)", strings.Join(quoted, ", "))
	res, err := s.client.SearchItems(ctx, jql, s.itemFields(), 0)
	if err != nil {
		s.log.Warn().Err(err).Msg("worklog item snapshot fetch failed")
		return nil
	}
	items := make(map[string]domain.WorkItem, len(res.Items))
	for _, item := range res.Items {
		items[item.Key] = item
	}
	return items
}

// stampEntry copies the owning item snapshot onto an entry and resolves
// its billable flag from the configured non-billable type set.
func (s *Service) stampEntry(e domain.TimeEntry, items map[string]domain.WorkItem) domain.TimeEntry {
	if item, ok := items[e.ItemKey]; ok {
		e.ItemSummary = item.Summary
		e.ItemType = item.Type
		e.ItemStatus = item.RawStatus
		e.ItemPoints = item.StoryPoints
	}
	if s.nonBillable[strings.ToLower(e.ItemType)] {
		return e.MarkNonBillable()
	}
	return e.MarkBillable()
}

// ComputeSprintMetrics aggregates already-fetched items.
func (s *Service) ComputeSprintMetrics(items []domain.WorkItem) metrics.SprintMetrics {
	return metrics.ComputeSprintMetrics(items)
}

// ActiveSprintOverview computes the live view of a board's active sprint.
func (s *Service) ActiveSprintOverview(ctx context.Context, boardID int64) (SprintOverview, error) {
	sprints, err := s.client.GetSprintsForBoard(ctx, boardID, domain.SprintActive)
	if err != nil {
		return SprintOverview{}, err
	}
	if len(sprints) == 0 {
		return SprintOverview{}, fmt.Errorf("board %d has no active sprint: %w", boardID, domain.ErrBoardNotFound)
	}
	sprint := sprints[0]

	items, err := s.sprintItems(ctx, sprint.ID)
	if err != nil {
		return SprintOverview{}, err
	}

	now := s.now()
	return SprintOverview{
		SprintID:        sprint.ID,
		SprintName:      sprint.Name,
		State:           sprint.State,
		ProgressPercent: sprint.ProgressPercent(now),
		Overdue:         sprint.Overdue(now),
		RemainingDays:   sprint.RemainingDays(now),
		Metrics:         metrics.ComputeSprintMetrics(items),
	}, nil
}

// ComputeVelocity, AverageVelocity and VelocityTrend re-expose the pure
// calculators for callers that already hold the numbers.
func (s *Service) ComputeVelocity(committed, completed float64) metrics.VelocityMetrics {
	return metrics.ComputeVelocity(committed, completed)
}

func (s *Service) AverageVelocity(velocities []metrics.VelocityMetrics) float64 {
	return metrics.AverageVelocity(velocities)
}

func (s *Service) VelocityTrend(velocities []metrics.VelocityMetrics) metrics.TrendDirection {
	return metrics.VelocityTrend(velocities)
}

// VelocityHistoryForBoard derives committed-vs-completed per closed
// sprint of a board, oldest first, capped at maxSprints. Sprint item
// fetches run concurrently; a failed sprint contributes a zero entry.
func (s *Service) VelocityHistoryForBoard(ctx context.Context, boardID int64, maxSprints int) (VelocityHistory, error) {
	if maxSprints <= 0 {
		maxSprints = 6
	}
	sprints, err := s.client.GetSprintsForBoard(ctx, boardID, domain.SprintClosed)
	if err != nil {
		return VelocityHistory{}, err
	}
	if len(sprints) > maxSprints {
		sprints = sprints[len(sprints)-maxSprints:]
	}

	velocities := make([]metrics.VelocityMetrics, len(sprints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(boardBatchWidth)
	for i, sprint := range sprints {
		g.Go(func() error {
			items, err := s.sprintItems(gctx, sprint.ID)
			if err != nil {
				s.log.Warn().Err(err).Int64("sprint", sprint.ID).Msg("velocity: sprint fetch failed")
				velocities[i] = metrics.VelocityMetrics{}
				return nil
			}
			committed, completed := 0.0, 0.0
			for j := range items {
				pts := items[j].Points()
				committed += pts
				if items[j].Category == domain.CategoryDone {
					completed += pts
				}
			}
			velocities[i] = metrics.ComputeVelocity(committed, completed)
			return nil
		})
	}
	_ = g.Wait()

	return VelocityHistory{
		Sprints: velocities,
		Average: metrics.AverageVelocity(velocities),
		Trend:   metrics.VelocityTrend(velocities),
	}, nil
}

// AggregateHierarchy rolls up estimate, spent and points under rootKey.
// The full subtree is fetched as flat lists (container children in
// parallel batches), linked into an explicit tree once, then summed
// bottom-up. An unresolvable root degrades to a zero-filled result
// instead of failing the request.
func (s *Service) AggregateHierarchy(ctx context.Context, rootKey string) (hierarchy.Progress, error) {
	rootRes, err := s.client.SearchItems(ctx, fmt.Sprintf("key = %q", rootKey), s.itemFields(), 0)
	if err != nil || len(rootRes.Items) == 0 {
		s.log.Warn().Err(err).Str("root", rootKey).Msg("hierarchy: root not resolvable, returning zero result")
		return hierarchy.ZeroProgress(rootKey), nil
	}

	items := []domain.WorkItem{rootRes.Items[0]}
	children, err := s.childrenOf(ctx, rootKey)
	if err != nil {
		s.log.Warn().Err(err).Str("root", rootKey).Msg("hierarchy: child fetch failed, aggregating root only")
	} else {
		items = append(items, children...)

		// Second level: each container child may have its own children
		// (legend -> epic -> story). Fetched in bounded batches.
		grandchildren := make([][]domain.WorkItem, len(children))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(epicBatchWidth)
		for i, child := range children {
			g.Go(func() error {
				kids, err := s.childrenOf(gctx, child.Key)
				if err != nil {
					s.log.Warn().Err(err).Str("item", child.Key).Msg("hierarchy: nested child fetch failed")
					return nil
				}
				grandchildren[i] = kids
				return nil
			})
		}
		_ = g.Wait()
		for _, kids := range grandchildren {
			items = append(items, kids...)
		}
	}

	root := hierarchy.BuildTree(items, rootKey)
	return hierarchy.Aggregate(root), nil
}

// childrenOf fetches direct children, covering both subtask parents and
// epic links. Children already carrying the right ParentKey pass through;
// epic-linked items get it forced to the queried parent. The result slice
// may be shared with the cache, so items are cloned before the patch.
func (s *Service) childrenOf(ctx context.Context, parentKey string) ([]domain.WorkItem, error) {
	jql := fmt.Sprintf("parent = %q OR \"epic link\" = %q", parentKey, parentKey)
	res, err := s.client.SearchItems(ctx, jql, s.itemFields(), 0)
	if err != nil {
		return nil, err
	}
	items := slices.Clone(res.Items)
	for i := range items {
		if items[i].ParentKey == "" {
			items[i].ParentKey = parentKey
		}
	}
	return items, nil
}

// ComputeResolvedByDay delegates to the dispatcher.
func (s *Service) ComputeResolvedByDay(ctx context.Context, from, to time.Time, itemTypeFilter string) (resolved.Result, error) {
	return s.dispatcher.ComputeResolvedByDay(ctx, from, to, itemTypeFilter)
}

// itemFields is the request field set, extended with the deployment's
// custom field identifiers.
func (s *Service) itemFields() []string {
	fields := append([]string{}, baseItemFields...)
	for _, f := range []string{s.fields.StoryPoints, s.fields.EpicLink, s.fields.Team, s.fields.Legend} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func (s *Service) sprintItems(ctx context.Context, sprintID int64) ([]domain.WorkItem, error) {
	jql := fmt.Sprintf("sprint = %d", sprintID)
	res, err := s.client.SearchItems(ctx, jql, s.itemFields(), 0)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}
