package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/jira"
)

type stubClient struct {
	mu           sync.Mutex
	worklogCalls []string
	searchCalls  []string

	worklogs func(itemKey string) ([]domain.TimeEntry, error)
	search   func(jql string) (jira.SearchResult, error)
	sprints  func(boardID int64, state domain.SprintState) ([]domain.Sprint, error)
}

func (s *stubClient) SearchItems(ctx context.Context, query string, fields []string, pageSize int) (jira.SearchResult, error) {
	s.mu.Lock()
	s.searchCalls = append(s.searchCalls, query)
	s.mu.Unlock()
	if s.search == nil {
		return jira.SearchResult{}, nil
	}
	return s.search(query)
}

func (s *stubClient) FetchWorklogs(ctx context.Context, itemKey string) ([]domain.TimeEntry, error) {
	s.mu.Lock()
	s.worklogCalls = append(s.worklogCalls, itemKey)
	s.mu.Unlock()
	if s.worklogs == nil {
		return nil, nil
	}
	return s.worklogs(itemKey)
}

func (s *stubClient) GetBoard(ctx context.Context, boardID int64) (jira.Board, error) {
	return jira.Board{ID: boardID}, nil
}

func (s *stubClient) GetBoardConfiguration(ctx context.Context, boardID int64) (jira.BoardConfiguration, error) {
	return jira.BoardConfiguration{BoardID: boardID}, nil
}

func (s *stubClient) GetSavedFilterQuery(ctx context.Context, filterID string) (string, error) {
	return "", nil
}

func (s *stubClient) GetSprintsForBoard(ctx context.Context, boardID int64, state domain.SprintState) ([]domain.Sprint, error) {
	if s.sprints == nil {
		return nil, nil
	}
	return s.sprints(boardID, state)
}

func newService(c jira.Client) *Service {
	return New(c, nil, jira.FieldConfig{StoryPoints: "customfield_10016"}, nil, zerolog.Nop())
}

func entry(item string, hours float64) domain.TimeEntry {
	return domain.TimeEntry{
		ItemKey:   item,
		Author:    domain.Author{ID: "u1", DisplayName: "User One"},
		TimeSpent: domain.DurationFromHours(hours),
		Started:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func sp(v float64) *float64 { return &v }

func TestWorklogMetricsForItemsAggregatesAcrossItems(t *testing.T) {
	c := &stubClient{
		worklogs: func(key string) ([]domain.TimeEntry, error) {
			return []domain.TimeEntry{entry(key, 2)}, nil
		},
	}
	s := newService(c)

	m, err := s.WorklogMetricsForItems(context.Background(), []string{"PRJ-1", "PRJ-2", "PRJ-3"})
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalTimeSpentHours != 6 {
		t.Errorf("TotalTimeSpentHours = %v, want 6", m.TotalTimeSpentHours)
	}
	if m.UniqueItems != 3 {
		t.Errorf("UniqueItems = %d, want 3", m.UniqueItems)
	}
	if len(c.worklogCalls) != 3 {
		t.Errorf("Expected one fetch per item, got %v", c.worklogCalls)
	}
}

func TestWorklogMetricsForItemsPartialFailure(t *testing.T) {
	c := &stubClient{
		worklogs: func(key string) ([]domain.TimeEntry, error) {
			if key == "PRJ-2" {
				return nil, errors.New("boom")
			}
			return []domain.TimeEntry{entry(key, 1)}, nil
		},
	}
	s := newService(c)

	m, err := s.WorklogMetricsForItems(context.Background(), []string{"PRJ-1", "PRJ-2"})
	if err != nil {
		t.Fatalf("Expected partial success, got %v", err)
	}
	if m.TotalTimeSpentHours != 1 {
		t.Errorf("TotalTimeSpentHours = %v, want 1", m.TotalTimeSpentHours)
	}
}

func TestWorklogMetricsForItemsAllFailed(t *testing.T) {
	c := &stubClient{
		worklogs: func(key string) ([]domain.TimeEntry, error) {
			return nil, errors.New("boom")
		},
	}
	s := newService(c)

	_, err := s.WorklogMetricsForItems(context.Background(), []string{"PRJ-1", "PRJ-2"})
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("Expected ErrSourceUnavailable, got %v", err)
	}
}

func TestWorklogMetricsCarryItemSnapshot(t *testing.T) {
	c := &stubClient{
		search: func(jql string) (jira.SearchResult, error) {
			if !strings.Contains(jql, `key in ("PRJ-1", "PRJ-2")`) {
				t.Errorf("Unexpected snapshot query: %s", jql)
			}
			return jira.SearchResult{Items: []domain.WorkItem{
				{Key: "PRJ-1", Summary: "Checkout flow", Type: "Story", RawStatus: "Done", StoryPoints: sp(5)},
				{Key: "PRJ-2", Summary: "Dependency bumps", Type: "Internal", RawStatus: "En cours"},
			}}, nil
		},
		worklogs: func(key string) ([]domain.TimeEntry, error) {
			if key == "PRJ-1" {
				return []domain.TimeEntry{entry(key, 2)}, nil
			}
			return []domain.TimeEntry{entry(key, 3)}, nil
		},
	}
	s := New(c, nil, jira.FieldConfig{}, []string{"Internal"}, zerolog.Nop())

	m, err := s.WorklogMetricsForItems(context.Background(), []string{"PRJ-1", "PRJ-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.ByType) != 2 {
		t.Fatalf("Expected 2 type rows, got %+v", m.ByType)
	}
	if m.ByType[0].ItemType != "Internal" || m.ByType[0].TotalHours != 3 {
		t.Errorf("Unexpected first type row: %+v", m.ByType[0])
	}
	if m.ByType[1].ItemType != "Story" || m.ByType[1].TotalHours != 2 {
		t.Errorf("Unexpected second type row: %+v", m.ByType[1])
	}
	if m.BillableHours != 2 || m.NonBillableHours != 3 {
		t.Errorf("Billable split = %v/%v, want 2/3", m.BillableHours, m.NonBillableHours)
	}
}

func TestWorklogMetricsForItemsEmptyList(t *testing.T) {
	s := newService(&stubClient{})

	m, err := s.WorklogMetricsForItems(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.ByUser == nil || m.ByDay == nil {
		t.Error("Expected empty metrics with non-nil slices")
	}
}

func TestActiveSprintOverview(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)
	c := &stubClient{
		sprints: func(boardID int64, state domain.SprintState) ([]domain.Sprint, error) {
			if state != domain.SprintActive {
				t.Errorf("Expected active state query, got %s", state)
			}
			return []domain.Sprint{{ID: 7, Name: "Sprint 7", State: domain.SprintActive, Start: &start, End: &end}}, nil
		},
		search: func(jql string) (jira.SearchResult, error) {
			if !strings.Contains(jql, "sprint = 7") {
				t.Errorf("Unexpected sprint query: %s", jql)
			}
			return jira.SearchResult{Items: []domain.WorkItem{
				{Key: "PRJ-1", Type: "Story", Category: domain.CategoryDone, StoryPoints: sp(5)},
				{Key: "PRJ-2", Type: "Story", Category: domain.CategoryInProgress, StoryPoints: sp(3)},
			}}, nil
		},
	}
	s := newService(c)
	s.now = func() time.Time { return start.AddDate(0, 0, 5) }

	ov, err := s.ActiveSprintOverview(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if ov.SprintID != 7 || ov.SprintName != "Sprint 7" {
		t.Errorf("Unexpected sprint identity: %+v", ov)
	}
	if ov.ProgressPercent != 50 {
		t.Errorf("ProgressPercent = %d, want 50", ov.ProgressPercent)
	}
	if ov.Overdue {
		t.Error("Sprint is mid-flight, should not be overdue")
	}
	if ov.Metrics.StatusCounts.Resolved != 1 || ov.Metrics.StatusCounts.InProgress != 1 {
		t.Errorf("Unexpected status counts: %+v", ov.Metrics.StatusCounts)
	}
}

func TestActiveSprintOverviewNoActiveSprint(t *testing.T) {
	s := newService(&stubClient{})

	_, err := s.ActiveSprintOverview(context.Background(), 42)
	if !errors.Is(err, domain.ErrBoardNotFound) {
		t.Fatalf("Expected ErrBoardNotFound, got %v", err)
	}
}

func TestVelocityHistoryForBoard(t *testing.T) {
	itemsBySprint := map[string][]domain.WorkItem{
		"sprint = 1": {
			{Key: "A-1", Category: domain.CategoryDone, StoryPoints: sp(8)},
			{Key: "A-2", Category: domain.CategoryToDo, StoryPoints: sp(2)},
		},
		"sprint = 2": {
			{Key: "A-3", Category: domain.CategoryDone, StoryPoints: sp(10)},
		},
	}
	c := &stubClient{
		sprints: func(boardID int64, state domain.SprintState) ([]domain.Sprint, error) {
			if state != domain.SprintClosed {
				t.Errorf("Expected closed state query, got %s", state)
			}
			return []domain.Sprint{{ID: 1}, {ID: 2}}, nil
		},
		search: func(jql string) (jira.SearchResult, error) {
			return jira.SearchResult{Items: itemsBySprint[jql]}, nil
		},
	}
	s := newService(c)

	h, err := s.VelocityHistoryForBoard(context.Background(), 42, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Sprints) != 2 {
		t.Fatalf("Expected 2 velocity entries, got %d", len(h.Sprints))
	}
	if h.Sprints[0].CommittedPoints != 10 || h.Sprints[0].CompletedPoints != 8 {
		t.Errorf("Sprint 1 velocity = %+v", h.Sprints[0])
	}
	if h.Sprints[1].CompletedPoints != 10 {
		t.Errorf("Sprint 2 velocity = %+v", h.Sprints[1])
	}
	if h.Average != 9 {
		t.Errorf("Average = %v, want 9", h.Average)
	}
}

func TestVelocityHistoryCapsSprintCount(t *testing.T) {
	c := &stubClient{
		sprints: func(boardID int64, state domain.SprintState) ([]domain.Sprint, error) {
			return []domain.Sprint{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}, nil
		},
	}
	s := newService(c)

	h, err := s.VelocityHistoryForBoard(context.Background(), 42, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Sprints) != 2 {
		t.Fatalf("Expected most recent 2 sprints, got %d", len(h.Sprints))
	}
	// Only the last two sprints should be queried.
	for _, q := range c.searchCalls {
		if q == "sprint = 1" || q == "sprint = 2" {
			t.Errorf("Older sprint queried: %s", q)
		}
	}
}

func TestVelocityHistoryFailedSprintContributesZero(t *testing.T) {
	c := &stubClient{
		sprints: func(boardID int64, state domain.SprintState) ([]domain.Sprint, error) {
			return []domain.Sprint{{ID: 1}, {ID: 2}}, nil
		},
		search: func(jql string) (jira.SearchResult, error) {
			if jql == "sprint = 1" {
				return jira.SearchResult{}, errors.New("boom")
			}
			return jira.SearchResult{Items: []domain.WorkItem{
				{Key: "A-1", Category: domain.CategoryDone, StoryPoints: sp(4)},
			}}, nil
		},
	}
	s := newService(c)

	h, err := s.VelocityHistoryForBoard(context.Background(), 42, 6)
	if err != nil {
		t.Fatal(err)
	}
	if h.Sprints[0].CommittedPoints != 0 {
		t.Errorf("Failed sprint should be zero, got %+v", h.Sprints[0])
	}
	if h.Sprints[1].CompletedPoints != 4 {
		t.Errorf("Surviving sprint lost: %+v", h.Sprints[1])
	}
}

func hours(h float64) *domain.Duration {
	d := domain.DurationFromHours(h)
	return &d
}

func TestAggregateHierarchyRollsUpTwoLevels(t *testing.T) {
	c := &stubClient{}
	c.search = func(jql string) (jira.SearchResult, error) {
		switch {
		case strings.Contains(jql, `key = "LEG-1"`):
			return jira.SearchResult{Items: []domain.WorkItem{{Key: "LEG-1", Summary: "Legend", Type: "Legend"}}}, nil
		case strings.Contains(jql, `"LEG-1"`):
			return jira.SearchResult{Items: []domain.WorkItem{
				{Key: "EPIC-1", Type: "Epic", ParentKey: "LEG-1"},
				{Key: "EPIC-2", Type: "Epic", ParentKey: "LEG-1"},
			}}, nil
		case strings.Contains(jql, `"EPIC-1"`):
			return jira.SearchResult{Items: []domain.WorkItem{
				{Key: "ST-1", Type: "Story", ParentKey: "EPIC-1", Estimate: hours(8), Spent: hours(4), StoryPoints: sp(5)},
			}}, nil
		case strings.Contains(jql, `"EPIC-2"`):
			return jira.SearchResult{Items: []domain.WorkItem{
				{Key: "ST-2", Type: "Story", ParentKey: "EPIC-2", Estimate: hours(16), Spent: hours(2), StoryPoints: sp(3)},
			}}, nil
		}
		return jira.SearchResult{}, nil
	}
	s := newService(c)

	p, err := s.AggregateHierarchy(context.Background(), "LEG-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.EstimateHours != 24 || p.SpentHours != 6 {
		t.Errorf("Roll-up = est %v spent %v, want 24 and 6", p.EstimateHours, p.SpentHours)
	}
	if p.StoryPoints != 8 {
		t.Errorf("StoryPoints = %v, want 8", p.StoryPoints)
	}
	if len(p.Epics) != 2 {
		t.Fatalf("Expected 2 epic breakdowns, got %d", len(p.Epics))
	}
	if p.Epics[0].Key != "EPIC-1" || p.Epics[0].EstimateHours != 8 {
		t.Errorf("Epic breakdown mismatch: %+v", p.Epics[0])
	}
}

func TestAggregateHierarchyLeavesSharedResultsUntouched(t *testing.T) {
	shared := []domain.WorkItem{
		{Key: "ST-1", Type: "Story", Estimate: hours(8)},
	}
	c := &stubClient{}
	c.search = func(jql string) (jira.SearchResult, error) {
		switch {
		case strings.Contains(jql, `key = "EPIC-1"`):
			return jira.SearchResult{Items: []domain.WorkItem{{Key: "EPIC-1", Type: "Epic"}}}, nil
		case strings.Contains(jql, `"EPIC-1"`):
			// Same backing array on every call, as a cache serves it.
			return jira.SearchResult{Items: shared}, nil
		}
		return jira.SearchResult{}, nil
	}
	s := newService(c)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AggregateHierarchy(context.Background(), "EPIC-1"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if shared[0].ParentKey != "" {
		t.Fatalf("Shared search result mutated: ParentKey = %q", shared[0].ParentKey)
	}
}

func TestAggregateHierarchyUnresolvableRootDegrades(t *testing.T) {
	c := &stubClient{
		search: func(jql string) (jira.SearchResult, error) {
			return jira.SearchResult{}, errors.New("boom")
		},
	}
	s := newService(c)

	p, err := s.AggregateHierarchy(context.Background(), "LEG-404")
	if err != nil {
		t.Fatalf("Expected degraded result, got error %v", err)
	}
	if p.Key != "LEG-404" || p.EstimateHours != 0 {
		t.Errorf("Expected zero-filled result, got %+v", p)
	}
	if p.Epics == nil || len(p.Epics) != 0 {
		t.Errorf("Expected empty epic list, got %v", p.Epics)
	}
}

func TestItemFieldsIncludeConfiguredCustomFields(t *testing.T) {
	s := New(&stubClient{}, nil, jira.FieldConfig{
		StoryPoints: "customfield_10016",
		EpicLink:    "customfield_10014",
		Team:        "customfield_10001",
		Legend:      "customfield_10020",
	}, nil, zerolog.Nop())

	fields := s.itemFields()
	joined := strings.Join(fields, ",")
	for _, want := range []string{"customfield_10016", "customfield_10014", "customfield_10001", "customfield_10020", "summary", "parent"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Field set missing %s: %v", want, fields)
		}
	}
}
