package jira

import (
	"context"
	"testing"
	"time"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/cache"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

// countingClient records how many times each operation reached the source.
type countingClient struct {
	worklogCalls int
	searchCalls  int
	sprintCalls  int
	boardCalls   int
}

func (c *countingClient) FetchWorklogs(ctx context.Context, itemKey string) ([]domain.TimeEntry, error) {
	c.worklogCalls++
	return []domain.TimeEntry{{ID: "w1", ItemKey: itemKey}}, nil
}

func (c *countingClient) SearchItems(ctx context.Context, query string, fields []string, pageSize int) (SearchResult, error) {
	c.searchCalls++
	return SearchResult{Items: []domain.WorkItem{{Key: "A-1"}}, Total: 1}, nil
}

func (c *countingClient) GetBoard(ctx context.Context, boardID int64) (Board, error) {
	c.boardCalls++
	return Board{ID: boardID, Name: "Board", ProjectKey: "PROJ"}, nil
}

func (c *countingClient) GetBoardConfiguration(ctx context.Context, boardID int64) (BoardConfiguration, error) {
	return BoardConfiguration{BoardID: boardID}, nil
}

func (c *countingClient) GetSavedFilterQuery(ctx context.Context, filterID string) (string, error) {
	return "project = PROJ", nil
}

func (c *countingClient) GetSprintsForBoard(ctx context.Context, boardID int64, state domain.SprintState) ([]domain.Sprint, error) {
	c.sprintCalls++
	return []domain.Sprint{{ID: 1, BoardID: boardID, State: state}}, nil
}

func newCached(t *testing.T, ttl TTLConfig) (*CachedClient, *countingClient, *cache.Store) {
	t.Helper()
	inner := &countingClient{}
	store := cache.New(time.Hour)
	t.Cleanup(store.Close)
	return NewCachedClient(inner, store, ttl), inner, store
}

func TestCachedWorklogsHitSourceOnce(t *testing.T) {
	c, inner, _ := newCached(t, DefaultTTLs())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entries, err := c.FetchWorklogs(ctx, "PROJ-1")
		if err != nil || len(entries) != 1 {
			t.Fatalf("Unexpected result: %v %v", entries, err)
		}
	}
	if inner.worklogCalls != 1 {
		t.Fatalf("Expected 1 source call, got %d", inner.worklogCalls)
	}
}

func TestCachedKeysAreArgumentScoped(t *testing.T) {
	c, inner, _ := newCached(t, DefaultTTLs())
	ctx := context.Background()

	_, _ = c.FetchWorklogs(ctx, "PROJ-1")
	_, _ = c.FetchWorklogs(ctx, "PROJ-2")
	if inner.worklogCalls != 2 {
		t.Fatalf("Expected distinct keys per item, got %d calls", inner.worklogCalls)
	}

	_, _ = c.SearchItems(ctx, "project = A", nil, 0)
	_, _ = c.SearchItems(ctx, "project = B", nil, 0)
	_, _ = c.SearchItems(ctx, "project = A", nil, 0)
	if inner.searchCalls != 2 {
		t.Fatalf("Expected 2 search calls, got %d", inner.searchCalls)
	}
}

func TestCachedExpiryFallsThrough(t *testing.T) {
	ttl := TTLConfig{Short: 5 * time.Millisecond, Medium: 5 * time.Millisecond, Long: 5 * time.Millisecond}
	c, inner, _ := newCached(t, ttl)
	ctx := context.Background()

	_, _ = c.GetSprintsForBoard(ctx, 9, domain.SprintActive)
	time.Sleep(15 * time.Millisecond)
	_, _ = c.GetSprintsForBoard(ctx, 9, domain.SprintActive)
	if inner.sprintCalls != 2 {
		t.Fatalf("Expected refetch after TTL, got %d calls", inner.sprintCalls)
	}
}

func TestInvalidatePrefixDropsOneClass(t *testing.T) {
	c, inner, _ := newCached(t, DefaultTTLs())
	ctx := context.Background()

	_, _ = c.FetchWorklogs(ctx, "PROJ-1")
	_, _ = c.GetBoard(ctx, 9)

	if removed := c.Invalidate("worklog:"); removed != 1 {
		t.Fatalf("Expected 1 invalidated, got %d", removed)
	}
	_, _ = c.FetchWorklogs(ctx, "PROJ-1")
	_, _ = c.GetBoard(ctx, 9)
	if inner.worklogCalls != 2 {
		t.Errorf("Expected worklog refetch after invalidation, got %d", inner.worklogCalls)
	}
	if inner.boardCalls != 1 {
		t.Errorf("Expected board entry untouched, got %d calls", inner.boardCalls)
	}
}

func TestClearDropsEverything(t *testing.T) {
	c, inner, _ := newCached(t, DefaultTTLs())
	ctx := context.Background()

	_, _ = c.FetchWorklogs(ctx, "PROJ-1")
	_, _ = c.GetBoard(ctx, 9)
	c.Clear()
	_, _ = c.FetchWorklogs(ctx, "PROJ-1")
	_, _ = c.GetBoard(ctx, 9)

	if inner.worklogCalls != 2 || inner.boardCalls != 2 {
		t.Fatalf("Expected full refetch after clear, got %d/%d", inner.worklogCalls, inner.boardCalls)
	}
}
