package jira

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/cache"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

// TTLConfig carries the cache lifetime per operation class. Sprint views
// are the most volatile, ranged searches sit in the middle, and per-issue
// plus board metadata lookups change least often.
type TTLConfig struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// DefaultTTLs are the production lifetimes.
func DefaultTTLs() TTLConfig {
	return TTLConfig{
		Short:  2 * time.Minute,
		Medium: 5 * time.Minute,
		Long:   10 * time.Minute,
	}
}

// CachedClient decorates a raw Client with the time-bounded cache. Keys
// are the operation name plus the canonicized argument tuple, so prefix
// invalidation can target one operation class at a time. Concurrent
// misses on one key may both hit the source; reads are idempotent so the
// last writer wins harmlessly.
type CachedClient struct {
	inner Client
	store *cache.Store
	ttl   TTLConfig
}

// NewCachedClient wraps inner with store. The store is injected so tests
// and parallel aggregations can supply isolated instances.
func NewCachedClient(inner Client, store *cache.Store, ttl TTLConfig) *CachedClient {
	return &CachedClient{inner: inner, store: store, ttl: ttl}
}

func (c *CachedClient) FetchWorklogs(ctx context.Context, itemKey string) ([]domain.TimeEntry, error) {
	key := "worklog:" + itemKey
	if v, ok := c.store.Get(key); ok {
		return v.([]domain.TimeEntry), nil
	}
	entries, err := c.inner.FetchWorklogs(ctx, itemKey)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, entries, c.ttl.Long)
	return entries, nil
}

func (c *CachedClient) SearchItems(ctx context.Context, query string, fields []string, pageSize int) (SearchResult, error) {
	key := fmt.Sprintf("search:%s:%s:%d", query, strings.Join(fields, ","), pageSize)
	if v, ok := c.store.Get(key); ok {
		return v.(SearchResult), nil
	}
	res, err := c.inner.SearchItems(ctx, query, fields, pageSize)
	if err != nil {
		return SearchResult{}, err
	}
	c.store.Set(key, res, c.ttl.Medium)
	return res, nil
}

func (c *CachedClient) GetBoard(ctx context.Context, boardID int64) (Board, error) {
	key := fmt.Sprintf("board:%d", boardID)
	if v, ok := c.store.Get(key); ok {
		return v.(Board), nil
	}
	board, err := c.inner.GetBoard(ctx, boardID)
	if err != nil {
		return Board{}, err
	}
	c.store.Set(key, board, c.ttl.Long)
	return board, nil
}

func (c *CachedClient) GetBoardConfiguration(ctx context.Context, boardID int64) (BoardConfiguration, error) {
	key := fmt.Sprintf("boardconfig:%d", boardID)
	if v, ok := c.store.Get(key); ok {
		return v.(BoardConfiguration), nil
	}
	cfg, err := c.inner.GetBoardConfiguration(ctx, boardID)
	if err != nil {
		return BoardConfiguration{}, err
	}
	c.store.Set(key, cfg, c.ttl.Long)
	return cfg, nil
}

func (c *CachedClient) GetSavedFilterQuery(ctx context.Context, filterID string) (string, error) {
	key := "filter:" + filterID
	if v, ok := c.store.Get(key); ok {
		return v.(string), nil
	}
	jql, err := c.inner.GetSavedFilterQuery(ctx, filterID)
	if err != nil {
		return "", err
	}
	c.store.Set(key, jql, c.ttl.Long)
	return jql, nil
}

func (c *CachedClient) GetSprintsForBoard(ctx context.Context, boardID int64, state domain.SprintState) ([]domain.Sprint, error) {
	key := fmt.Sprintf("sprints:%d:%s", boardID, state)
	if v, ok := c.store.Get(key); ok {
		return v.([]domain.Sprint), nil
	}
	sprints, err := c.inner.GetSprintsForBoard(ctx, boardID, state)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, sprints, c.ttl.Short)
	return sprints, nil
}

// Invalidate drops every cached result whose key starts with prefix.
func (c *CachedClient) Invalidate(prefix string) int {
	return c.store.Invalidate(prefix)
}

// Clear drops every cached result. Used by the scheduled resync.
func (c *CachedClient) Clear() {
	c.store.Clear()
}
