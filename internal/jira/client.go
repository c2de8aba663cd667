package jira

import (
	"context"
	"time"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

// Board is the minimal board surface the aggregators need.
type Board struct {
	ID         int64
	Name       string
	ProjectKey string
}

// BoardConfiguration exposes the saved filter backing a board, when one
// exists.
type BoardConfiguration struct {
	BoardID  int64
	FilterID string
}

// SearchResult is one page-complete search outcome.
type SearchResult struct {
	Items []domain.WorkItem
	Total int
}

// Client is the raw data-access contract against the ticketing source.
// Implementations paginate searches internally to completion; callers
// never see partial pages.
type Client interface {
	FetchWorklogs(ctx context.Context, itemKey string) ([]domain.TimeEntry, error)
	SearchItems(ctx context.Context, query string, fields []string, pageSize int) (SearchResult, error)
	GetBoard(ctx context.Context, boardID int64) (Board, error)
	GetBoardConfiguration(ctx context.Context, boardID int64) (BoardConfiguration, error)
	GetSavedFilterQuery(ctx context.Context, filterID string) (string, error)
	GetSprintsForBoard(ctx context.Context, boardID int64, state domain.SprintState) ([]domain.Sprint, error)
}

// Config holds the connection settings for the source.
type Config struct {
	BaseURL string

	// Personal Access Token, preferred over cookies when set.
	Token string

	// Data Center session cookies for deployments without PAT support.
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Minimum delay between search requests against the rate-limited
	// source. Metadata lookups (board, filter) are allowed to burst.
	RequestDelay time.Duration

	Fields FieldConfig
}

// FieldConfig names the custom field identifiers of the deployment,
// resolved once at construction instead of deep inside call chains.
type FieldConfig struct {
	StoryPoints string
	EpicLink    string
	Team        string
	Legend      string
}

// DefaultFieldConfig carries the common Jira Cloud identifiers.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		StoryPoints: "customfield_10016",
		EpicLink:    "customfield_10014",
		Team:        "customfield_10001",
		Legend:      "customfield_10020",
	}
}

// NewClient creates the HTTP client for the configured source.
func NewClient(cfg Config) Client {
	return newHTTPClient(cfg)
}
