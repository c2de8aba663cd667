package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

type httpClient struct {
	cfg    Config
	client *http.Client
	mapper *Mapper

	throttleMu  sync.Mutex
	lastRequest time.Time
}

func newHTTPClient(cfg Config) *httpClient {
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = 500 * time.Millisecond
	}
	return &httpClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		mapper: NewMapper(cfg.Fields),
	}
}

// throttle spaces out search traffic. Metadata requests (board, filter,
// sprint listing) are allowed to burst sequentially so the setup phase is
// not artificially slowed.
func (c *httpClient) throttle(isMetadata bool) {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()
	if isMetadata {
		c.lastRequest = time.Now()
		return
	}
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("throttling source request")
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}

func (c *httpClient) authenticate(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		return
	}

	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
	}
	var pairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built manually: net/http's RFC 6265 validation drops
			// Jira session cookies containing double quotes.
			pairs = append(pairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}
	if len(pairs) > 0 {
		req.Header.Set("Cookie", strings.Join(pairs, "; "))
	}
}

func (c *httpClient) getJSON(ctx context.Context, rawURL string, isMetadata bool, out any) error {
	c.throttle(isMetadata)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	c.authenticate(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("source returned 404 for %s: %w", req.URL.Path, domain.ErrBoardNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("source returned %d for %s: %s", resp.StatusCode, req.URL.Path, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SearchItems runs a search and paginates internally to completion.
func (c *httpClient) SearchItems(ctx context.Context, query string, fields []string, pageSize int) (SearchResult, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var result SearchResult
	startAt := 0
	for {
		params := url.Values{}
		params.Set("jql", query)
		params.Set("startAt", fmt.Sprintf("%d", startAt))
		params.Set("maxResults", fmt.Sprintf("%d", pageSize))
		if len(fields) > 0 {
			params.Set("fields", strings.Join(fields, ","))
		}

		var page searchResponse
		searchURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.cfg.BaseURL, params.Encode())
		log.Debug().Str("jql", query).Int("startAt", startAt).Msg("searching source")
		if err := c.getJSON(ctx, searchURL, false, &page); err != nil {
			return SearchResult{}, err
		}

		result.Total = page.Total
		for _, dto := range page.Issues {
			result.Items = append(result.Items, c.mapper.MapWorkItem(dto))
		}

		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			break
		}
	}
	return result, nil
}

// FetchWorklogs returns every worklog of an item, paginated to completion.
func (c *httpClient) FetchWorklogs(ctx context.Context, itemKey string) ([]domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	startAt := 0
	for {
		wlURL := fmt.Sprintf("%s/rest/api/2/issue/%s/worklog?startAt=%d&maxResults=100",
			c.cfg.BaseURL, url.PathEscape(itemKey), startAt)

		var page worklogResponse
		if err := c.getJSON(ctx, wlURL, false, &page); err != nil {
			return nil, err
		}
		for _, dto := range page.Worklogs {
			entries = append(entries, c.mapper.MapTimeEntry(dto, itemKey))
		}
		startAt += len(page.Worklogs)
		if startAt >= page.Total || len(page.Worklogs) == 0 {
			break
		}
	}
	return entries, nil
}

func (c *httpClient) GetBoard(ctx context.Context, boardID int64) (Board, error) {
	var dto boardDTO
	boardURL := fmt.Sprintf("%s/rest/agile/1.0/board/%d", c.cfg.BaseURL, boardID)
	if err := c.getJSON(ctx, boardURL, true, &dto); err != nil {
		return Board{}, err
	}
	return Board{ID: dto.ID, Name: dto.Name, ProjectKey: dto.Location.ProjectKey}, nil
}

func (c *httpClient) GetBoardConfiguration(ctx context.Context, boardID int64) (BoardConfiguration, error) {
	var dto boardConfigDTO
	cfgURL := fmt.Sprintf("%s/rest/agile/1.0/board/%d/configuration", c.cfg.BaseURL, boardID)
	if err := c.getJSON(ctx, cfgURL, true, &dto); err != nil {
		return BoardConfiguration{}, err
	}
	return BoardConfiguration{BoardID: boardID, FilterID: dto.Filter.ID}, nil
}

func (c *httpClient) GetSavedFilterQuery(ctx context.Context, filterID string) (string, error) {
	var dto filterDTO
	filterURL := fmt.Sprintf("%s/rest/api/2/filter/%s", c.cfg.BaseURL, url.PathEscape(filterID))
	if err := c.getJSON(ctx, filterURL, true, &dto); err != nil {
		return "", err
	}
	return dto.JQL, nil
}

func (c *httpClient) GetSprintsForBoard(ctx context.Context, boardID int64, state domain.SprintState) ([]domain.Sprint, error) {
	var sprints []domain.Sprint
	startAt := 0
	for {
		params := url.Values{}
		params.Set("startAt", fmt.Sprintf("%d", startAt))
		if state != "" {
			params.Set("state", string(state))
		}
		sprintURL := fmt.Sprintf("%s/rest/agile/1.0/board/%d/sprint?%s", c.cfg.BaseURL, boardID, params.Encode())

		var page sprintResponse
		if err := c.getJSON(ctx, sprintURL, true, &page); err != nil {
			return nil, err
		}
		for _, dto := range page.Values {
			sprints = append(sprints, c.mapper.MapSprint(dto, boardID))
		}
		startAt += len(page.Values)
		if page.IsLast || len(page.Values) == 0 {
			break
		}
	}
	return sprints, nil
}
