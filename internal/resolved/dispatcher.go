// Package resolved builds per-day, per-board counts of resolved items
// over a date range. Board-level filters at the source are known to
// exclude resolved items, so the dispatcher queries around them: by
// project when a resolution filter is configured, by board saved filter
// with a status predicate otherwise.
package resolved

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/jira"
)

// UnattributedKey is the synthetic bucket for items whose team maps to no
// configured board.
const UnattributedKey = "unattributed"

// searchFields is the field set every dispatch query requests.
var searchFields = []string{"summary", "issuetype", "status", "resolutiondate", "updated"}

// fallbackPalette provides stable colors for boards that configure none.
var fallbackPalette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

// BoardSpec is one configured dashboard column.
type BoardSpec struct {
	ID         int64
	Name       string
	TeamName   string
	ProjectKey string
	Color      string
}

// Filter selects the resolved predicate. When ResolutionNames or
// ResolutionIDs is non-empty the dispatcher runs in resolution mode over
// the resolution-date window; otherwise it falls back to status mode over
// the updated-date window. The mode is global per call, never per board.
type Filter struct {
	ResolutionNames []string
	ResolutionIDs   []string
	ResolvedStatus  string
}

// resolutionMode reports whether an explicit resolution filter is set.
func (f Filter) resolutionMode() bool {
	return len(f.ResolutionNames) > 0 || len(f.ResolutionIDs) > 0
}

// DayRow is one calendar day of the chart: the date plus one count per
// board key (board id as string, or the unattributed bucket).
type DayRow struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

// BoardInfo describes one chart series.
type BoardInfo struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Result is the chart-ready output.
type Result struct {
	ByDay  []DayRow    `json:"byDay"`
	Boards []BoardInfo `json:"boards"`
}

// Dispatcher runs the partitioned queries and folds results into day
// buckets.
type Dispatcher struct {
	client     jira.Client
	boards     []BoardSpec
	filter     Filter
	teamField  string
	batchWidth int
	log        zerolog.Logger
}

// New builds a dispatcher over the configured boards. teamField is the
// custom field identifier carrying the team attribute; batchWidth bounds
// concurrent queries against the rate-limited source.
func New(client jira.Client, boards []BoardSpec, filter Filter, teamField string, batchWidth int, log zerolog.Logger) *Dispatcher {
	if batchWidth <= 0 {
		batchWidth = 3
	}
	return &Dispatcher{client: client, boards: boards, filter: filter, teamField: teamField, batchWidth: batchWidth, log: log}
}

// ComputeResolvedByDay counts items resolved on each day of [from, to],
// attributed per board. A failed board or project query contributes zero
// and is logged; the call fails only when every query failed.
func (d *Dispatcher) ComputeResolvedByDay(ctx context.Context, from, to time.Time, itemTypeFilter string) (Result, error) {
	dateRange, err := domain.NewDateRange(from, to)
	if err != nil {
		return Result{}, err
	}

	buckets := newDayBuckets(dateRange, d.boards)

	var fetched [][]attributedItem
	var failures int
	if d.filter.resolutionMode() {
		fetched, failures = d.dispatchByProject(ctx, dateRange, itemTypeFilter)
	} else {
		fetched, failures = d.dispatchByBoard(ctx, dateRange, itemTypeFilter)
	}

	if failures > 0 && len(fetched) == 0 {
		return Result{}, domain.ErrSourceUnavailable
	}

	seen := map[string]bool{}
	for _, batch := range fetched {
		for _, ai := range batch {
			if seen[ai.item.Key] {
				continue
			}
			seen[ai.item.Key] = true
			buckets.add(ai)
		}
	}

	return buckets.result(), nil
}

type attributedItem struct {
	item     domain.WorkItem
	boardKey string
}

// dispatchByProject is resolution mode: one query per distinct project,
// with board attribution read from the team attribute of each result.
func (d *Dispatcher) dispatchByProject(ctx context.Context, r domain.DateRange, typeFilter string) ([][]attributedItem, int) {
	projects := d.distinctProjects(ctx)
	teamIndex := d.teamIndex()

	results := make([][]attributedItem, len(projects))
	errors := make([]error, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.batchWidth)
	for i, project := range projects {
		g.Go(func() error {
			jql := d.resolutionJQL(project, r, typeFilter)
			fields := searchFields
			if d.teamField != "" {
				fields = append(append([]string{}, searchFields...), d.teamField)
			}
			res, err := d.client.SearchItems(gctx, jql, fields, 0)
			if err != nil {
				d.log.Warn().Err(err).Str("project", project).Msg("resolved-by-day: project query failed")
				errors[i] = err
				return nil
			}
			batch := make([]attributedItem, 0, len(res.Items))
			for _, item := range res.Items {
				key := UnattributedKey
				if mapped, ok := teamIndex[normalizeTeam(item.Team)]; ok {
					key = mapped
				}
				batch = append(batch, attributedItem{item: item, boardKey: key})
			}
			results[i] = batch
			return nil
		})
	}
	_ = g.Wait()

	return collect(results, errors)
}

// dispatchByBoard is status mode: one query per board, preferring the
// board's saved filter with the resolved predicate appended, falling back
// to a project query when the filter is missing, empty, or broken.
func (d *Dispatcher) dispatchByBoard(ctx context.Context, r domain.DateRange, typeFilter string) ([][]attributedItem, int) {
	results := make([][]attributedItem, len(d.boards))
	errors := make([]error, len(d.boards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.batchWidth)
	for i, board := range d.boards {
		g.Go(func() error {
			items, err := d.fetchBoardResolved(gctx, board, r, typeFilter)
			if err != nil {
				d.log.Warn().Err(err).Int64("board", board.ID).Msg("resolved-by-day: board query failed")
				errors[i] = err
				return nil
			}
			key := fmt.Sprintf("%d", board.ID)
			batch := make([]attributedItem, 0, len(items))
			for _, item := range items {
				batch = append(batch, attributedItem{item: item, boardKey: key})
			}
			results[i] = batch
			return nil
		})
	}
	_ = g.Wait()

	return collect(results, errors)
}

func (d *Dispatcher) fetchBoardResolved(ctx context.Context, board BoardSpec, r domain.DateRange, typeFilter string) ([]domain.WorkItem, error) {
	predicate := d.statusPredicate(r, typeFilter)

	filterJQL, err := d.boardFilterJQL(ctx, board.ID)
	if err != nil {
		d.log.Debug().Err(err).Int64("board", board.ID).Msg("resolved-by-day: no usable board filter")
	}
	if filterJQL != "" {
		jql := fmt.Sprintf("(%s) AND %s", stripOrderBy(filterJQL), predicate)
		res, err := d.client.SearchItems(ctx, jql, searchFields, 0)
		if err == nil && len(res.Items) > 0 {
			return res.Items, nil
		}
		if err != nil {
			d.log.Warn().Err(err).Int64("board", board.ID).Msg("resolved-by-day: filter query failed, retrying with project fallback")
		}
	}

	project, err := d.boardProject(ctx, board)
	if err != nil {
		return nil, err
	}
	jql := fmt.Sprintf("project = %q AND %s", project, predicate)
	res, err := d.client.SearchItems(ctx, jql, searchFields, 0)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (d *Dispatcher) resolutionJQL(project string, r domain.DateRange, typeFilter string) string {
	var predicate string
	if len(d.filter.ResolutionIDs) > 0 {
		predicate = fmt.Sprintf("resolution in (%s)", strings.Join(d.filter.ResolutionIDs, ", "))
	} else {
		quoted := make([]string, len(d.filter.ResolutionNames))
		for i, name := range d.filter.ResolutionNames {
			quoted[i] = fmt.Sprintf("%q", name)
		}
		predicate = fmt.Sprintf("resolution in (%s)", strings.Join(quoted, ", "))
	}
	jql := fmt.Sprintf("project = %q AND %s AND resolutiondate >= %q AND resolutiondate <= %q",
		project, predicate, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	if typeFilter != "" {
		jql += fmt.Sprintf(" AND issuetype = %q", typeFilter)
	}
	return jql
}

func (d *Dispatcher) statusPredicate(r domain.DateRange, typeFilter string) string {
	status := d.filter.ResolvedStatus
	if status == "" {
		status = "Done"
	}
	predicate := fmt.Sprintf("status = %q AND updated >= %q AND updated <= %q",
		status, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	if typeFilter != "" {
		predicate += fmt.Sprintf(" AND issuetype = %q", typeFilter)
	}
	return predicate
}

func (d *Dispatcher) boardFilterJQL(ctx context.Context, boardID int64) (string, error) {
	cfg, err := d.client.GetBoardConfiguration(ctx, boardID)
	if err != nil {
		return "", err
	}
	if cfg.FilterID == "" {
		return "", nil
	}
	return d.client.GetSavedFilterQuery(ctx, cfg.FilterID)
}

func (d *Dispatcher) boardProject(ctx context.Context, board BoardSpec) (string, error) {
	if board.ProjectKey != "" {
		return board.ProjectKey, nil
	}
	b, err := d.client.GetBoard(ctx, board.ID)
	if err != nil {
		return "", err
	}
	if b.ProjectKey == "" {
		return "", domain.ErrProjectNotFound
	}
	return b.ProjectKey, nil
}

// distinctProjects resolves the project of each board, deduplicated and
// in board order. Boards whose project cannot be resolved are skipped.
func (d *Dispatcher) distinctProjects(ctx context.Context) []string {
	seen := map[string]bool{}
	var projects []string
	for _, board := range d.boards {
		project, err := d.boardProject(ctx, board)
		if err != nil {
			d.log.Warn().Err(err).Int64("board", board.ID).Msg("resolved-by-day: cannot resolve board project")
			continue
		}
		if !seen[project] {
			seen[project] = true
			projects = append(projects, project)
		}
	}
	return projects
}

// teamIndex maps normalized team names onto board keys.
func (d *Dispatcher) teamIndex() map[string]string {
	index := make(map[string]string, len(d.boards))
	for _, board := range d.boards {
		name := board.TeamName
		if name == "" {
			name = board.Name
		}
		index[normalizeTeam(name)] = fmt.Sprintf("%d", board.ID)
	}
	return index
}

func collect(results [][]attributedItem, errors []error) ([][]attributedItem, int) {
	var out [][]attributedItem
	failures := 0
	for i := range results {
		if errors[i] != nil {
			failures++
			continue
		}
		out = append(out, results[i])
	}
	return out, failures
}

// normalizeTeam folds case and inner whitespace so "Team  Alpha" and
// "team alpha" attribute to the same board.
func normalizeTeam(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

var orderByPattern = regexp.MustCompile(`(?i)\s+order\s+by\s+.*$`)

// stripOrderBy removes the trailing sort clause of a saved filter so a
// predicate can be appended to it.
func stripOrderBy(jql string) string {
	return strings.TrimSpace(orderByPattern.ReplaceAllString(jql, ""))
}

// dayBuckets holds one row per calendar day per board plus unattributed.
type dayBuckets struct {
	days   []string
	counts map[string]map[string]int
	boards []BoardSpec
}

func newDayBuckets(r domain.DateRange, boards []BoardSpec) *dayBuckets {
	b := &dayBuckets{counts: map[string]map[string]int{}, boards: boards}
	for _, day := range r.Days() {
		key := day.Format("2006-01-02")
		b.days = append(b.days, key)
		row := map[string]int{UnattributedKey: 0}
		for _, board := range boards {
			row[fmt.Sprintf("%d", board.ID)] = 0
		}
		b.counts[key] = row
	}
	return b
}

// add attributes one item to its (day, board) cell. The day is keyed by
// resolution date when present, last-updated date otherwise; items
// resolved outside the range are dropped.
func (b *dayBuckets) add(ai attributedItem) {
	when := ai.item.Updated
	if ai.item.ResolutionDate != nil {
		when = *ai.item.ResolutionDate
	}
	key := when.Format("2006-01-02")
	row, ok := b.counts[key]
	if !ok {
		return
	}
	row[ai.boardKey]++
}

func (b *dayBuckets) result() Result {
	res := Result{ByDay: make([]DayRow, 0, len(b.days)), Boards: make([]BoardInfo, 0, len(b.boards))}
	for _, day := range b.days {
		res.ByDay = append(res.ByDay, DayRow{Date: day, Counts: b.counts[day]})
	}
	for i, board := range b.boards {
		color := board.Color
		if color == "" {
			color = fallbackPalette[i%len(fallbackPalette)]
		}
		res.Boards = append(res.Boards, BoardInfo{ID: board.ID, Name: board.Name, Color: color})
	}
	return res
}
