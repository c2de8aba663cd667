// Package httpapi is the thin route layer over the engine. Handlers only
// parse parameters, call the facade and shape status codes; every KPI
// semantic lives below.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/hierarchy"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/metrics"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/resolved"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/service"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/snapshot"
)

type engine interface {
	WorklogMetricsForItems(ctx context.Context, itemKeys []string) (metrics.WorklogMetrics, error)
	ActiveSprintOverview(ctx context.Context, boardID int64) (service.SprintOverview, error)
	VelocityHistoryForBoard(ctx context.Context, boardID int64, maxSprints int) (service.VelocityHistory, error)
	AggregateHierarchy(ctx context.Context, rootKey string) (hierarchy.Progress, error)
	ComputeResolvedByDay(ctx context.Context, from, to time.Time, itemTypeFilter string) (resolved.Result, error)
}

type cacheControl interface {
	Invalidate(prefix string) int
	Clear()
}

// Handlers carries the route dependencies.
type Handlers struct {
	log       zerolog.Logger
	svc       engine
	cache     cacheControl
	snapshots *snapshot.Store
}

func NewHandlers(log zerolog.Logger, svc engine, cache cacheControl, snapshots *snapshot.Store) *Handlers {
	return &Handlers{log: log, svc: svc, cache: cache, snapshots: snapshots}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// WorklogMetrics aggregates worklogs for the comma-separated ?items list.
func (h *Handlers) WorklogMetrics(c *gin.Context) {
	raw := c.Query("items")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "items query parameter is required"})
		return
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	m, err := h.svc.WorklogMetricsForItems(c.Request.Context(), keys)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) SprintMetrics(c *gin.Context) {
	boardID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid board id"})
		return
	}
	overview, err := h.svc.ActiveSprintOverview(c.Request.Context(), boardID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handlers) Velocity(c *gin.Context) {
	boardID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid board id"})
		return
	}
	maxSprints, _ := strconv.Atoi(c.DefaultQuery("sprints", "6"))
	history, err := h.svc.VelocityHistoryForBoard(c.Request.Context(), boardID, maxSprints)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handlers) HierarchyProgress(c *gin.Context) {
	progress, err := h.svc.AggregateHierarchy(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *Handlers) ResolvedByDay(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, expected YYYY-MM-DD"})
		return
	}
	res, err := h.svc.ComputeResolvedByDay(c.Request.Context(), from, to, c.Query("type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Resync drops cached source data, optionally only one ?prefix class.
func (h *Handlers) Resync(c *gin.Context) {
	if prefix := c.Query("prefix"); prefix != "" {
		removed := h.cache.Invalidate(prefix)
		c.JSON(http.StatusOK, gin.H{"invalidated": removed})
		return
	}
	h.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

type saveSnapshotRequest struct {
	Name      string          `json:"name" binding:"required"`
	SavedBy   string          `json:"savedBy" binding:"required"`
	RangeFrom time.Time       `json:"rangeFrom" binding:"required"`
	RangeTo   time.Time       `json:"rangeTo" binding:"required"`
	Note      string          `json:"note"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
}

func (h *Handlers) SaveSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store not configured"})
		return
	}
	var req saveSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.snapshots.Save(c.Request.Context(), snapshot.Snapshot{
		Name:      req.Name,
		SavedBy:   req.SavedBy,
		RangeFrom: req.RangeFrom,
		RangeTo:   req.RangeTo,
		Note:      req.Note,
		Payload:   req.Payload,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handlers) ListSnapshots(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	snaps, err := h.snapshots.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snaps)
}

func (h *Handlers) GetSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store not configured"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid snapshot id"})
		return
	}
	snap, err := h.snapshots.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) DeleteSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store not configured"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid snapshot id"})
		return
	}
	if err := h.snapshots.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fail maps the error taxonomy onto status codes: input errors are 4xx,
// exhausted sources 502, everything else 500.
func (h *Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDateRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrBoardNotFound), errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, snapshot.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSourceUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
