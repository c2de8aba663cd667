package httpapi

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the route table. Gin runs in release mode; request
// logging stays with zerolog rather than gin's own logger.
func NewRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/worklog-metrics", h.WorklogMetrics)
		api.GET("/boards/:id/sprint-metrics", h.SprintMetrics)
		api.GET("/boards/:id/velocity", h.Velocity)
		api.GET("/hierarchy/:key", h.HierarchyProgress)
		api.GET("/resolved-by-day", h.ResolvedByDay)
		api.POST("/cache/resync", h.Resync)

		api.POST("/snapshots", h.SaveSnapshot)
		api.GET("/snapshots", h.ListSnapshots)
		api.GET("/snapshots/:id", h.GetSnapshot)
		api.DELETE("/snapshots/:id", h.DeleteSnapshot)
	}

	return r
}
