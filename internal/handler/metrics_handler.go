package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradestore/internal/service"
	"github.com/noah-isme/gradestore/pkg/response"
)

type readinessChecker interface {
	Ready(ctx context.Context) error
	LoadedAt() time.Time
}

// MetricsHandler exposes health, readiness and observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	data    readinessChecker
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, data readinessChecker) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, data: data}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness checks.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the database answers and the snapshot has been loaded.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if err := h.data.Ready(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	loadedAt := h.data.LoadedAt()
	if loadedAt.IsZero() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "loaded_at": loadedAt})
}

// Summary godoc
// @Summary Aggregated request, cache and store statistics
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	response.OK(c, h.metrics.Snapshot())
}
