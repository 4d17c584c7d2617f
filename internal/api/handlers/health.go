package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status HealthStatus   `json:"status"`
	Checks map[string]any `json:"checks,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// DatabaseHealthChecker defines the interface for database health checking.
type DatabaseHealthChecker interface {
	Ping(ctx context.Context) error
	Health() map[string]any
}

// HealthHandler handles health-related HTTP endpoints.
type HealthHandler struct {
	db      DatabaseHealthChecker
	dataDir string
	logger  zerolog.Logger
}

// NewHealthHandler creates a HealthHandler. dataDir is the disk the
// detail endpoint reports usage for.
func NewHealthHandler(db DatabaseHealthChecker, dataDir string, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		dataDir: dataDir,
		logger:  logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterRoutes registers health check routes on the engine.
func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	health := r.Group("/health")
	{
		health.GET("", h.Overall)
		health.GET("/detail", h.Detail)
	}
}

// Overall returns a fast liveness verdict backed by a database ping.
// GET /health
func (h *HealthHandler) Overall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("database health check failed")
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: HealthStatusUnhealthy,
			Error:  "database ping failed",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{Status: HealthStatusHealthy})
}

// Detail returns the database pool statistics plus host memory and disk
// usage.
// GET /health/detail
func (h *HealthHandler) Detail(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: HealthStatusHealthy,
		Checks: make(map[string]any),
	}

	if err := h.db.Ping(ctx); err != nil {
		response.Status = HealthStatusUnhealthy
		response.Error = "database ping failed"
	}
	response.Checks["database"] = h.db.Health()

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		response.Checks["memory"] = map[string]any{
			"total":        humanize.IBytes(vm.Total),
			"available":    humanize.IBytes(vm.Available),
			"used_percent": vm.UsedPercent,
		}
	} else {
		h.logger.Warn().Err(err).Msg("memory stats unavailable")
	}

	if du, err := disk.UsageWithContext(ctx, h.dataDir); err == nil {
		response.Checks["disk"] = map[string]any{
			"path":         h.dataDir,
			"total":        humanize.IBytes(du.Total),
			"free":         humanize.IBytes(du.Free),
			"used_percent": du.UsedPercent,
		}
	} else {
		h.logger.Warn().Err(err).Msg("disk stats unavailable")
	}

	status := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
