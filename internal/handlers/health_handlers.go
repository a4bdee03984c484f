package handlers

import (
	"context"
	"net/http"
	"time"

	"orgstock/internal/caching"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check endpoints
type HealthHandlers struct {
	db      Pinger
	cache   caching.CacheService
	started time.Time
	version string
}

// NewHealthHandlers creates a new health handlers instance. db may be nil when
// the service runs on the in-memory store.
func NewHealthHandlers(db Pinger, cache caching.CacheService, version string) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		cache:   cache,
		started: time.Now(),
		version: version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

// HealthCheck reports dependency health. A failing database makes the service
// unavailable; a failing cache only degrades it.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
	}
	statusCode := http.StatusOK

	switch {
	case h.db == nil:
		health.Services["database"] = "in-memory"
	case h.db.Ping(ctx) != nil:
		health.Services["database"] = "unhealthy"
		health.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	default:
		health.Services["database"] = "healthy"
	}

	if err := h.cache.Ping(ctx); err != nil {
		health.Services["cache"] = "unhealthy"
		if health.Status == "healthy" {
			health.Status = "degraded"
		}
	} else {
		health.Services["cache"] = "healthy"
	}

	return c.JSON(statusCode, health)
}

// LivenessCheck determines if the application is running (basic liveness probe)
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
