package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/internal/logging"
	"jobscout/pkg/models"
)

// Version is reported by the health endpoints; set at build time with -ldflags
var Version = "dev"

var startTime = time.Now()

// Pinger checks a dependency's connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports a component's health
type HealthChecker interface {
	IsHealthy() bool
}

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	logging.GetGlobalLogger().Debug("Health check requested", map[string]interface{}{"request_id": requestID(c)})

	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
		Checks:    map[string]string{"api": "ok"},
	})
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
	})
}

// ReadinessHandler reports ready only when the database answers and the run
// manager accepts work. The reasoning provider is informational: scoring
// falls back to rules without it.
func ReadinessHandler(db Pinger, runs HealthChecker, llm HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks := map[string]string{"api": "ok"}
		ready := true

		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			checks["database"] = "unavailable"
			ready = false
		} else {
			checks["database"] = "ok"
		}

		if runs != nil && runs.IsHealthy() {
			checks["runs"] = "ok"
		} else {
			checks["runs"] = "stopped"
			ready = false
		}

		switch {
		case llm == nil:
			checks["llm"] = "disabled"
		case llm.IsHealthy():
			checks["llm"] = "ok"
		default:
			checks["llm"] = "degraded"
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}

		logging.GetGlobalLogger().Debug("Readiness check requested", map[string]interface{}{
			"request_id": requestID(c),
			"ready":      ready,
		})

		return c.JSON(code, models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   Version,
			Uptime:    time.Since(startTime),
			Checks:    checks,
		})
	}
}
