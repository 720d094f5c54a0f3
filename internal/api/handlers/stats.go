package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"jobscout/internal/logging"
	"jobscout/pkg/models"
)

// StatsSource supplies stored-data statistics
type StatsSource interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

// QuotaSource adds quota usage to statistics; quota.Tracker implements it
type QuotaSource interface {
	FillStats(ctx context.Context, stats *models.Stats) error
}

// StatsHandler handles GET /api/v1/stats
func StatsHandler(repo StatsSource, quota QuotaSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		stats, err := repo.Stats(ctx)
		if err != nil {
			return respondError(c, err)
		}
		if quota != nil {
			if err := quota.FillStats(ctx, stats); err != nil {
				logging.GetGlobalLogger().Warn("Quota usage unavailable", map[string]interface{}{
					"request_id": requestID(c),
					"error":      err.Error(),
				})
			}
		}
		return c.JSON(http.StatusOK, stats)
	}
}
