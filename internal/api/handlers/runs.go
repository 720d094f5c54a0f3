package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/internal/background"
	"jobscout/internal/logging"
	"jobscout/internal/store"
	"jobscout/pkg/utils"
)

// TriggerAPI tags runs started over HTTP
const TriggerAPI = "api"

// HistoryLister reads finished runs from storage
type HistoryLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// TriggerRunHandler handles POST /api/v1/runs. The run executes in the
// background; poll GET /api/v1/runs/:id for its result.
func TriggerRunHandler(runs background.RunManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		runID, err := runs.Submit(c.Request().Context(), TriggerAPI)
		if err != nil {
			return respondError(c, err)
		}

		logging.GetGlobalLogger().Info("Discovery run requested", map[string]interface{}{
			"request_id": requestID(c),
			"run_id":     runID,
		})

		c.Response().Header().Set(echo.HeaderLocation, "/api/v1/runs/"+runID)
		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"run_id":    runID,
			"status":    background.RunStatusAccepted,
			"timestamp": time.Now(),
		})
	}
}

// GetRunHandler handles GET /api/v1/runs/:id
func GetRunHandler(runs background.RunManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if err := validate.Var(id, "run_id"); err != nil {
			return respondError(c, utils.NewBadRequestError("malformed run id"))
		}

		result, err := runs.GetRun(c.Request().Context(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}
}

// ListRunsHandler handles GET /api/v1/runs: runs tracked by this process
func ListRunsHandler(runs background.RunManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		results, err := runs.ListRuns(c.Request().Context())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"runs":  results,
			"count": len(results),
		})
	}
}

// HistoryHandler handles GET /api/v1/runs/history: runs recorded in storage
func HistoryHandler(repo HistoryLister) echo.HandlerFunc {
	return func(c echo.Context) error {
		records, err := repo.ListRuns(c.Request().Context(), 50)
		if err != nil {
			return respondError(c, err)
		}
		if records == nil {
			records = []store.RunRecord{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"runs":  records,
			"count": len(records),
		})
	}
}
