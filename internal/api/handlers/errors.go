package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/internal/api/validation"
	"jobscout/internal/background"
	"jobscout/internal/logging"
	"jobscout/internal/store"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

var validate = validation.New()

// requestID returns the id assigned by the request middleware
func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok && id != "" {
		return id
	}
	return utils.GenerateRequestID()
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, models.ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// respondError maps domain errors to HTTP responses
func respondError(c echo.Context, err error) error {
	var ce *utils.CustomError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, background.ErrRunNotFound):
		return errorJSON(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, background.ErrQueueFull):
		return errorJSON(c, http.StatusConflict, "run_pending", err.Error())
	case errors.Is(err, background.ErrNotRunning):
		return errorJSON(c, http.StatusServiceUnavailable, "runs_unavailable", err.Error())
	case errors.Is(err, store.ErrLocked):
		return errorJSON(c, http.StatusServiceUnavailable, "database_locked", "database is busy, retry shortly")
	case errors.As(err, &ce):
		return errorJSON(c, ce.Code(), string(ce.Kind), ce.Error())
	}

	logging.GetGlobalLogger().Error("Request failed", map[string]interface{}{
		"request_id": requestID(c),
		"path":       c.Path(),
		"error":      err.Error(),
	})
	return errorJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.NewBadRequestError("id must be a positive integer")
	}
	return id, nil
}
