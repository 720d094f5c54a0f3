package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// MaxBodyBytes bounds request bodies
const MaxBodyBytes = 64 * 1024

// RequestValidation assigns a request id, keeping a caller-supplied one, and
// rejects oversized bodies
func RequestValidation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" || len(requestID) > 64 {
				requestID = utils.GenerateRequestID()
			}
			c.Set("request_id", requestID)
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			method := c.Request().Method
			if (method == http.MethodPost || method == http.MethodPatch || method == http.MethodPut) &&
				c.Request().ContentLength > MaxBodyBytes {
				return c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
					Error:     "request_too_large",
					Message:   "Request body too large",
					RequestID: requestID,
					Timestamp: time.Now(),
				})
			}

			return next(c)
		}
	}
}
