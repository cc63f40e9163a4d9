package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lotcost/internal/core/apperror"
	"lotcost/internal/infrastructure/idempotency"
	"lotcost/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}
		renderError(c, c.Errors.Last().Err)
	}
}

// renderError writes err as the JSON error body.
func renderError(c *gin.Context, err error) {
	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
		failIdempotency(c, appErr.HTTPStatus, body)
		c.JSON(appErr.HTTPStatus, body)
		return
	}

	logger.Error(c.Request.Context(), "unhandled error",
		"error", err,
	)

	body := gin.H{
		"code":    apperror.CodeInternal,
		"message": "Internal server error",
		"details": map[string]any{
			"request_id": c.GetString(ContextRequestID),
		},
	}
	failIdempotency(c, http.StatusInternalServerError, body)
	c.JSON(http.StatusInternalServerError, body)
}

// failIdempotency stores the error response for replay (best-effort).
func failIdempotency(c *gin.Context, status int, body any) {
	key, store, ok := IdempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.FailKey(c.Request.Context(), key, status, "application/json", body); err != nil {
		logger.Warn(c.Request.Context(), "idempotency fail key", "key", key, "error", err)
	}
}

// IdempotencyFrom returns the key and store set by the Idempotency middleware.
func IdempotencyFrom(c *gin.Context) (string, idempotency.Store, bool) {
	key := c.GetString(ContextIdempotencyKey)
	if key == "" {
		return "", nil, false
	}
	v, ok := c.Get(ContextIdempotencyStore)
	if !ok {
		return "", nil, false
	}
	store, ok := v.(idempotency.Store)
	return key, store, ok && store != nil
}
