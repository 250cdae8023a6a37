package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/offline-cache/internal/domain/dto"
	"github.com/rs/zerolog/log"
)

// ErrorHandler returns a middleware that logs errors attached to the gin context and answers
// with the standard error envelope when the handler wrote nothing.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		requestID := GetRequestID(c)
		log.Error().
			Str("request_id", requestID).
			Str("error", err.Error()).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("Request error")

		if c.Writer.Written() {
			return
		}
		status, code := http.StatusInternalServerError, dto.ErrCodeInternal
		if err.IsType(gin.ErrorTypeBind) {
			status, code = http.StatusBadRequest, dto.ErrCodeInvalidRequest
		}
		c.JSON(status, dto.NewError(code, err.Error()).WithRequestID(requestID))
	}
}
