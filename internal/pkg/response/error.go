package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// Error sends a JSON error response.
// Errors implementing apperror.Coder choose their own status code and public message.
// Anything else is logged and rendered as 500 Internal Server Error.
func Error(c *gin.Context, err error) {
	var coded apperror.Coder
	if errors.As(err, &coded) {
		status := coded.StatusCode()
		if status >= http.StatusInternalServerError {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Int("status", status).Msg("request failed")
		}
		c.JSON(status, ErrorResponse{Error: coded.PublicMessage(), Details: coded.Details()})
		return
	}

	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// BindError sends 400 Bad Request for a request that failed binding or validation.
func BindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid request",
		Details: map[string]any{"reason": err.Error()},
	})
}
