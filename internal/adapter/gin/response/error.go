// Package response writes the JSON error body shared by handlers and
// middleware.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	pkgerrors "gorm-multistatement/pkg/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Statement int    `json:"statement,omitempty"`
}

// Status maps err to an HTTP status and the error key of the response body.
func Status(err error) (int, string) {
	switch pkgerrors.Code(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "validation_error"
	case codes.AlreadyExists:
		return http.StatusConflict, "already_exists"
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	}

	var derr *pkgerrors.DriverError
	if errors.As(err, &derr) {
		return http.StatusInternalServerError, "driver_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// Error aborts the request with the response err maps to. Internal errors
// that did not come from the driver are logged but not shown to the client.
func Error(c *gin.Context, log *zap.Logger, err error) {
	status, key := Status(err)
	resp := ErrorResponse{Error: key, Message: err.Error()}

	var derr *pkgerrors.DriverError
	if errors.As(err, &derr) {
		resp.Statement = derr.Index + 1
	}
	if key == "internal_error" {
		resp.Message = "An internal error occurred"
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Warn("request rejected", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, resp)
}
