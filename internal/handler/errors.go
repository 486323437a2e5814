package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"estatechat/internal/model"
	"estatechat/internal/service"
)

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, action string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrIndexUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, model.ErrInvalidFilter), errors.Is(err, model.ErrInvalidMetadata):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": action + ": " + err.Error()})
}
