package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// statusFor maps a domain error onto an HTTP status
func statusFor(err error) int {
	switch {
	case types.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound), errors.Is(err, plugin.ErrUnknownInstance):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNodeBusy), errors.Is(err, types.ErrNotAttached):
		return http.StatusConflict
	case errors.Is(err, types.ErrStorageIO), errors.Is(err, types.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrOutcomeUnknown):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}
