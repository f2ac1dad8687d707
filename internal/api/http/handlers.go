// Package http provides the admin REST API over a storage root.
//
// Every response is a JSON object carrying "success". Domain errors map to
// status codes in respond.go.
package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/domain/root"
	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	root    *root.Root
	plugins *plugin.Manager
	logger  *zap.Logger
	started time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(r *root.Root, plugins *plugin.Manager, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		root:    r,
		plugins: plugins,
		logger:  logger,
		started: time.Now(),
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "plugstore",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"storage_dir": h.root.Dir(),
		"queue_depth": h.root.QueueDepth(),
		"breaker":     h.root.BreakerState().String(),
		"instances":   h.plugins.Count(),
		"uptime":      time.Since(h.started).Round(time.Second).String(),
	})
}
