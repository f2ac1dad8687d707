package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const launchTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // plugins are local processes, not browsers
	},
}

// Handler attaches WebSocket plugins to the manager
type Handler struct {
	manager *plugin.Manager
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *plugin.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, logger: logger}
}

// HandleConnection upgrades the request and launches a plugin instance for
// the origin pair named in the query
func (h *Handler) HandleConnection(c *gin.Context) {
	origin := c.Query("origin")
	top := c.DefaultQuery("top_level_origin", origin)
	mode, err := types.ParseMode(c.Query("mode"))
	if err == nil {
		err = errors.Join(types.ValidateOrigin(origin), types.ValidateOrigin(top))
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConn(ws, h.logger)

	ctx, cancel := context.WithTimeout(context.Background(), launchTimeout)
	defer cancel()

	host, err := h.manager.Launch(ctx, origin, top, mode, conn)
	if err != nil {
		h.logger.Warn("plugin launch failed",
			zap.String("origin", origin),
			zap.String("top_level_origin", top),
			zap.Error(err),
		)
		return
	}

	if err := conn.Hello(host.InstanceID().String(), host.NodeID().String()); err != nil {
		h.logger.Debug("hello not delivered", zap.Error(err))
	}
}
