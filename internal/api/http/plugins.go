package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/shared/id"
	"github.com/GriffinCanCode/plugstore/internal/shared/utils"
	"github.com/gin-gonic/gin"
)

// ListPlugins lists live plugin instances
func (h *Handlers) ListPlugins(c *gin.Context) {
	infos := h.plugins.List()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"instances": infos,
		"count":     len(infos),
	})
}

// instanceParam reads and validates the :id path parameter
func instanceParam(c *gin.Context) (id.InstanceID, bool) {
	raw := c.Param("id")
	if err := utils.ValidateID(raw, "instance id", true); err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return id.InstanceID(raw), true
}

// UpdatePlugin sends an application message to an instance
func (h *Handlers) UpdatePlugin(c *gin.Context) {
	instanceID, ok := instanceParam(c)
	if !ok {
		return
	}

	var req struct {
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if err := utils.ValidateString(req.Payload, "payload", 1, utils.MaxMessageSize, true); err != nil {
		badRequest(c, err.Error())
		return
	}

	host, ok := h.plugins.Host(instanceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "unknown plugin instance",
		})
		return
	}
	if err := host.Update(req.Payload); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "instance_id": instanceID})
}

// ShutdownPlugin shuts an instance down and waits for the outcome
func (h *Handlers) ShutdownPlugin(c *gin.Context) {
	instanceID, ok := instanceParam(c)
	if !ok {
		return
	}

	var timeout time.Duration
	if v := c.Query("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			badRequest(c, "invalid timeout")
			return
		}
		timeout = d
	}

	future, err := h.plugins.Shutdown(instanceID, timeout)
	if err != nil {
		fail(c, err)
		return
	}

	outcome, err := future.Wait(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"success": false,
			"error":   "shutdown still pending: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"instance_id": instanceID,
		"outcome":     outcome.String(),
	})
}
