package http

import (
	"io"
	"net/http"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// GetNodeID resolves the node id for an origin pair
func (h *Handlers) GetNodeID(c *gin.Context) {
	origin := c.Query("origin")
	top := c.DefaultQuery("top_level_origin", origin)
	mode, err := types.ParseMode(c.Query("mode"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	id, err := h.root.GetNodeID(c.Request.Context(), origin, top, mode)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"node_id": id,
		"mode":    mode.String(),
	})
}

// ListRecords lists a node's record names
func (h *Handlers) ListRecords(c *gin.Context) {
	id := types.NodeID(c.Param("id"))

	names, err := h.root.ListNames(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"node_id": id,
		"names":   names,
		"count":   len(names),
	})
}

// GetRecord returns a record's raw bytes
func (h *Handlers) GetRecord(c *gin.Context) {
	id := types.NodeID(c.Param("id"))

	data, err := h.root.Get(c.Request.Context(), id, c.Query("name"))
	if err != nil {
		fail(c, err)
		return
	}

	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

// PutRecord stores the request body as a record
func (h *Handlers) PutRecord(c *gin.Context) {
	id := types.NodeID(c.Param("id"))
	name := c.Query("name")

	// one byte past the limit lets the root report the overflow
	limit := int64(h.root.MaxRecordSize()) + 1
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit))
	if err != nil {
		badRequest(c, "failed to read body: "+err.Error())
		return
	}

	if err := h.root.Put(c.Request.Context(), id, name, data); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    name,
		"bytes":   len(data),
	})
}

// DeleteRecord removes one record
func (h *Handlers) DeleteRecord(c *gin.Context) {
	id := types.NodeID(c.Param("id"))
	name := c.Query("name")

	if err := h.root.Delete(c.Request.Context(), id, name); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "name": name})
}

// ClearNode removes every record of a node
func (h *Handlers) ClearNode(c *gin.Context) {
	id := types.NodeID(c.Param("id"))

	if err := h.root.ClearNode(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "node_id": id})
}

// ShutdownNode asks the node's instance to shut down and waits for the
// outcome
func (h *Handlers) ShutdownNode(c *gin.Context) {
	id := types.NodeID(c.Param("id"))

	var req struct {
		TimeoutMs int64 `json:"timeout_ms"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request: "+err.Error())
			return
		}
	}
	if req.TimeoutMs < 0 {
		badRequest(c, "timeout_ms must not be negative")
		return
	}

	future, err := h.root.BeginShutdown(id, time.Duration(req.TimeoutMs)*time.Millisecond)
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
		"success": true,
		"node_id": id,
		"outcome": outcome.String(),
	})
}

// ShutdownStats reports shutdown latency statistics
func (h *Handlers) ShutdownStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.root.ShutdownStats(),
	})
}
