package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ClearStorage wipes all persistent storage and waits for completion
func (h *Handlers) ClearStorage(c *gin.Context) {
	select {
	case err := <-h.root.ClearAll():
		if err != nil {
			fail(c, err)
			return
		}
	case <-c.Request.Context().Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"success": false,
			"error":   "clear still running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ForgetSite removes every origin pair matching a pattern
func (h *Handlers) ForgetSite(c *gin.Context) {
	var req struct {
		Pattern string `json:"pattern" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	n, err := h.root.ForgetSite(c.Request.Context(), req.Pattern)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pattern": req.Pattern,
		"removed": n,
	})
}

// Usage reports storage usage
func (h *Handlers) Usage(c *gin.Context) {
	usage, err := h.root.Usage(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "usage": usage})
}

// IsEmpty reports whether persistent storage holds anything
func (h *Handlers) IsEmpty(c *gin.Context) {
	empty, err := h.root.IsStorageEmpty(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "empty": empty})
}

// EndPrivateSession discards all private-mode data
func (h *Handlers) EndPrivateSession(c *gin.Context) {
	if err := h.root.EndPrivateSession(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
