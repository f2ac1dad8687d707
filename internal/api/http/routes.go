package http

import "github.com/gin-gonic/gin"

// Register mounts the admin API on router
func Register(router gin.IRouter, h *Handlers) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	// Nodes and records
	router.GET("/nodeid", h.GetNodeID)
	router.GET("/nodes/:id/records", h.ListRecords)
	router.DELETE("/nodes/:id/records", h.ClearNode)
	router.GET("/nodes/:id/record", h.GetRecord)
	router.PUT("/nodes/:id/record", h.PutRecord)
	router.DELETE("/nodes/:id/record", h.DeleteRecord)
	router.POST("/nodes/:id/shutdown", h.ShutdownNode)

	// Storage lifecycle
	router.POST("/storage/clear", h.ClearStorage)
	router.POST("/storage/forget", h.ForgetSite)
	router.GET("/storage/usage", h.Usage)
	router.GET("/storage/empty", h.IsEmpty)
	router.POST("/private-session/end", h.EndPrivateSession)
	router.GET("/shutdown/stats", h.ShutdownStats)

	// Plugin instances
	router.GET("/plugins", h.ListPlugins)
	router.POST("/plugins/:id/update", h.UpdatePlugin)
	router.POST("/plugins/:id/shutdown", h.ShutdownPlugin)
}
