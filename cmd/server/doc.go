// Package main is the entry point for the plugstore server.
//
// The server owns one storage root and serves:
//   - the admin REST API (node ids, records, clear/forget, private sessions)
//   - /plugins/connect, where out-of-process plugins attach over WebSocket
//   - /metrics for Prometheus
//
// Configuration:
//   - Defaults, then CONFIG_FILE (YAML or TOML), then environment variables
//   - CLI flags override all three
//
// Usage:
//
//	./server -port 8070 -dir /var/lib/plugstore
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: shut down plugins (force-closing after the grace
//     window), then close the storage root
package main
