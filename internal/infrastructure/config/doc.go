// Package config provides 12-factor configuration management for plugstore.
//
// Values are resolved in three layers: built-in defaults, an optional file
// named by CONFIG_FILE (.yaml/.yml or .toml), then environment variables.
//
// Configuration Sections:
//   - Server: admin HTTP listener (host, port)
//   - Storage: storage root, record size limit, compression, fsync, queue size
//   - Shutdown: default grace window and stats window
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting of the admin API
//   - Breaker: disk circuit breaker thresholds
//   - Plugin: voucher handed to attached plugins
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Storage.Root)
//
// Environment Variables:
//   - PORT, HOST, STORAGE_ROOT, STORAGE_MAX_RECORD_SIZE, STORAGE_COMPRESSION
//   - STORAGE_COMPRESS_THRESHOLD, STORAGE_FSYNC, STORAGE_QUEUE_SIZE
//   - SHUTDOWN_TIMEOUT, SHUTDOWN_STATS_WINDOW
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - BREAKER_FAILURES, BREAKER_OPEN_TIMEOUT, PLUGIN_VOUCHER
package config
