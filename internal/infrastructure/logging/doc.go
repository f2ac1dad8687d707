// Package logging provides structured logging using uber/zap.
//
// Two output modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Storage components take a *zap.Logger and name it after themselves
// (Component("salt"), Component("shutdown"), ...) so node lifecycle events can
// be filtered per subsystem. Node ids are logged in short form.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Storage root opened", zap.String("root", dir))
//	logger.Component("shutdown").Warn("Force-closing node", zap.String("node", id.Short()))
package logging
