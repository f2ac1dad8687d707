/*
Package monitoring provides metrics collection for the storage engine.

# Overview

Prometheus collectors for node id derivation, record traffic, the serialized
storage queue, plugin shutdowns and storage lifecycle events (clear-all,
forget-site, private session end).

Collectors are registered on an injected prometheus.Registerer so several
storage roots (or tests) can coexist in one process. A nil *Metrics records
nothing.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "put", "persistent")
	// ... perform operation ...
	timer.Stop("success", len(data))

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
