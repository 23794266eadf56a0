/*
Package monitoring provides Prometheus metrics for the fetch service.

# Overview

Metrics are registered on a private registry owned by each Metrics value, so
several collectors can coexist in one process (tests build one per case).

# Features

- HTTP request metrics (latency, throughput, size)
- Fetch attempt metrics by outcome, race winner strategy, retries
- Concurrency permits in use and open browser pages
- Response cache hits, misses and size
- Go runtime, process and uptime metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics)
	// ... run one attempt ...
	timer.Stop("success")
*/
package monitoring
