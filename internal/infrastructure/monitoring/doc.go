/*
Package monitoring provides Prometheus metrics collection.

# Overview

This package tracks the HTTP surface and the terminal session lifecycle:
spawns, exits, PTY throughput, event delivery, and WebSocket fanout.

# Features

- HTTP request metrics (latency, throughput, size)
- Session lifecycle metrics (spawns, failures, exits by cause)
- PTY I/O metrics (bytes read and written, resizes)
- Event delivery metrics (emitted by type, dropped by sink)
- WebSocket connection metrics
- System metrics (uptime, Go runtime, process)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record session metrics
	metrics.RecordSpawn()
	metrics.SetSessionsActive(3)

# Metrics Endpoint

Each collector owns its registry; expose it with:

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
