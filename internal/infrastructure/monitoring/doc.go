/*
Package monitoring provides Prometheus metrics for the shell server.

# Overview

Metrics owns a private registry with HTTP, terminal, tool call and
WebSocket collectors. It implements terminal.Observer, so the session
manager reports session lifecycle and command outcomes directly.

# Usage

	metrics := monitoring.NewMetrics()
	manager := terminal.NewManager(cfg, terminal.WithObserver(metrics))

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "terminal", "terminal.execute")
	// ... run the tool ...
	timer.Stop("success")
*/
package monitoring
