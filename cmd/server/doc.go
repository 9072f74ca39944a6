// Package main is the entry point for the codeshell server.
//
// codeshell keeps persistent shell sessions for an AI coding assistant. Each
// session is one long-lived shell process; commands sent to it run one at a
// time and keep the shell's working directory and environment between calls.
//
// The server provides:
//   - REST API for commands and session management
//   - WebSocket command channel at /terminal/stream
//   - Tool registry for the assistant
//   - Prometheus metrics at /metrics
//
// Configuration:
//   - Defaults, then an optional YAML file (-config or CONFIG_FILE)
//   - Environment variables override the file
//
// Usage:
//
//	./server -config codeshell.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown; every shell is killed
package main
