// Package server assembles the codeshell service: session manager, tool
// registry, HTTP and WebSocket handlers, and the middleware chain
// (recovery, tracing, metrics, CORS, rate limiting).
package server
