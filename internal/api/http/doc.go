// Package http serves the REST surface: shell commands and session
// management under /terminal, the tool registry under /services, and
// health endpoints.
//
// A command that wrote to stderr is still a 200 with "error" set. Failures
// of the session itself map to status codes by kind:
//
//	creation        503 (429 when the session limit is reached)
//	readiness       502
//	write           502
//	process_death   502
//	timeout         504
//	terminated      409
//	canceled        499 (the caller disconnected)
package http
