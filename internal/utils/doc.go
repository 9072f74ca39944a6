// Package utils holds request validation shared by the HTTP and WebSocket
// transports: session ID and command limits, and JSON size and depth checks.
package utils
