// Package client is an HTTP client for the codeshell server, used by
// shellctl. Requests carry the trace headers of the calling context.
package client
