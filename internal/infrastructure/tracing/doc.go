/*
Package tracing provides lightweight request tracing.

# Overview

Every HTTP request gets a span. The trace and parent span IDs are taken from
the X-Trace-ID and X-Span-ID headers when present, so a trace started by
shellctl continues through the server. Finished spans are collected on a
buffered channel and written to the log at debug level; spans that carry an
error are logged at warn.

# Usage

	tracer := tracing.New("codeshell", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// Propagate to an outgoing request
	tracing.Inject(ctx, req.Header)
*/
package tracing
