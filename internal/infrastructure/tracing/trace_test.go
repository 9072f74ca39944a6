package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTracer(t *testing.T) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))
	t.Cleanup(tracer.Close)
	return tracer, logs
}

func TestStartSpanContinuesTrace(t *testing.T) {
	tracer, _ := newObservedTracer(t)

	root, ctx := tracer.StartSpan(context.Background(), "root")
	child, childCtx := tracer.StartSpan(ctx, "child")

	assert.NotEmpty(t, root.TraceID)
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Equal(t, child.SpanID, GetSpanID(childCtx))
	assert.Empty(t, root.ParentID)
}

func TestInjectExtractRoundTrip(t *testing.T) {
	ctx := WithTrace(context.Background(), "trace_1", "span_1")

	h := http.Header{}
	Inject(ctx, h)
	traceID, spanID := Extract(h)

	assert.Equal(t, TraceID("trace_1"), traceID)
	assert.Equal(t, SpanID("span_1"), spanID)

	empty := http.Header{}
	Inject(context.Background(), empty)
	assert.Empty(t, empty)
}

func TestSubmitLogsSpan(t *testing.T) {
	tracer, logs := newObservedTracer(t)

	span, _ := tracer.StartSpan(context.Background(), "op")
	span.SetTag("session_id", "editor")
	span.Finish()
	tracer.Submit(span)

	failed, _ := tracer.StartSpan(context.Background(), "broken")
	failed.SetError(errors.New("boom"))
	failed.Finish()
	tracer.Submit(failed)

	require.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	assert.Equal(t, "editor", logs.All()[0].ContextMap()["session_id"])
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer(t)

	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/terminal/sessions/:id", func(c *gin.Context) {
		assert.Equal(t, TraceID("trace_upstream"), GetTraceID(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/terminal/sessions/editor", nil)
	req.Header.Set(TraceHeader, "trace_upstream")
	req.Header.Set(SpanHeader, "span_upstream")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "trace_upstream", w.Header().Get(TraceHeader))
	assert.NotEmpty(t, w.Header().Get(SpanHeader))

	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, time.Millisecond)
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "GET /terminal/sessions/:id", fields["operation"])
	assert.Equal(t, "span_upstream", fields["parent_id"])
	assert.Equal(t, "editor", fields["session_id"])
	assert.Equal(t, "204", fields["http.status"])
}

func TestSubmitAfterCloseIsDropped(t *testing.T) {
	tracer, logs := newObservedTracer(t)
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	tracer.Submit(span)

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, logs.Len())
}
