package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"unera/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) (*tracetest.SpanRecorder, *fiber.App) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })

	app := fiber.New()
	app.Use(TracingMiddleware())
	return recorder, app
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[string]string {
	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	return attrs
}

func TestTracingMiddleware_FeedPage(t *testing.T) {
	recorder, app := setupTracing(t)
	app.Get("/api/feed", func(c *fiber.Ctx) error {
		c.Locals("viewerID", uint(3))
		assert.NotEmpty(t, c.Locals("traceID"))
		assert.NotEmpty(t, c.UserContext().Value(TraceIDKey), "trace id must reach the logging context")
		SetFeedPage(c, FeedPageInfo{Total: 42, Limit: 20, Offset: 20, Ranked: true})
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/feed?limit=20&offset=20", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/feed", spans[0].Name())

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "/api/feed", attrs["http.route"])
	assert.Equal(t, "200", attrs["http.status_code"])
	assert.Equal(t, "3", attrs["viewer.id"])
	assert.Equal(t, "false", attrs["viewer.anonymous"])
	assert.Equal(t, "42", attrs["feed.total"])
	assert.Equal(t, "20", attrs["feed.page.offset"])
	assert.Equal(t, "true", attrs["feed.ranked"])
}

func TestTracingMiddleware_NamesSpanAfterRoute(t *testing.T) {
	recorder, app := setupTracing(t)
	app.Get("/api/feed/posts/:id/score", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for _, id := range []string{"7", "8"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/feed/posts/"+id+"/score", nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "GET /api/feed/posts/:id/score", s.Name())
		assert.Equal(t, "true", spanAttrs(s)["viewer.anonymous"])
		_, hasPage := spanAttrs(s)["feed.total"]
		assert.False(t, hasPage)
	}
}

func TestTracingMiddleware_ErrorStatus(t *testing.T) {
	recorder, app := setupTracing(t)
	app.Get("/api/feed/posts/:id/score", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/feed/posts/1/score", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "503", spanAttrs(spans[0])["http.status_code"])
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracingMiddleware_UnmatchedRoute(t *testing.T) {
	recorder, app := setupTracing(t)
	app.Get("/api/feed", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET", spans[0].Name())
	_, hasRoute := spanAttrs(spans[0])["http.route"]
	assert.False(t, hasRoute)
	assert.Equal(t, "404", spanAttrs(spans[0])["http.status_code"])
}
