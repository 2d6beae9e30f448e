package middleware

import (
	"context"
	"errors"
	"net/http"

	"unera/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const feedPageLocal = "feedPage"

// FeedPageInfo describes the feed page a request was answered with.
type FeedPageInfo struct {
	Total  int
	Limit  int
	Offset int
	Ranked bool
}

// SetFeedPage attaches the served feed page to the request so the request
// span can record it.
func SetFeedPage(c *fiber.Ctx, info FeedPageInfo) {
	c.Locals(feedPageLocal, info)
}

// TracingMiddleware opens one server span per request. The span is named
// after the matched route once the handlers have run, so every post's score
// endpoint shares a single span name.
func TracingMiddleware() fiber.Handler {
	propagator := otel.GetTextMapPropagator()

	return func(c *fiber.Ctx) error {
		ctx := propagator.Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(ctx, c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("client.ip", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(context.WithValue(ctx, TraceIDKey, traceID))

		err := c.Next()

		// global middleware is registered at "/", so a request that matched
		// no handler is still sitting on it
		if route := c.Route().Path; route != "/" || c.Path() == "/" {
			span.SetName(c.Method() + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}

		status := responseStatus(c, err)
		span.SetAttributes(attribute.Int("http.status_code", status))
		span.SetAttributes(viewerAttributes(c)...)
		if info, ok := c.Locals(feedPageLocal).(FeedPageInfo); ok {
			span.SetAttributes(
				attribute.Int("feed.total", info.Total),
				attribute.Int("feed.page.limit", info.Limit),
				attribute.Int("feed.page.offset", info.Offset),
				attribute.Bool("feed.ranked", info.Ranked),
			)
		}

		switch {
		case err != nil:
			observability.RecordError(span, err)
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		return err
	}
}

// responseStatus is the status the client will see. A returned error has not
// been through the error handler yet, so its code is taken from the error.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func viewerAttributes(c *fiber.Ctx) []attribute.KeyValue {
	id, ok := c.Locals("viewerID").(uint)
	if !ok || id == 0 {
		return []attribute.KeyValue{attribute.Bool("viewer.anonymous", true)}
	}
	return []attribute.KeyValue{
		attribute.Bool("viewer.anonymous", false),
		attribute.Int64("viewer.id", int64(id)),
	}
}
