package admin

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avadiag/internal/observability"
	"github.com/vyrodovalexey/avadiag/internal/service"
	"github.com/vyrodovalexey/avadiag/internal/util"
)

const (
	// RequestIDHeader is the header carrying the request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "requestID"
)

// routeOther labels requests for paths that are not registered.
const routeOther = "other"

// writeResponse writes resp through gin and aborts the chain.
func writeResponse(c *gin.Context, resp *service.Response) {
	c.Abort()
	_, _ = resp.WriteTo(c.Writer)
}

// RequestID reuses the caller's X-Request-ID or generates one and stores it
// in both the gin context and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(util.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// GetRequestID returns the request ID stored by RequestID.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if requestID, ok := id.(string); ok {
			return requestID
		}
	}
	return ""
}

// Recovery turns a panic into a plain-text 500.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithContext(c.Request.Context()).Error("panic recovered",
					observability.Any("error", err),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("client_ip", c.ClientIP()),
					observability.String("stack", string(debug.Stack())),
				)
				span := trace.SpanFromContext(c.Request.Context())
				span.RecordError(fmt.Errorf("panic: %v", err))

				writeResponse(c, service.Error(http.StatusInternalServerError, c.Request.Proto,
					"internal server error"))
			}
		}()
		c.Next()
	}
}

// Tracing starts a server span per request, continuing a propagated trace
// when the caller sent one.
func Tracing(tracer *observability.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		ctx := tracer.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.StartSpan(ctx, fmt.Sprintf("%s %s", c.Request.Method, path),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.target", path),
			attribute.String("net.peer.ip", c.ClientIP()),
		)
		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		c.Request = c.Request.WithContext(observability.ContextWithSpan(ctx, span))
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// RateLimit rejects requests beyond limiter's budget with a 429.
func RateLimit(limiter *rate.Limiter, logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter.Allow() {
			c.Next()
			return
		}
		logger.WithContext(c.Request.Context()).Warn("rate limit exceeded",
			observability.String("client_ip", c.ClientIP()),
			observability.String("path", c.Request.URL.Path),
		)
		c.Header("Retry-After", "1")
		writeResponse(c, service.Error(http.StatusTooManyRequests, c.Request.Proto, "too many requests"))
	}
}

// Metrics records every finished request. Paths for which known returns
// false are labelled "other".
func Metrics(stats observability.StatsReceiver, known func(path string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(util.ContextWithStartTime(c.Request.Context(), start))

		c.Next()

		route := c.Request.URL.Path
		if !known(route) {
			route = routeOther
		}
		stats.RecordRequest(c.Request.Method, route, c.ClientIP(), c.Writer.Status(), time.Since(start))
	}
}

// Logging logs every finished request at a level matching its status.
func Logging(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		l := logger.WithContext(c.Request.Context())
		fields := []observability.Field{
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", status),
			observability.Duration("latency", time.Since(start)),
			observability.String("client_ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			l.Error("request completed", fields...)
			return
		}
		l.Debug("request completed", fields...)
	}
}
