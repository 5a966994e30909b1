package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cypherify/internal/logging"
	"cypherify/internal/tracing"
)

const requestIDHeader = "X-Request-ID"

// requestID tags each request with the caller's X-Request-ID or a fresh
// one, and stores it in the request context for downstream loggers.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = logging.NewRequestID()
		}
		ctx := logging.ContextWithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// trace starts a server span per request, continuing the caller's trace
// when a traceparent header is present.
func (s *Server) trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := tracing.Extract(c.Request.Context(), c.GetHeader)
		ctx, span := tracing.StartSpan(ctx, c.Request.Method+" "+c.FullPath(),
			tracing.WithSpanKind(tracing.SpanKindServer),
			tracing.WithAttributes(
				tracing.Attr("http.method", c.Request.Method),
				tracing.Attr("http.route", c.FullPath()),
				tracing.Attr("request_id", logging.RequestIDFromContext(ctx)),
			))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		tracing.Inject(ctx, c.Header)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(tracing.Attr("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(tracing.StatusError, http.StatusText(status))
		}
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		log := s.logger.WithContext(c.Request.Context())
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			log.Warn("request", attrs...)
		default:
			log.Debug("request", attrs...)
		}
	}
}

// limitBody caps request bodies at the configured input size plus room
// for the JSON envelope.
func (s *Server) limitBody() gin.HandlerFunc {
	limit := int64(s.cfg.MaxInputBytes) + bodyOverhead
	return func(c *gin.Context) {
		if c.Request.Body != nil && s.cfg.MaxInputBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
