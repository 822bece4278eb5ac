package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"

	"docchat/internal/logger"
)

// Logger logs one JSON line per request with request_id, method, path,
// status and latency (milliseconds, float), plus trace_id when the request is
// traced. Server errors log at error level and client errors at warn.
func Logger(log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Default()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		fields := logger.Fields{
			"request_id": RequestIDFrom(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
		}
		if sc := trace.SpanContextFromContext(c.UserContext()); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("http_request", err, fields)
		case status >= fiber.StatusBadRequest:
			log.Warn("http_request", err, fields)
		default:
			log.Info("http_request", fields)
		}

		return err
	}
}

// LoggerWithWriter is Logger writing to w with timestamps in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return Logger(logger.New(w, loc))
}
