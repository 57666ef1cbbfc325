package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/token-service/pkg/util"
)

// CorrelationIDHeader carries the request trace id in and out.
const CorrelationIDHeader = "X-Correlation-ID"

const correlationIDKey = "correlation_id"

// CorrelationID reuses the inbound X-Correlation-ID or generates one, stores
// it in locals and echoes it on the response.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(correlationIDKey, id)
		c.Set(CorrelationIDHeader, id)
		return c.Next()
	}
}

// CorrelationIDFromContext returns the id set by CorrelationID, or "".
func CorrelationIDFromContext(c *fiber.Ctx) string {
	id, _ := c.Locals(correlationIDKey).(string)
	return id
}

// RequestLogger logs one line per request and feeds request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status = apperrors.ToDomainError(err).HTTPStatus
		}

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		metrics.RecordRequest(route, c.Method(), status, latency)

		logger.Info("request completed",
			zap.String("correlation_id", CorrelationIDFromContext(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		)
		return err
	}
}
