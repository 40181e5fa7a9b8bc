package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"infra-registry/internal/metrics"
)

// Metrics records request count and latency per matched route.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequest(c.Method(), route, strconv.Itoa(status), float64(time.Since(start).Microseconds())/1000)
		return err
	}
}
