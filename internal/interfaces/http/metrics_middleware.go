package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

type httpObserver interface {
	ObserveHTTP(method, path string, status int, d time.Duration)
}

// MetricsMiddleware registra conteo y latencia por ruta del router (no por URL cruda).
func MetricsMiddleware(m httpObserver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		m.ObserveHTTP(c.Method(), c.Route().Path, status, time.Since(start))
		return err
	}
}
