package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
)

// WriteError renders err as {"error": true, "message": ..., "fields": ...}.
// Internal errors are logged and their text is not exposed.
func WriteError(c *fiber.Ctx, err error, log *zap.Logger) error {
	status := apperrors.HTTPStatus(err)
	message := err.Error()
	var appErr *apperrors.Error
	switch {
	case status == fiber.StatusInternalServerError:
		log.Error("request failed",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		message = "internal error"
	case errors.As(err, &appErr):
		message = appErr.Message
	}
	body := fiber.Map{"error": true, "message": message}
	if fields := apperrors.Fields(err); len(fields) > 0 {
		body["fields"] = fields
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler is the fiber application error handler. fiber errors keep
// their status code.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": true, "message": fe.Message})
		}
		return WriteError(c, err, log)
	}
}
