package middlewares

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"invoicegarden-backend/models"
	"invoicegarden-backend/store"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Domain errors map to stable status codes; anything unknown becomes an
// opaque 500 so internals never leak to clients.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Fiber errors (use their status code + message)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 2) Validation errors (422 + per-field info)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(map[string]string, len(ve))
		for _, f := range ve {
			out[f.Field()] = f.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 3) Domain errors
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "not found"})
	case errors.Is(err, models.ErrInvalidInvoiceId):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid invoice id"})
	case errors.Is(err, store.ErrTokenExhausted):
		log.Error().Err(err).Str("path", c.Path()).Msg("share token generation exhausted")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not create share link"})
	}

	// 4) Unknown errors (500)
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("internal error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
