package handlers

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/eazisol/Driptyard-backend/services"
)

// Uploader stores uploaded media and returns durable URLs. Implemented by
// internal/storage.S3Store; tests substitute fakes.
type Uploader interface {
	UploadImages(ctx context.Context, files []*multipart.FileHeader, folder string, ownerID uint) ([]string, error)
}

// actorFromCtx reads the authenticated caller set by the auth middleware.
func actorFromCtx(c *fiber.Ctx) (services.Actor, bool) {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		if f, isFloat := c.Locals("user_id").(float64); isFloat {
			userID, ok = uint(f), true
		}
	}
	if !ok {
		return services.Actor{}, false
	}
	role, _ := c.Locals("role").(string)
	return services.Actor{UserID: userID, Role: role}, true
}

// serviceError maps service-layer errors onto HTTP statuses.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrCodeInvalid),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrCodeExhausted):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
