// Package http exposes the management API: rules, skip filters, logs,
// settings, and the mailbox connection lifecycle.
package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var ErrUnauthorized = errors.New("unauthorized")

// GetUserID safely extracts user_id from fiber context.
func GetUserID(c *fiber.Ctx) (string, error) {
	userIDVal := c.Locals("user_id")
	if userIDVal == nil {
		return "", ErrUnauthorized
	}
	userID, ok := userIDVal.(string)
	if !ok || userID == "" {
		return "", ErrUnauthorized
	}
	return userID, nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
