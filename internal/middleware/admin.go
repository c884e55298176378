package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/sellerspro/internal/services"
	"github.com/example/sellerspro/internal/utils"
)

// AdminMiddleware admits requests carrying a valid admin JWT. With no secret
// configured every request is refused.
func AdminMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "admin access is not configured")
		}

		token, err := services.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		if err := utils.ParseAdminToken(secret, token); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		return c.Next()
	}
}
