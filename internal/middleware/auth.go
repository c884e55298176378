package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/sellerspro/internal/metrics"
	"github.com/example/sellerspro/internal/services"
)

const userContextKey = "currentUserID"

// MessageUnauthorized is returned for every rejected bearer token, whatever
// the cause.
const MessageUnauthorized = "invalid or missing token"

// AuthMiddleware resolves the session bearer token and loads the
// authenticated user ID into context.
func AuthMiddleware(authz *services.Authorizer, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := authz.AuthorizeHeader(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				m.ObserveAuthorization(metrics.ResultRejected)
				return fiber.NewError(fiber.StatusUnauthorized, MessageUnauthorized)
			}
			m.ObserveAuthorization(metrics.ResultError)
			return err
		}

		m.ObserveAuthorization(metrics.ResultSuccess)
		c.Locals(userContextKey, userID)
		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(userContextKey).(uint)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
