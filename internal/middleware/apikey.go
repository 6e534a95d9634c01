package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/cmdgate/cmdgate/internal/port"
	"github.com/gofiber/fiber/v3"
)

// HeaderAPIKey is the request header carrying the credential.
const HeaderAPIKey = "api_key"

// CredentialResolver maps an opaque credential to a user.
type CredentialResolver interface {
	Resolve(ctx context.Context, apiKey string) (*domain.User, error)
}

// APIKeyAuth creates a Fiber middleware that resolves the api_key header
// (or an Authorization bearer token) and injects the user into request
// locals. Unknown or missing credentials end the request with 401.
func APIKeyAuth(resolver CredentialResolver) fiber.Handler {
	return func(c fiber.Ctx) error {
		apiKey := c.Get(HeaderAPIKey)

		if apiKey == "" {
			authHeader := c.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				apiKey = parts[1]
			}
		}

		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing api key",
			})
		}

		user, err := resolver.Resolve(c.Context(), apiKey)
		if errors.Is(err, port.ErrUnauthorized) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid api key",
			})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "authentication failed",
			})
		}

		c.Locals("user", user)
		return c.Next()
	}
}

// GetUser extracts the authenticated user from Fiber locals.
func GetUser(c fiber.Ctx) *domain.User {
	u, ok := c.Locals("user").(*domain.User)
	if !ok {
		return nil
	}
	return u
}

// RequireAdmin rejects requests from non-admin users with 403.
func RequireAdmin(c fiber.Ctx) error {
	user := GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	if !user.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
	return c.Next()
}
