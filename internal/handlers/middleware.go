package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/paulexconde/camperportal/internal/models"
)

const identityKey = "identity"

// Resolves bearer tokens to caller identities.
type TokenVerifier interface {
	Verify(token string) (models.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity for the handlers.
func RequireAuth(v TokenVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.Status(http.StatusUnauthorized).JSON(CreateErrorResponse("UNAUTHORIZED", "missing bearer token"))
		}

		id, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(CreateErrorResponse("UNAUTHORIZED", "invalid bearer token"))
		}

		c.Locals(identityKey, id)
		return c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c fiber.Ctx) error {
		id, ok := identityFrom(c)
		if !ok || !id.IsAdmin() {
			return c.Status(http.StatusForbidden).JSON(CreateErrorResponse("FORBIDDEN", "admin access required"))
		}
		return c.Next()
	}
}

// RequireAPIKey guards service-to-service callbacks with the X-API-Key header.
func RequireAPIKey(key string) fiber.Handler {
	return func(c fiber.Ctx) error {
		got := c.Get("X-API-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return c.Status(http.StatusUnauthorized).JSON(CreateErrorResponse("UNAUTHORIZED", "invalid api key"))
		}
		return c.Next()
	}
}

func identityFrom(c fiber.Ctx) (models.Identity, bool) {
	id, ok := c.Locals(identityKey).(models.Identity)
	return id, ok
}
