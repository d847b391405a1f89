package api

import (
	"strings"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/user"
	"github.com/example/taskflow/modules/auth"
	"github.com/gofiber/fiber/v2"
)

const (
	// ClaimsContextKey is the key used to store user claims in the Fiber context.
	ClaimsContextKey = "claims"

	// MsgNoToken is rendered when a protected route is called without a bearer token.
	MsgNoToken = "Not authorized, no token"
)

// AuthMiddleware verifies the bearer token and attaches the caller's claims.
func AuthMiddleware(authPort auth.AuthPort, errs *errorRenderer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme, token, _ := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
		if scheme != "Bearer" {
			return errs.render(c, apperr.Unauthorized(MsgNoToken))
		}

		token = strings.TrimSpace(token)
		if token == "" {
			return errs.render(c, apperr.Unauthorized(auth.MsgTokenFailed))
		}

		claims, err := authPort.ValidateToken(c.UserContext(), token)
		if err != nil {
			return errs.render(c, err)
		}

		c.Locals(ClaimsContextKey, claims)
		return c.Next()
	}
}

// claimsFrom returns the claims attached by AuthMiddleware.
func claimsFrom(c *fiber.Ctx) *domain.Claims {
	claims, _ := c.Locals(ClaimsContextKey).(*domain.Claims)
	return claims
}
