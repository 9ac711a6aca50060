package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/login-api/pkg/util"
)

// RequireAuthenticated rejects anonymous callers with 401.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromCtx(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireAuthority rejects anonymous callers with 401 and callers holding none
// of the listed authorities with 403.
func RequireAuthority(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromCtx(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		if !identity.HasAnyAuthority(allowed...) {
			return apperrors.NewForbidden("insufficient authority")
		}
		return c.Next()
	}
}
