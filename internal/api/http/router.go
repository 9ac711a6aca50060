package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/login-api/internal/api/http/handlers"
	"github.com/spec-kit/login-api/internal/auth"
)

// AdminAuthority guards the administrative routes.
const AdminAuthority = "ROLE_ADMIN"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Every /api request passes through the
// authentication interceptor; only guarded routes require an identity.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	users := api.Group("/users")
	users.Post("/register", cfg.Users.Register)
	users.Post("/login", cfg.Users.Login)
	users.Get("/me", auth.RequireAuthenticated(), cfg.Users.Me)

	admin := api.Group("/admin", auth.RequireAuthority(AdminAuthority))
	admin.Get("/ping", cfg.Users.AdminPing)
}
