package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/login-api/internal/api/dto"
	"github.com/spec-kit/login-api/internal/auth"
	"github.com/spec-kit/login-api/internal/service"
	apperrors "github.com/spec-kit/login-api/pkg/util"
)

// UsersHandler exposes registration, login and the caller's identity.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST /api/users/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		LoginID:  req.LoginID,
		Password: req.Password,
		Email:    req.Email,
		Age:      req.Age,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.UserResponse{
			ID:      user.ID,
			Name:    user.Name,
			LoginID: user.LoginID,
			Email:   user.Email,
			Age:     user.Age,
		},
	})
}

// Login handles POST /api/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	token, err := h.auth.Login(c.UserContext(), req.LoginID, req.Password, c.IP())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{
			Token:     token.Value,
			TokenType: auth.BearerScheme,
			ExpiresAt: token.ExpiresAt,
		},
	})
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromCtx(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	authorities := identity.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	return c.JSON(fiber.Map{
		"data": dto.IdentityResponse{
			Subject:     identity.Subject,
			Authorities: authorities,
			ExpiresAt:   identity.ExpiresAt,
		},
	})
}

// AdminPing handles GET /api/admin/ping.
func (h *UsersHandler) AdminPing(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromCtx(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"pong": true, "subject": identity.Subject}})
}
