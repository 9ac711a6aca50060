package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/login-api/internal/auth"
	"github.com/spec-kit/login-api/internal/observability"
	apperrors "github.com/spec-kit/login-api/pkg/util"
)

// RegisterMiddlewares installs, outermost first: request logging, the request
// deadline, and error rendering with panic recovery.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(deadline(timeout))
	}
	app.Use(renderErrors(logger, metrics))
}

func deadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func renderErrors(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.Any("request_id", c.Locals("request_id")),
					zap.ByteString("stack", debug.Stack()),
				)
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = writeError(c, logger, metrics, apperrors.ToDomainError(err))
			}
		}()
		return c.Next()
	}
}

// writeError renders {"error":{"code","message","details"}}. A 401 also
// advertises the accepted scheme.
func writeError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, derr *apperrors.DomainError) error {
	metrics.RecordError(c.Path(), c.Method(), derr.Code)

	switch {
	case derr.HTTPStatus >= fiber.StatusInternalServerError:
		logger.Error("request failed", zap.Any("request_id", c.Locals("request_id")), zap.Error(derr))
	case derr.HTTPStatus == fiber.StatusUnauthorized:
		c.Set(fiber.HeaderWWWAuthenticate, auth.BearerScheme)
	}

	body := fiber.Map{"code": derr.Code, "message": derr.Message}
	if len(derr.Details) > 0 {
		body["details"] = derr.Details
	}
	return c.Status(derr.HTTPStatus).JSON(fiber.Map{"error": body})
}
