package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

// Recover turns a panic in a handler into a 500 response. The stack is
// logged, never returned to the client.
func Recover(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					slog.Any("panic", r),
					slog.String("request_id", RequestID(c)),
					slog.String("path", c.Path()),
					slog.String("method", c.Method()),
					slog.String("stack", string(debug.Stack())),
				)

				_ = c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: ErrorBody{
					Code:      domain.ErrInternal.Code,
					Message:   domain.ErrInternal.Message,
					RequestID: RequestID(c),
				}})
			}
		}()
		return c.Next()
	}
}
