package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/audit"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

// RequestID returns the id assigned by the requestid middleware, or ""
// when it is not installed.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
	return id
}

// RequestInfo copies the caller's request id, IP and user agent into the
// request's user context so audit events can be attributed. It must run
// after requestid.
func RequestInfo() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := audit.WithRequestInfo(c.UserContext(), audit.RequestInfo{
			RequestID: RequestID(c),
			IPAddress: c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		})
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func statusOf(err error) int {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}
