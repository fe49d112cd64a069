package middleware

import (
	contextPkg "RoomDetection/pkg/context"
	"github.com/gofiber/fiber/v2"
	"regexp"
	"time"
)

const RequestIDHeader = "X-Request-ID"

// Incoming ids end up in log fields and websocket frames, so only short
// token-like values are kept.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

func (m *middleware) newRequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)

		if !validRequestID.MatchString(requestID) {
			requestID, _ = m.ids.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDHeader, requestID)
		c.Set(RequestIDHeader, requestID)
		c.SetUserContext(contextPkg.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}
