package middleware

import (
	"RoomDetection/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	NewCORSMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type Config struct {
	RateLimit    float64
	RateBurst    int
	AllowOrigins string
}

func DefaultConfig() Config {
	return Config{
		RateLimit:    10,
		RateBurst:    20,
		AllowOrigins: "*",
	}
}

type middleware struct {
	rateLimitter        *rateLimiter
	requestIDMiddleware fiber.Handler
	ids                 utils.IUtils
	allowOrigins        string
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, cfg Config) Middleware {
	defaults := DefaultConfig()
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaults.RateBurst
	}
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = defaults.AllowOrigins
	}

	m := &middleware{
		rateLimitter: newRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		ids:          utils.New(),
		allowOrigins: cfg.AllowOrigins,
		log:          logger,
	}
	m.requestIDMiddleware = m.newRequestIDMiddleware()

	return m
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDHeader).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}

func (m *middleware) NewCORSMiddleware() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  m.allowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "*",
		ExposeHeaders: RequestIDHeader,
	})
}
