package roomHandler

import (
	roomService "RoomDetection/internal/api/room/service"
	"RoomDetection/internal/middleware"
	"RoomDetection/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"time"
)

type RoomHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	roomService    roomService.IRoomService
	utils          utils.IUtils
	requestTimeout time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	rs roomService.IRoomService,
	utils utils.IUtils,
	requestTimeout time.Duration,
) *RoomHandler {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	return &RoomHandler{
		roomService:    rs,
		log:            log,
		validator:      validator,
		middleware:     middleware,
		utils:          utils,
		requestTimeout: requestTimeout,
	}
}

func (h *RoomHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	rooms := srv.Group("/rooms")
	rooms.Post("/detect", h.middleware.NewRateLimiter, h.DetectRooms)
	rooms.Get("/health", h.Health)

	rooms.Use("/ws", wsMiddleware, h.middleware.NewRateLimiter)
	rooms.Get("/ws", websocket.New(h.handleDetectWebSocket))
}

// StartRoot mounts the unversioned routes served at the application root.
func (h *RoomHandler) StartRoot(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Post("/detect", h.middleware.NewRateLimiter, h.DetectRooms)
}
