package config

import (
	roomHandler "RoomDetection/internal/api/room/handler"
	roomService "RoomDetection/internal/api/room/service"
	"RoomDetection/internal/middleware"
	"RoomDetection/pkg/inference"
	"RoomDetection/pkg/pipeline"
	"RoomDetection/pkg/redis"
	"RoomDetection/pkg/utils"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"time"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	env        *Env
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	model      *inference.Handle
	cache      redis.IResultCache
	handlers   []handler
	rootRoutes []rootHandler
}

type handler interface {
	Start(srv fiber.Router)
}

type rootHandler interface {
	StartRoot(app fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.model == nil {
		return nil, fmt.Errorf("model handle is required")
	}
	if server.env == nil {
		server.env = defaultEnv()
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New(utils.WithMaxFileSize(server.env.MaxUploadBytes()))
	}
	if server.cache == nil {
		server.cache = redis.Disabled()
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, server.env.MiddlewareConfig())
	}

	return server, nil
}

func defaultEnv() *Env {
	return &Env{
		AppPort:                 DefaultPort,
		AppEnv:                  defaultAppEnv,
		InferenceURL:            DefaultInferenceURL,
		InferenceTimeoutSeconds: DefaultInferenceTimeoutSecs,
		RequestTimeoutSeconds:   DefaultRequestTimeoutSecs,
		DefaultThreshold:        pipeline.DefaultThreshold,
		DefaultOverlapThreshold: pipeline.DefaultOverlapThreshold,
		SimplifyEpsilonRatio:    pipeline.DefaultEpsilonRatio,
		MaxUploadMB:             DefaultMaxUploadMB,
		CacheTTLSeconds:         DefaultCacheTTLSeconds,
		RateLimitRPS:            middleware.DefaultConfig().RateLimit,
		RateLimitBurst:          middleware.DefaultConfig().RateBurst,
		CORSAllowOrigins:        defaultAllowOrigins,
	}
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithEnv(env *Env) ServerOption {
	return func(s *Server) error {
		s.env = env
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithModelHandle attaches the inference handle owned by the caller. The
// server never initializes or shuts the handle down.
func WithModelHandle(model *inference.Handle) ServerOption {
	return func(s *Server) error {
		s.model = model
		return nil
	}
}

func WithResultCache(cache redis.IResultCache) ServerOption {
	return func(s *Server) error {
		s.cache = cache
		return nil
	}
}

func WithMiddleware(cfg middleware.Config) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, cfg)
		return nil
	}
}

func WithUtils(maxFileSize int64) ServerOption {
	return func(s *Server) error {
		s.utils = utils.New(utils.WithMaxFileSize(maxFileSize))
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Room Detection
	roomServices := roomService.NewRoomService(s.log, s.model, s.utils, s.cache, s.env.PipelineOptions())
	roomHandlers := roomHandler.New(s.log, s.validator, s.middleware, roomServices, s.utils, s.env.RequestTimeout())

	s.handlers = append(s.handlers, roomHandlers)
	s.rootRoutes = append(s.rootRoutes, roomHandlers)
}

// App exposes the configured engine after RegisterHandler and Mount.
func (s *Server) App() *fiber.App {
	return s.engine
}

// Mount installs the global middleware and every registered route.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewCORSMiddleware())
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.setupHealthCheck()

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
	for _, h := range s.rootRoutes {
		h.StartRoot(s.engine)
	}
}

func (s *Server) Run() error {
	s.Mount()

	port := s.env.AppPort
	if port == "" {
		port = DefaultPort
	}

	s.log.WithField("port", port).Info("Starting HTTP server")
	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown(timeout time.Duration) error {
	return s.engine.ShutdownWithTimeout(timeout)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
