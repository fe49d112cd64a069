package main

import (
	"RoomDetection/internal/config"
	"RoomDetection/pkg/inference"
	"RoomDetection/pkg/log"
	"RoomDetection/pkg/redis"
	"context"
	"github.com/joho/godotenv"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "No .env file loaded, using process environment")
	}
	logger := log.NewLogger()

	env, err := config.LoadEnv()
	if err != nil {
		logger.Fatalf("Error loading configuration: %v", err)
	}

	model := inference.NewHandle(
		inference.NewWebsocketBackend(env.WebsocketConfig(), logger),
		logger,
		inference.WithRefreshTimeout(env.InferenceTimeout()),
	)

	initCtx, cancel := context.WithTimeout(context.Background(), env.InferenceTimeout())
	if err := model.Initialize(initCtx); err != nil {
		logger.Errorf("Model initialization failed, serving with model unavailable: %v", err)
	}
	cancel()

	resultCache := redis.New(env.RedisConfig(), logger)

	server, err := config.NewServer(
		config.WithFiber(config.NewFiber(logger, env)),
		config.WithLogger(logger),
		config.WithEnv(env),
		config.WithValidator(config.NewValidator()),
		config.WithModelHandle(model),
		config.WithResultCache(resultCache),
		config.WithMiddleware(env.MiddlewareConfig()),
		config.WithUtils(env.MaxUploadBytes()),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(shutdownTimeout); err != nil {
		logger.Errorf("Error shutting down server: %v", err)
	}
	if err := model.Shutdown(); err != nil {
		logger.Errorf("Error shutting down model: %v", err)
	}
	if err := resultCache.Close(); err != nil {
		logger.Errorf("Error closing result cache: %v", err)
	}
}
