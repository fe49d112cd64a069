package config

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, env *Env) *fiber.App {
	bodyLimit := DefaultMaxUploadMB * 1024 * 1024
	if env != nil && env.MaxUploadMB > 0 {
		bodyLimit = env.MaxUploadMB * 1024 * 1024
	}

	app := fiber.New(
		fiber.Config{
			AppName:               "Room Detection",
			BodyLimit:             bodyLimit,
			DisableKeepalive:      false,
			StrictRouting:         true,
			CaseSensitive:         true,
			EnablePrintRoutes:     env != nil && env.AppEnv == "development",
			DisableStartupMessage: env != nil && env.AppEnv == "test",
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
		})

	logger.WithField("body_limit", bodyLimit).Debug("Fiber app configured")

	return app
}
