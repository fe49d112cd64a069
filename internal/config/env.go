package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"RoomDetection/internal/middleware"
	"RoomDetection/pkg/inference"
	"RoomDetection/pkg/pipeline"
	"RoomDetection/pkg/redis"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultPort                 = "8000"
	DefaultInferenceURL         = "ws://localhost:8001/api/v1/rooms/infer"
	DefaultInferenceTimeoutSecs = 30
	DefaultRequestTimeoutSecs   = 60
	DefaultMaxUploadMB          = 50
	DefaultCacheTTLSeconds      = 3600
	defaultAllowOrigins         = "*"
	defaultAppEnv               = "development"
)

// Env is the process configuration read from the environment. A .env file,
// when present, is loaded into the environment by main before LoadEnv runs.
type Env struct {
	AppPort                 string  `validate:"required,numeric"`
	AppEnv                  string  `validate:"required,oneof=development production test"`
	InferenceURL            string  `validate:"required,url"`
	InferenceTimeoutSeconds int     `validate:"gte=1,lte=600"`
	RequestTimeoutSeconds   int     `validate:"gte=1,lte=600"`
	DefaultThreshold        float64 `validate:"gte=0,lte=1"`
	DefaultOverlapThreshold float64 `validate:"gte=0,lte=1"`
	SimplifyEpsilonRatio    float64 `validate:"gt=0,lte=0.5"`
	MaxUploadMB             int     `validate:"gte=1,lte=512"`
	RateLimitRPS            float64 `validate:"gt=0"`
	RateLimitBurst          int     `validate:"gte=1"`
	CORSAllowOrigins        string  `validate:"required"`
	RedisAddress            string  `validate:"omitempty,hostname_port"`
	RedisPassword           string
	RedisDB                 int `validate:"gte=0"`
	CacheTTLSeconds         int `validate:"gte=1"`
}

func LoadEnv() (*Env, error) {
	env := &Env{
		AppPort:          getString("APP_PORT", DefaultPort),
		AppEnv:           getString("APP_ENV", defaultAppEnv),
		InferenceURL:     getString("INFERENCE_WS_URL", DefaultInferenceURL),
		CORSAllowOrigins: getString("CORS_ALLOW_ORIGINS", defaultAllowOrigins),
		RedisAddress:     os.Getenv("REDIS_ADDRESS"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if env.InferenceTimeoutSeconds, err = getInt("INFERENCE_TIMEOUT_SECONDS", DefaultInferenceTimeoutSecs); err != nil {
		return nil, err
	}
	if env.RequestTimeoutSeconds, err = getInt("REQUEST_TIMEOUT_SECONDS", DefaultRequestTimeoutSecs); err != nil {
		return nil, err
	}
	if env.DefaultThreshold, err = getFloat("DEFAULT_THRESHOLD", pipeline.DefaultThreshold); err != nil {
		return nil, err
	}
	if env.DefaultOverlapThreshold, err = getFloat("DEFAULT_OVERLAP_THRESHOLD", pipeline.DefaultOverlapThreshold); err != nil {
		return nil, err
	}
	if env.SimplifyEpsilonRatio, err = getFloat("SIMPLIFY_EPSILON_RATIO", pipeline.DefaultEpsilonRatio); err != nil {
		return nil, err
	}
	if env.MaxUploadMB, err = getInt("MAX_UPLOAD_MB", DefaultMaxUploadMB); err != nil {
		return nil, err
	}
	if env.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", middleware.DefaultConfig().RateLimit); err != nil {
		return nil, err
	}
	if env.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", middleware.DefaultConfig().RateBurst); err != nil {
		return nil, err
	}
	if env.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if env.CacheTTLSeconds, err = getInt("CACHE_TTL_SECONDS", DefaultCacheTTLSeconds); err != nil {
		return nil, err
	}

	if err := NewValidator().Struct(env); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return nil, fmt.Errorf("invalid configuration: field %s failed %q", validationErrs[0].Field(), validationErrs[0].Tag())
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return env, nil
}

func (e *Env) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Threshold:        e.DefaultThreshold,
		OverlapThreshold: e.DefaultOverlapThreshold,
		EpsilonRatio:     e.SimplifyEpsilonRatio,
	}
}

func (e *Env) MiddlewareConfig() middleware.Config {
	return middleware.Config{
		RateLimit:    e.RateLimitRPS,
		RateBurst:    e.RateLimitBurst,
		AllowOrigins: e.CORSAllowOrigins,
	}
}

func (e *Env) WebsocketConfig() inference.WebsocketConfig {
	cfg := inference.DefaultWebsocketConfig()
	cfg.URL = e.InferenceURL
	cfg.ReadTimeout = e.InferenceTimeout()
	return cfg
}

func (e *Env) RedisConfig() redis.Config {
	return redis.Config{
		Address:  e.RedisAddress,
		Password: e.RedisPassword,
		DB:       e.RedisDB,
		TTL:      time.Duration(e.CacheTTLSeconds) * time.Second,
	}
}

func (e *Env) InferenceTimeout() time.Duration {
	return time.Duration(e.InferenceTimeoutSeconds) * time.Second
}

func (e *Env) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSeconds) * time.Second
}

func (e *Env) MaxUploadBytes() int64 {
	return int64(e.MaxUploadMB) * 1024 * 1024
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}
