package config

import (
	"RoomDetection/pkg/inference"
	"RoomDetection/pkg/pipeline"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type stubBackend struct {
	status inference.Status
}

func (b *stubBackend) Detect(ctx context.Context, img inference.Image) ([]pipeline.RawDetection, error) {
	return nil, nil
}

func (b *stubBackend) Connect(ctx context.Context) error { return nil }

func (b *stubBackend) Status(ctx context.Context) (inference.Status, error) { return b.status, nil }

func (b *stubBackend) Close() error { return nil }

func TestLoadEnv_Defaults(t *testing.T) {
	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}

	if env.AppPort != DefaultPort || env.InferenceURL != DefaultInferenceURL {
		t.Fatalf("unexpected defaults %+v", env)
	}
	opts := env.PipelineOptions()
	if opts.Threshold != pipeline.DefaultThreshold || opts.OverlapThreshold != pipeline.DefaultOverlapThreshold {
		t.Fatalf("unexpected pipeline options %+v", opts)
	}
	if env.MaxUploadBytes() != 50*1024*1024 {
		t.Fatalf("unexpected upload limit %d", env.MaxUploadBytes())
	}
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DEFAULT_THRESHOLD", "0.5")
	t.Setenv("SIMPLIFY_EPSILON_RATIO", "0.02")
	t.Setenv("INFERENCE_TIMEOUT_SECONDS", "5")
	t.Setenv("RATE_LIMIT_BURST", "3")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if env.AppPort != "9090" || env.AppEnv != "production" {
		t.Fatalf("unexpected env %+v", env)
	}
	if env.PipelineOptions().Threshold != 0.5 || env.PipelineOptions().EpsilonRatio != 0.02 {
		t.Fatalf("overrides not applied %+v", env.PipelineOptions())
	}
	if env.WebsocketConfig().ReadTimeout.Seconds() != 5 {
		t.Fatalf("unexpected read timeout %v", env.WebsocketConfig().ReadTimeout)
	}
	if env.MiddlewareConfig().RateBurst != 3 {
		t.Fatalf("unexpected burst %d", env.MiddlewareConfig().RateBurst)
	}
}

func TestLoadEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"DEFAULT_THRESHOLD":         "1.2",
		"DEFAULT_OVERLAP_THRESHOLD": "abc",
		"REQUEST_TIMEOUT_SECONDS":   "0",
		"APP_ENV":                   "staging",
		"MAX_UPLOAD_MB":             "ten",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := LoadEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func newTestServer(t *testing.T, status inference.Status) *Server {
	t.Helper()
	logger := quietLogger()

	handle := inference.NewHandle(&stubBackend{status: status}, logger)
	_ = handle.Initialize(context.Background())

	env := defaultEnv()
	env.AppEnv = "test"

	server, err := NewServer(
		WithFiber(NewFiber(logger, env)),
		WithLogger(logger),
		WithEnv(env),
		WithValidator(NewValidator()),
		WithModelHandle(handle),
		WithMiddleware(env.MiddlewareConfig()),
		WithUtils(env.MaxUploadBytes()),
	)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.RegisterHandler()
	server.Mount()
	return server
}

func TestNewServer_RequiresModelHandle(t *testing.T) {
	logger := quietLogger()
	_, err := NewServer(WithFiber(NewFiber(logger, nil)), WithLogger(logger))
	if err == nil {
		t.Fatal("expected error without model handle")
	}
}

func TestServer_Routes(t *testing.T) {
	app := newTestServer(t, inference.Status{ModelLoaded: true, Device: "cpu"}).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var health map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["model_loaded"] != true || health["device"] != "cpu" {
		t.Fatalf("unexpected health %v", health)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestServer_ModelNotLoaded(t *testing.T) {
	app := newTestServer(t, inference.Status{}).App()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/detect", strings.NewReader(""))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a request without file, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var health map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["model_loaded"] != false || health["device"] != nil {
		t.Fatalf("unexpected health %v", health)
	}
}
