package inference

import (
	"context"
	"errors"

	"RoomDetection/pkg/pipeline"
)

var (
	ErrModelNotLoaded = errors.New("model not loaded")
	ErrNotConnected   = errors.New("not connected to inference server")
)

// Image is an encoded image together with its decoded pixel size.
type Image struct {
	Data []byte
	Size pipeline.ImageSize
}

// Source produces raw detections for an image.
type Source interface {
	Detect(ctx context.Context, img Image) ([]pipeline.RawDetection, error)
}

// Status describes the model behind a Source.
type Status struct {
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device,omitempty"`
}

// Backend is a Source with a connection lifecycle.
type Backend interface {
	Source
	Connect(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	Close() error
}
