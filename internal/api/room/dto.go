package room

import "RoomDetection/pkg/pipeline"

// DetectQuery holds the optional tuning parameters of a detection request.
// Absent values fall back to the server defaults.
type DetectQuery struct {
	Threshold        *float64 `query:"threshold" validate:"omitempty,gte=0,lte=1"`
	OverlapThreshold *float64 `query:"overlap_threshold" validate:"omitempty,gte=0,lte=1"`
}

type DetectInput struct {
	Image            []byte
	Threshold        *float64
	OverlapThreshold *float64
	NameHints        map[string]string
}

type DetectResponse = pipeline.Result

type HealthResponse struct {
	Status      string  `json:"status"`
	ModelLoaded bool    `json:"model_loaded"`
	Device      *string `json:"device"`
}

type StreamError struct {
	Error string `json:"error"`
}
