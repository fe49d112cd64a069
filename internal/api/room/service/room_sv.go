package roomService

import (
	"RoomDetection/internal/api/room"
	contextPkg "RoomDetection/pkg/context"
	"RoomDetection/pkg/inference"
	"RoomDetection/pkg/log"
	"RoomDetection/pkg/pipeline"
	"RoomDetection/pkg/redis"
	"RoomDetection/pkg/response"
	"errors"
	"golang.org/x/net/context"
	"net/http"
)

func (s *roomService) options(input room.DetectInput) pipeline.Options {
	opts := s.defaults
	if input.Threshold != nil {
		opts.Threshold = *input.Threshold
	}
	if input.OverlapThreshold != nil {
		opts.OverlapThreshold = *input.OverlapThreshold
	}
	opts.NameHints = input.NameHints
	return opts
}

func (s *roomService) DetectRooms(ctx context.Context, input room.DetectInput) (*room.DetectResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	opts := s.options(input)
	if err := opts.Validate(); err != nil {
		return nil, response.Wrap(http.StatusBadRequest, err)
	}

	if !s.model.Ready() {
		return nil, room.ErrModelNotLoaded
	}

	cacheKey := redis.ResultKey(input.Image, opts)
	if cached, ok := s.cachedResult(ctx, requestID, cacheKey); ok {
		return cached, nil
	}

	size, err := s.utils.DecodeImageSize(input.Image)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to decode uploaded image")
		return nil, room.ErrImageDecode
	}

	detections, err := s.model.Detect(ctx, inference.Image{Data: input.Image, Size: size})
	if err != nil {
		switch {
		case errors.Is(err, inference.ErrModelNotLoaded), errors.Is(err, inference.ErrNotConnected):
			return nil, room.ErrModelNotLoaded
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return nil, err
		}
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Inference request failed")
		return nil, room.ErrInferenceFailed
	}

	result, stats, err := pipeline.RunWithStats(detections, size, opts)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidParameter) || errors.Is(err, pipeline.ErrInvalidImageMetadata) {
			return nil, response.Wrap(http.StatusBadRequest, err)
		}
		return nil, err
	}

	s.log.WithFields(log.Fields{
		"request_id":        requestID,
		"width":             size.Width,
		"height":            size.Height,
		"threshold":         opts.Threshold,
		"overlap_threshold": opts.OverlapThreshold,
		"raw":               stats.Raw,
		"confident":         stats.Confident,
		"rooms":             stats.Surviving,
	}).Info("Room detection completed")

	if err := s.cache.SetResult(ctx, cacheKey, result); err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to cache detection result")
	}

	return result, nil
}

func (s *roomService) cachedResult(ctx context.Context, requestID, key string) (*room.DetectResponse, bool) {
	result, ok, err := s.cache.GetResult(ctx, key)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Result cache lookup failed")
		return nil, false
	}
	if ok {
		s.log.WithFields(log.Fields{
			"request_id":  requestID,
			"total_rooms": result.TotalRooms,
		}).Info("Room detection served from cache")
	}
	return result, ok
}

func (s *roomService) Health() room.HealthResponse {
	status := s.model.Status()

	var device *string
	if status.Device != "" {
		device = &status.Device
	}

	return room.HealthResponse{
		Status:      "healthy",
		ModelLoaded: status.ModelLoaded,
		Device:      device,
	}
}
