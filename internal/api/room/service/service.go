package roomService

import (
	"RoomDetection/internal/api/room"
	"RoomDetection/pkg/inference"
	"RoomDetection/pkg/pipeline"
	"RoomDetection/pkg/redis"
	"RoomDetection/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IRoomService interface {
	DetectRooms(ctx context.Context, input room.DetectInput) (*room.DetectResponse, error)
	Health() room.HealthResponse
}

// ModelHandle is the part of the model lifecycle the service depends on.
type ModelHandle interface {
	inference.Source
	Ready() bool
	Status() inference.Status
}

type roomService struct {
	log      *logrus.Logger
	model    ModelHandle
	utils    utils.IUtils
	cache    redis.IResultCache
	defaults pipeline.Options
}

func NewRoomService(log *logrus.Logger, model ModelHandle, utils utils.IUtils, cache redis.IResultCache, defaults pipeline.Options) IRoomService {
	if cache == nil {
		cache = redis.Disabled()
	}

	return &roomService{
		log:      log,
		model:    model,
		utils:    utils,
		cache:    cache,
		defaults: defaults,
	}
}
