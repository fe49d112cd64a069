package roomHandler

import (
	"RoomDetection/internal/api/room"
	contextPkg "RoomDetection/pkg/context"
	"RoomDetection/pkg/handlerUtil"
	"RoomDetection/pkg/log"
	"RoomDetection/pkg/response"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
	"net/http"
)

func (h *RoomHandler) DetectRooms(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing room detection request")

	var query room.DetectQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.Handle(ctx, requestID, response.Wrap(http.StatusBadRequest, err), ctx.Path(), "parse_query")
	}

	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		return errHandler.Handle(ctx, requestID, room.ErrNoFileUploaded, ctx.Path(), "read_form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing file upload")

	if err := h.utils.ValidateImageFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
	}

	image, err := h.utils.ReadFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_file")
	}

	var nameHints map[string]string
	if raw := ctx.FormValue("name_hints"); raw != "" {
		if err := jsoniter.UnmarshalFromString(raw, &nameHints); err != nil {
			return errHandler.Handle(ctx, requestID, room.ErrInvalidNameHints, ctx.Path(), "parse_name_hints")
		}
	}

	result, err := h.roomService.DetectRooms(c, room.DetectInput{
		Image:            image,
		Threshold:        query.Threshold,
		OverlapThreshold: query.OverlapThreshold,
		NameHints:        nameHints,
	})
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_rooms")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":  requestID,
			"path":        ctx.Path(),
			"total_rooms": result.TotalRooms,
		}).Info("Room detection successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *RoomHandler) Health(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.roomService.Health())
}
