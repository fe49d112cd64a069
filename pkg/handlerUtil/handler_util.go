package handlerUtil

import (
	"RoomDetection/internal/api/room"
	"RoomDetection/pkg/inference"
	"RoomDetection/pkg/log"
	"RoomDetection/pkg/pipeline"
	"RoomDetection/pkg/response"
	"RoomDetection/pkg/utils"
	"context"
	"errors"
	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
	"net/http"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Resolve translates an error into its response form. Errors without a
// known mapping resolve to nil.
func Resolve(err error) *response.Error {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		return respErr
	}

	switch {
	case errors.Is(err, pipeline.ErrInvalidParameter):
		return &response.Error{Code: http.StatusBadRequest, Err: err}
	case errors.Is(err, pipeline.ErrInvalidImageMetadata):
		return &response.Error{Code: http.StatusBadRequest, Err: err}
	case errors.Is(err, utils.ErrNoFile):
		return asError(room.ErrNoFileUploaded)
	case errors.Is(err, utils.ErrFileTooLarge):
		return asError(room.ErrFileTooLarge)
	case errors.Is(err, utils.ErrNotAnImage):
		return asError(room.ErrInvalidFileType)
	case errors.Is(err, utils.ErrImageDecode), errors.Is(err, utils.ErrEmptyImageBox):
		return asError(room.ErrImageDecode)
	case errors.Is(err, inference.ErrModelNotLoaded):
		return asError(room.ErrModelNotLoaded)
	case errors.Is(err, inference.ErrNotConnected):
		return asError(room.ErrModelNotLoaded)
	case errors.Is(err, context.DeadlineExceeded):
		return &response.Error{Code: http.StatusRequestTimeout, Err: errors.New(fiberUtils.StatusMessage(http.StatusRequestTimeout))}
	}

	return nil
}

func asError(err error) *response.Error {
	var respErr *response.Error
	errors.As(err, &respErr)
	return respErr
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	if respErr := Resolve(err); respErr != nil {
		fields := log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}
		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
		return c.Status(respErr.Code).JSON(ErrorResponse{Error: respErr.Error()})
	}

	traceID := log.ErrorWithTraceID(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "An unexpected error occurred",
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: fiberUtils.StatusMessage(fiber.StatusRequestTimeout),
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
