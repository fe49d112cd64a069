package room

import (
	"RoomDetection/pkg/response"
	"net/http"
)

var (
	ErrImageDecode      = response.NewError(http.StatusBadRequest, "could not decode image")
	ErrNoFileUploaded   = response.NewError(http.StatusBadRequest, "no file uploaded")
	ErrInvalidFileType  = response.NewError(http.StatusBadRequest, "invalid file type, only images are allowed")
	ErrInvalidNameHints = response.NewError(http.StatusBadRequest, "name_hints must be a JSON object of room id to name")
	ErrFileTooLarge     = response.NewError(http.StatusRequestEntityTooLarge, "file too large")
	ErrModelNotLoaded   = response.NewError(http.StatusServiceUnavailable, "model not loaded")
	ErrInferenceFailed  = response.NewError(http.StatusBadGateway, "inference server failed")
)
