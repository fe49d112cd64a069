package utils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"RoomDetection/pkg/pipeline"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
	_ "golang.org/x/image/webp"
)

const DefaultMaxFileSize = 50 * 1024 * 1024

var (
	ErrNoFile        = errors.New("no file uploaded")
	ErrFileTooLarge  = errors.New("file size exceeds limit")
	ErrNotAnImage    = errors.New("uploaded file is not an image")
	ErrImageDecode   = errors.New("could not decode image")
	ErrEmptyImageBox = errors.New("decoded image has no pixels")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ReadFile(file *multipart.FileHeader) ([]byte, error)
	DecodeImageSize(data []byte) (pipeline.ImageSize, error)
	MaxFileSize() int64
}

type Option func(*utils)

func WithMaxFileSize(n int64) Option {
	return func(u *utils) {
		if n > 0 {
			u.maxFileSize = n
		}
	}
}

type utils struct {
	maxFileSize int64
}

func New(opts ...Option) IUtils {
	u := &utils{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *utils) MaxFileSize() int64 {
	return u.maxFileSize
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	// Clients that don't sniff the type are let through; decoding decides.
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !strings.HasPrefix(contentType, "image/") {
		return ErrNotAnImage
	}

	return nil
}

func (u *utils) ReadFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, u.maxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > u.maxFileSize {
		return nil, ErrFileTooLarge
	}

	return data, nil
}

// DecodeImageSize decodes an image and returns its size after applying the
// EXIF orientation, which is the frame the detection model sees.
func (u *utils) DecodeImageSize(data []byte) (pipeline.ImageSize, error) {
	if len(data) == 0 {
		return pipeline.ImageSize{}, ErrImageDecode
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return pipeline.ImageSize{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return pipeline.ImageSize{}, ErrEmptyImageBox
	}

	return pipeline.ImageSize{Width: b.Dx(), Height: b.Dy()}, nil
}
