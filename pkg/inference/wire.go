package inference

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"RoomDetection/pkg/pipeline"

	"github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const statusRequestType = "status"

type statusRequest struct {
	Type string `json:"type"`
}

type statusResponse struct {
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device"`
}

type wireDetection struct {
	Box   []float64 `json:"box"`
	Score float64   `json:"score"`
	Label int       `json:"label"`
	Mask  string    `json:"mask"`
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
	Error      string          `json:"error,omitempty"`
}

func decodeDetectResponse(payload []byte, size pipeline.ImageSize) ([]pipeline.RawDetection, error) {
	var resp detectResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("error unmarshaling detection response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inference server: %s", resp.Error)
	}

	detections := make([]pipeline.RawDetection, 0, len(resp.Detections))
	for i, wd := range resp.Detections {
		if len(wd.Box) != 4 {
			return nil, fmt.Errorf("detection %d: box has %d values", i, len(wd.Box))
		}

		mask, err := decodeMask(wd.Mask, size)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}

		detections = append(detections, pipeline.RawDetection{
			Box: pipeline.Box{
				X1: wd.Box[0],
				Y1: wd.Box[1],
				X2: wd.Box[2],
				Y2: wd.Box[3],
			},
			Mask:  mask,
			Score: wd.Score,
			Label: wd.Label,
		})
	}

	return detections, nil
}

// decodeMask reads a base64 grayscale PNG. Masks that do not match the image
// size are resampled onto it. An absent mask decodes to an empty one.
func decodeMask(encoded string, size pipeline.ImageSize) (pipeline.Mask, error) {
	if encoded == "" {
		return pipeline.NewMask(size.Width, size.Height), nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return pipeline.Mask{}, fmt.Errorf("invalid mask encoding: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return pipeline.Mask{}, fmt.Errorf("invalid mask image: %w", err)
	}

	var gray *image.NRGBA
	b := img.Bounds()
	if b.Dx() != size.Width || b.Dy() != size.Height {
		gray = imaging.Grayscale(imaging.Resize(img, size.Width, size.Height, imaging.Linear))
	} else {
		gray = imaging.Grayscale(img)
	}

	mask := pipeline.NewMask(size.Width, size.Height)
	for y := 0; y < size.Height; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < size.Width; x++ {
			mask.Data[y*size.Width+x] = float32(row[x*4]) / 255
		}
	}

	return mask, nil
}
