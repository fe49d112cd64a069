// Package pipeline turns raw instance-segmentation output into deduplicated
// room geometries.
//
// Every stage is a pure function over its inputs. Nothing is cached between
// calls, so Run is safe to call from many goroutines at once.
package pipeline

import "math"

// Box is an axis-aligned rectangle in pixel space. X1,Y1 is the top-left
// corner and X2,Y2 the bottom-right corner.
type Box struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

func (b Box) Width() float64 {
	return math.Max(0, b.X2-b.X1)
}

func (b Box) Height() float64 {
	return math.Max(0, b.Y2-b.Y1)
}

// Area is zero for inverted or collapsed boxes.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// Mask is a per-pixel foreground probability map laid out row-major.
// A Mask with no data is treated as empty.
type Mask struct {
	Width  int
	Height int
	Data   []float32
}

func NewMask(width, height int) Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Mask{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// At returns the probability at x,y, or 0 outside the mask.
func (m Mask) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	idx := y*m.Width + x
	if idx >= len(m.Data) {
		return 0
	}
	return m.Data[idx]
}

func (m Mask) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Data[y*m.Width+x] = v
}

// RawDetection is one candidate object as produced by the detection model.
type RawDetection struct {
	Box   Box
	Mask  Mask
	Score float64
	Label int
}

// ImageSize is the pixel size of the source image.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Vertex is an integer pixel coordinate, encoded as [x, y].
type Vertex [2]int

// PixelBox is a Box rounded to integer pixels.
type PixelBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Room is a single detected room as it appears in the response.
type Room struct {
	ID          string   `json:"id"`
	BoundingBox [4]int   `json:"bounding_box"`
	BBoxPixels  PixelBox `json:"bbox_pixels"`
	Vertices    []Vertex `json:"vertices"`
	Confidence  float64  `json:"confidence"`
	NameHint    *string  `json:"name_hint"`
}

// Result is the assembled response of one detection request.
type Result struct {
	ImageSize  ImageSize `json:"image_size"`
	TotalRooms int       `json:"total_rooms"`
	Rooms      []Room    `json:"rooms"`
}
