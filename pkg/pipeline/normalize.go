package pipeline

import "math"

// NormalizedScale is the upper bound of the normalized coordinate space.
const NormalizedScale = 1000

// NormalizeCoordinate maps a pixel coordinate onto [0, NormalizedScale]
// relative to dim. dim must be positive.
func NormalizeCoordinate(v float64, dim int) int {
	n := math.Round(v / float64(dim) * NormalizedScale)
	if n < 0 {
		return 0
	}
	if n > NormalizedScale {
		return NormalizedScale
	}
	return int(n)
}

// DenormalizeCoordinate is the inverse of NormalizeCoordinate, up to the
// rounding error of the normalized grid.
func DenormalizeCoordinate(n int, dim int) float64 {
	return float64(n) / NormalizedScale * float64(dim)
}

// NormalizeBox normalizes x coordinates by the image width and y coordinates
// by the image height.
func NormalizeBox(b Box, size ImageSize) [4]int {
	return [4]int{
		NormalizeCoordinate(b.X1, size.Width),
		NormalizeCoordinate(b.Y1, size.Height),
		NormalizeCoordinate(b.X2, size.Width),
		NormalizeCoordinate(b.Y2, size.Height),
	}
}

func roundBox(b Box) PixelBox {
	return PixelBox{
		X1: int(math.Round(b.X1)),
		Y1: int(math.Round(b.Y1)),
		X2: int(math.Round(b.X2)),
		Y2: int(math.Round(b.Y2)),
	}
}
