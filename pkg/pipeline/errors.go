package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrInvalidImageMetadata = errors.New("invalid image metadata")
)

func validateUnitInterval(name string, v float64) error {
	// NaN fails both comparisons, so check the accepted range positively.
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidParameter, name, v)
	}
	return nil
}

func validateImageSize(size ImageSize) error {
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("%w: image size must be positive, got %dx%d", ErrInvalidImageMetadata, size.Width, size.Height)
	}
	return nil
}
