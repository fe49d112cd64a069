package pipeline

import (
	"math"
	"sort"
)

const DefaultOverlapThreshold = 0.3

// IoU returns the intersection-over-union of two boxes. A box with zero area
// has an IoU of 0 with every box, itself included.
func IoU(a, b Box) float64 {
	areaA := a.Area()
	areaB := b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}

	ix1 := math.Max(a.X1, b.X1)
	iy1 := math.Max(a.Y1, b.Y1)
	ix2 := math.Min(a.X2, b.X2)
	iy2 := math.Min(a.Y2, b.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}

	inter := (ix2 - ix1) * (iy2 - iy1)
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ResolveOverlaps performs greedy suppression of duplicate detections.
//
// Detections are visited by descending score, ties broken by their position
// in the input. A detection is discarded when its IoU with any already
// accepted detection is strictly greater than threshold. The returned slice
// is in acceptance order, which is the canonical output order of the
// pipeline.
func ResolveOverlaps(detections []RawDetection, threshold float64) ([]RawDetection, error) {
	if err := validateUnitInterval("overlap_threshold", threshold); err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return []RawDetection{}, nil
	}

	ordered := make([]RawDetection, len(detections))
	copy(ordered, detections)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	accepted := make([]RawDetection, 0, len(ordered))
	for _, candidate := range ordered {
		suppressed := false
		for _, kept := range accepted {
			if IoU(candidate.Box, kept.Box) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			accepted = append(accepted, candidate)
		}
	}

	return accepted, nil
}
