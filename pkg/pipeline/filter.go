package pipeline

const DefaultThreshold = 0.7

// FilterByConfidence keeps detections whose score is at least threshold.
// The relative order of kept detections is preserved.
func FilterByConfidence(detections []RawDetection, threshold float64) ([]RawDetection, error) {
	if err := validateUnitInterval("threshold", threshold); err != nil {
		return nil, err
	}

	kept := make([]RawDetection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= threshold {
			kept = append(kept, d)
		}
	}
	return kept, nil
}
