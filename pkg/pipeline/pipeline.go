package pipeline

// Options tunes a single pipeline run. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	Threshold        float64
	OverlapThreshold float64
	EpsilonRatio     float64
	NameHints        map[string]string
}

func DefaultOptions() Options {
	return Options{
		Threshold:        DefaultThreshold,
		OverlapThreshold: DefaultOverlapThreshold,
		EpsilonRatio:     DefaultEpsilonRatio,
	}
}

// Validate reports ErrInvalidParameter for thresholds outside [0, 1].
func (o Options) Validate() error {
	if err := validateUnitInterval("threshold", o.Threshold); err != nil {
		return err
	}
	return validateUnitInterval("overlap_threshold", o.OverlapThreshold)
}

// Stats counts detections at each stage of a run.
type Stats struct {
	Raw       int
	Confident int
	Surviving int
}

// Run executes the full post-processing pipeline over the raw output of the
// detection model for one image.
//
// Parameters and image size are validated before any detection is touched.
// An empty detection list is not an error and yields a result with no rooms.
func Run(detections []RawDetection, size ImageSize, opts Options) (*Result, error) {
	result, _, err := RunWithStats(detections, size, opts)
	return result, err
}

func RunWithStats(detections []RawDetection, size ImageSize, opts Options) (*Result, Stats, error) {
	stats := Stats{Raw: len(detections)}

	if err := opts.Validate(); err != nil {
		return nil, stats, err
	}
	if !(opts.EpsilonRatio > 0 && opts.EpsilonRatio <= 1) {
		opts.EpsilonRatio = DefaultEpsilonRatio
	}
	if err := validateImageSize(size); err != nil {
		return nil, stats, err
	}

	confident, err := FilterByConfidence(detections, opts.Threshold)
	if err != nil {
		return nil, stats, err
	}
	stats.Confident = len(confident)

	surviving, err := ResolveOverlaps(confident, opts.OverlapThreshold)
	if err != nil {
		return nil, stats, err
	}
	stats.Surviving = len(surviving)

	polygons := make([][]Vertex, len(surviving))
	for i, d := range surviving {
		polygons[i] = ExtractPolygon(d.Mask, d.Box, opts.EpsilonRatio)
	}

	result, err := Assemble(size, surviving, polygons, opts.NameHints)
	if err != nil {
		return nil, stats, err
	}

	return result, stats, nil
}
