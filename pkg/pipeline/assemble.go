package pipeline

import "fmt"

// RoomID formats the identifier of the room at zero-based position i.
func RoomID(i int) string {
	return fmt.Sprintf("room_%03d", i+1)
}

// Assemble builds the response for detections that already survived
// filtering and overlap resolution, in canonical order. vertices holds the
// polygon of each detection at the same index.
//
// nameHints overrides the name_hint of a room by its id. Rooms without an
// override get a null name_hint.
func Assemble(size ImageSize, detections []RawDetection, vertices [][]Vertex, nameHints map[string]string) (*Result, error) {
	if err := validateImageSize(size); err != nil {
		return nil, err
	}
	if len(vertices) != len(detections) {
		return nil, fmt.Errorf("%w: %d polygons for %d detections", ErrInvalidParameter, len(vertices), len(detections))
	}

	rooms := make([]Room, 0, len(detections))
	for i, d := range detections {
		id := RoomID(i)

		var hint *string
		if h, ok := nameHints[id]; ok {
			hint = &h
		}

		rooms = append(rooms, Room{
			ID:          id,
			BoundingBox: NormalizeBox(d.Box, size),
			BBoxPixels:  roundBox(d.Box),
			Vertices:    vertices[i],
			Confidence:  d.Score,
			NameHint:    hint,
		})
	}

	return &Result{
		ImageSize:  size,
		TotalRooms: len(rooms),
		Rooms:      rooms,
	}, nil
}
