package pipeline

import (
	"math"
	"math/rand"
	"testing"
)

func fillRect(m Mask, x1, y1, x2, y2 int, v float32) {
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			m.Set(x, y, v)
		}
	}
}

func fillDisc(m Mask, cx, cy, r int, v float32) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				m.Set(x, y, v)
			}
		}
	}
}

func signedArea(vs []Vertex) float64 {
	area := 0.0
	for i := range vs {
		j := (i + 1) % len(vs)
		area += float64(vs[i][0]*vs[j][1] - vs[j][0]*vs[i][1])
	}
	return area / 2
}

func bounds(vs []Vertex) (minX, minY, maxX, maxY int) {
	minX, minY = math.MaxInt, math.MaxInt
	maxX, maxY = math.MinInt, math.MinInt
	for _, v := range vs {
		minX = min(minX, v[0])
		minY = min(minY, v[1])
		maxX = max(maxX, v[0])
		maxY = max(maxY, v[1])
	}
	return
}

func assertValidPolygon(t *testing.T, vs []Vertex) {
	t.Helper()
	if len(vs) < 3 {
		t.Fatalf("expected at least 3 vertices, got %d", len(vs))
	}
	if vs[0] == vs[len(vs)-1] {
		t.Fatalf("closing vertex must not be repeated: %v", vs)
	}
	if a := signedArea(vs); a <= 0 {
		t.Fatalf("expected counter-clockwise winding, signed area %v", a)
	}
}

func assertSimple(t *testing.T, vs []Vertex) {
	t.Helper()
	if !isSimple(vs) {
		t.Fatalf("polygon is not simple: %v", vs)
	}
}

func TestExtractPolygon_Rectangle(t *testing.T) {
	m := NewMask(40, 40)
	fillRect(m, 10, 10, 19, 19, 0.9)

	vs := ExtractPolygon(m, Box{10, 10, 20, 20}, DefaultEpsilonRatio)
	assertValidPolygon(t, vs)

	if len(vs) != 4 {
		t.Fatalf("expected 4 corners, got %v", vs)
	}
	want := map[Vertex]bool{{10, 10}: true, {19, 10}: true, {19, 19}: true, {10, 19}: true}
	for _, v := range vs {
		if !want[v] {
			t.Fatalf("unexpected vertex %v in %v", v, vs)
		}
	}
}

func TestExtractPolygon_EmptyMaskFallsBackToBox(t *testing.T) {
	m := NewMask(40, 40)
	fillRect(m, 0, 0, 39, 39, 0.49)

	vs := ExtractPolygon(m, Box{5.2, 6.7, 30.4, 35.5}, DefaultEpsilonRatio)
	want := []Vertex{{5, 7}, {30, 7}, {30, 36}, {5, 36}}
	if len(vs) != len(want) {
		t.Fatalf("expected box corners, got %v", vs)
	}
	for i := range want {
		if vs[i] != want[i] {
			t.Fatalf("vertex %d: got %v, want %v", i, vs[i], want[i])
		}
	}
	assertValidPolygon(t, vs)
}

func TestExtractPolygon_MissingMaskData(t *testing.T) {
	vs := ExtractPolygon(Mask{}, Box{0, 0, 10, 10}, DefaultEpsilonRatio)
	if len(vs) != 4 {
		t.Fatalf("expected fallback corners, got %v", vs)
	}
}

func TestExtractPolygon_ThresholdIsInclusive(t *testing.T) {
	m := NewMask(20, 20)
	fillRect(m, 2, 2, 12, 12, MaskThreshold)

	vs := ExtractPolygon(m, Box{0, 0, 20, 20}, DefaultEpsilonRatio)
	minX, minY, maxX, maxY := bounds(vs)
	if minX != 2 || minY != 2 || maxX != 12 || maxY != 12 {
		t.Fatalf("expected polygon traced from the mask, got %v", vs)
	}
}

func TestExtractPolygon_PicksLargestRegion(t *testing.T) {
	m := NewMask(60, 60)
	fillRect(m, 2, 2, 6, 6, 0.8)
	fillRect(m, 20, 20, 50, 40, 0.8)

	vs := ExtractPolygon(m, Box{0, 0, 60, 60}, DefaultEpsilonRatio)
	assertValidPolygon(t, vs)

	minX, minY, maxX, maxY := bounds(vs)
	if minX != 20 || minY != 20 || maxX != 50 || maxY != 40 {
		t.Fatalf("expected the larger region, got bounds (%d,%d,%d,%d)", minX, minY, maxX, maxY)
	}
}

func TestExtractPolygon_DiagonalNeckIsOpened(t *testing.T) {
	m := NewMask(20, 20)
	fillRect(m, 2, 2, 5, 5, 0.9)
	fillRect(m, 6, 6, 9, 9, 0.9)

	vs := ExtractPolygon(m, Box{0, 0, 20, 20}, 0.001)
	assertValidPolygon(t, vs)
	assertSimple(t, vs)

	minX, minY, maxX, maxY := bounds(vs)
	if minX != 2 || minY != 2 || maxX != 5 || maxY != 5 {
		t.Fatalf("expected the first block after opening, got bounds (%d,%d,%d,%d)", minX, minY, maxX, maxY)
	}
}

func TestExtractPolygon_SquaresTouchingAtPixel(t *testing.T) {
	m := NewMask(50, 50)
	fillRect(m, 5, 5, 20, 20, 0.9)
	fillRect(m, 22, 22, 40, 40, 0.9)
	m.Set(21, 21, 0.9)

	vs := ExtractPolygon(m, Box{0, 0, 45, 45}, DefaultEpsilonRatio)
	assertValidPolygon(t, vs)
	assertSimple(t, vs)

	minX, minY, maxX, maxY := bounds(vs)
	if minX != 22 || minY != 22 || maxX != 40 || maxY != 40 {
		t.Fatalf("expected the larger square, got bounds (%d,%d,%d,%d)", minX, minY, maxX, maxY)
	}
}

func TestExtractPolygon_SpurIsRemoved(t *testing.T) {
	m := NewMask(60, 60)
	fillRect(m, 10, 10, 20, 20, 0.9)
	fillRect(m, 21, 12, 50, 12, 0.9)

	vs := ExtractPolygon(m, Box{0, 0, 60, 60}, DefaultEpsilonRatio)
	assertValidPolygon(t, vs)
	assertSimple(t, vs)

	minX, minY, maxX, maxY := bounds(vs)
	if minX != 10 || minY != 10 || maxX != 20 || maxY != 20 {
		t.Fatalf("expected the spur to be dropped, got bounds (%d,%d,%d,%d)", minX, minY, maxX, maxY)
	}
}

func TestExtractPolygon_IgnoresMaskOutsideBox(t *testing.T) {
	m := NewMask(100, 100)
	fillRect(m, 0, 0, 90, 90, 0.9)

	vs := ExtractPolygon(m, Box{10, 10, 30, 30}, DefaultEpsilonRatio)
	assertValidPolygon(t, vs)

	minX, minY, maxX, maxY := bounds(vs)
	if minX != 10 || minY != 10 || maxX != 30 || maxY != 30 {
		t.Fatalf("expected polygon clipped to the box, got bounds (%d,%d,%d,%d)", minX, minY, maxX, maxY)
	}
}

func TestExtractPolygon_BoxOutsideMask(t *testing.T) {
	m := NewMask(40, 40)
	fillRect(m, 0, 0, 39, 39, 0.9)

	vs := ExtractPolygon(m, Box{50, 50, 60, 60}, DefaultEpsilonRatio)
	if len(vs) != 4 || vs[0] != (Vertex{50, 50}) {
		t.Fatalf("expected box corners, got %v", vs)
	}
}

func TestExtractPolygon_SpeckledDiscsStaySimple(t *testing.T) {
	const size = 96

	for seed := int64(0); seed < 200; seed++ {
		rnd := rand.New(rand.NewSource(seed))
		m := NewMask(size, size)
		for i := 0; i < 1+rnd.Intn(3); i++ {
			fillDisc(m, 20+rnd.Intn(57), 20+rnd.Intn(57), 4+rnd.Intn(15), 1)
		}
		for i := 0; i < 300; i++ {
			m.Set(rnd.Intn(size), rnd.Intn(size), 1)
		}
		for i := 0; i < 150; i++ {
			m.Set(rnd.Intn(size), rnd.Intn(size), 0)
		}

		box := Box{
			X1: float64(rnd.Intn(31)),
			Y1: float64(rnd.Intn(31)),
			X2: float64(60 + rnd.Intn(36)),
			Y2: float64(60 + rnd.Intn(36)),
		}
		vs := ExtractPolygon(m, box, DefaultEpsilonRatio)
		if !isSimple(vs) || signedArea(vs) <= 0 {
			t.Fatalf("seed %d: expected a simple counter-clockwise polygon, got %v", seed, vs)
		}

		minX, minY, maxX, maxY := bounds(vs)
		if float64(minX) < box.X1 || float64(minY) < box.Y1 || float64(maxX) > box.X2 || float64(maxY) > box.Y2 {
			t.Fatalf("seed %d: polygon bounds (%d,%d,%d,%d) outside box %v", seed, minX, minY, maxX, maxY, box)
		}
	}
}

func TestIsSimple(t *testing.T) {
	tests := []struct {
		name string
		vs   []Vertex
		want bool
	}{
		{"square", []Vertex{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, true},
		{"concave", []Vertex{{0, 0}, {10, 0}, {5, 5}, {10, 10}, {0, 10}}, true},
		{"bowtie", []Vertex{{0, 0}, {10, 10}, {10, 0}, {0, 10}}, false},
		{"repeated vertex", []Vertex{{0, 0}, {5, 5}, {10, 0}, {10, 10}, {5, 5}, {0, 10}}, false},
		{"vertex on edge", []Vertex{{0, 0}, {10, 0}, {10, 10}, {5, 0}, {0, 10}}, false},
		{"fold back", []Vertex{{0, 0}, {10, 0}, {5, 0}, {5, 10}}, false},
		{"two vertices", []Vertex{{0, 0}, {1, 1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSimple(tt.vs); got != tt.want {
				t.Fatalf("isSimple(%v) = %v, want %v", tt.vs, got, tt.want)
			}
		})
	}
}

func TestExtractPolygon_LShape(t *testing.T) {
	m := NewMask(50, 50)
	fillRect(m, 5, 5, 14, 40, 0.9)
	fillRect(m, 5, 31, 40, 40, 0.9)

	vs := ExtractPolygon(m, Box{5, 5, 41, 41}, DefaultEpsilonRatio)
	assertValidPolygon(t, vs)

	if len(vs) < 6 {
		t.Fatalf("expected the concave corner to survive simplification, got %v", vs)
	}
	minX, minY, maxX, maxY := bounds(vs)
	if minX < 5 || minY < 5 || maxX > 41 || maxY > 41 {
		t.Fatalf("polygon escapes the box: %v", vs)
	}
}

func TestExtractPolygon_Disc(t *testing.T) {
	m := NewMask(100, 100)
	fillDisc(m, 50, 50, 30, 1)

	box := Box{20, 20, 81, 81}
	vs := ExtractPolygon(m, box, DefaultEpsilonRatio)
	assertValidPolygon(t, vs)

	minX, minY, maxX, maxY := bounds(vs)
	if float64(minX) < box.X1 || float64(minY) < box.Y1 || float64(maxX) > box.X2 || float64(maxY) > box.Y2 {
		t.Fatalf("polygon bounds (%d,%d,%d,%d) outside box %v", minX, minY, maxX, maxY, box)
	}
	if len(vs) < 8 {
		t.Fatalf("expected a reasonable approximation of a disc, got %d vertices", len(vs))
	}
}

func TestExtractPolygon_DegenerateRegions(t *testing.T) {
	box := Box{0, 0, 10, 10}

	single := NewMask(10, 10)
	single.Set(4, 4, 1)
	if vs := ExtractPolygon(single, box, DefaultEpsilonRatio); len(vs) != 4 || vs[0] != (Vertex{0, 0}) {
		t.Fatalf("single pixel should fall back to box corners, got %v", vs)
	}

	line := NewMask(10, 10)
	fillRect(line, 1, 3, 8, 3, 1)
	if vs := ExtractPolygon(line, box, DefaultEpsilonRatio); len(vs) != 4 || vs[2] != (Vertex{10, 10}) {
		t.Fatalf("one pixel wide line should fall back to box corners, got %v", vs)
	}
}

func TestExtractPolygon_LargeEpsilonKeepsTriangle(t *testing.T) {
	m := NewMask(40, 40)
	fillRect(m, 5, 5, 30, 30, 1)

	vs := ExtractPolygon(m, Box{5, 5, 31, 31}, 0.5)
	assertValidPolygon(t, vs)
}
