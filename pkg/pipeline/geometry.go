package pipeline

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

const (
	// MaskThreshold is the probability at which a mask pixel counts as foreground.
	MaskThreshold = 0.5

	// DefaultEpsilonRatio is the Douglas-Peucker tolerance as a fraction of
	// the contour perimeter.
	DefaultEpsilonRatio = 0.01

	minEpsilon = 1e-3

	maxSimplifyRetries = 4
)

// neighbours in clockwise screen order (y grows downward), starting east.
var neighbours = [8][2]int{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

var fourNeighbours = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// ExtractPolygon converts a detection's mask into a simplified polygon.
//
// Only mask pixels inside the rounded box are considered. The mask is
// binarized at MaskThreshold, the largest 8-connected foreground region is
// traced along its outer boundary, and the boundary is simplified with a
// tolerance of epsilonRatio times its perimeter. The polygon is simple, wound
// counter-clockwise in the (x, y) coordinate plane, and the closing vertex is
// not repeated.
//
// A region whose boundary touches itself at one-pixel necks or spurs is
// opened and traced again. When that still gives no simple polygon the convex
// hull of the region is used. When the mask has no usable region the four
// corners of box are returned.
func ExtractPolygon(mask Mask, box Box, epsilonRatio float64) []Vertex {
	region := largestRegion(mask, roundBox(box))
	if region == nil {
		return boxCorners(box)
	}

	contour := region.boundary()
	if vertices, ok := polygonFromContour(contour, epsilonRatio); ok {
		return vertices
	}

	if opened := region.opened(); opened != nil {
		if vertices, ok := polygonFromContour(opened.boundary(), epsilonRatio); ok {
			return vertices
		}
	}

	if vertices, ok := polygonFromContour(convexHull(contour), epsilonRatio); ok {
		return vertices
	}

	return boxCorners(box)
}

// region is one connected component inside a window of the mask. Member
// coordinates are relative to the window origin (x0, y0).
type region struct {
	x0, y0 int
	w, h   int
	member []bool
	start  [2]int
	size   int
}

func (r *region) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < r.w && y < r.h && r.member[y*r.w+x]
}

// boundary traces the outer border of r in image coordinates.
func (r *region) boundary() [][2]int {
	contour := traceBoundary(r.start, r.inside, r.size)
	for i := range contour {
		contour[i][0] += r.x0
		contour[i][1] += r.y0
	}
	return contour
}

// opened applies a 3x3 morphological opening to r and keeps the largest
// 4-connected part of the result. It returns nil when nothing survives.
func (r *region) opened() *region {
	eroded := make([]bool, len(r.member))
	for y := 0; y < r.h; y++ {
		for x := 0; x < r.w; x++ {
			eroded[y*r.w+x] = r.inside(x, y) && r.surrounded(x, y)
		}
	}

	dilated := make([]bool, len(r.member))
	for y := 0; y < r.h; y++ {
		for x := 0; x < r.w; x++ {
			if !eroded[y*r.w+x] {
				continue
			}
			dilated[y*r.w+x] = true
			for _, d := range neighbours {
				dilated[(y+d[1])*r.w+x+d[0]] = true
			}
		}
	}

	return largestComponent(dilated, r.w, r.h, fourNeighbours[:], r.x0, r.y0)
}

// surrounded reports whether all eight neighbours of (x, y) belong to r.
// Eroded pixels are therefore never on the window edge.
func (r *region) surrounded(x, y int) bool {
	for _, d := range neighbours {
		if !r.inside(x+d[0], y+d[1]) {
			return false
		}
	}
	return true
}

// largestRegion returns the 8-connected foreground region with the most
// pixels inside box. Ties go to the region met first in raster order.
func largestRegion(mask Mask, box PixelBox) *region {
	w, h := mask.Width, mask.Height
	if w <= 0 || h <= 0 || len(mask.Data) < w*h {
		return nil
	}

	x0, y0 := max(box.X1, 0), max(box.Y1, 0)
	x1, y1 := min(box.X2, w-1), min(box.Y2, h-1)
	if x1 < x0 || y1 < y0 {
		return nil
	}

	ww, wh := x1-x0+1, y1-y0+1
	foreground := make([]bool, ww*wh)
	for y := 0; y < wh; y++ {
		row := mask.Data[(y+y0)*w+x0 : (y+y0)*w+x1+1]
		for x, v := range row {
			foreground[y*ww+x] = v >= MaskThreshold
		}
	}

	return largestComponent(foreground, ww, wh, neighbours[:], x0, y0)
}

func largestComponent(foreground []bool, w, h int, dirs [][2]int, x0, y0 int) *region {
	labels := make([]int32, w*h)
	var (
		next      int32 = 1
		bestLabel int32
		bestSize  int
		bestStart [2]int
	)

	queue := make([][2]int, 0, 64)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if labels[idx] != 0 || !foreground[idx] {
				continue
			}

			label := next
			next++
			labels[idx] = label
			size := 0

			queue = append(queue[:0], [2]int{x, y})
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				size++

				for _, d := range dirs {
					nx, ny := p[0]+d[0], p[1]+d[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					nidx := ny*w + nx
					if labels[nidx] != 0 || !foreground[nidx] {
						continue
					}
					labels[nidx] = label
					queue = append(queue, [2]int{nx, ny})
				}
			}

			if size > bestSize {
				bestSize = size
				bestLabel = label
				bestStart = [2]int{x, y}
			}
		}
	}

	if bestLabel == 0 {
		return nil
	}

	member := make([]bool, w*h)
	for i, l := range labels {
		member[i] = l == bestLabel
	}

	return &region{
		x0:     x0,
		y0:     y0,
		w:      w,
		h:      h,
		member: member,
		start:  bestStart,
		size:   bestSize,
	}
}

// traceBoundary follows the outer border of a region starting at its first
// pixel in raster order. The west neighbour of start is always outside the
// region.
func traceBoundary(start [2]int, inside func(x, y int) bool, area int) [][2]int {
	step := func(p [2]int, dir int) [2]int {
		return [2]int{p[0] + neighbours[dir][0], p[1] + neighbours[dir][1]}
	}
	dirTo := func(from, to [2]int) int {
		dx, dy := to[0]-from[0], to[1]-from[1]
		for i, d := range neighbours {
			if d[0] == dx && d[1] == dy {
				return i
			}
		}
		return 0
	}

	first := -1
	for k := 0; k < 8; k++ {
		dir := (4 + k) % 8
		n := step(start, dir)
		if inside(n[0], n[1]) {
			first = dir
			break
		}
	}
	if first < 0 {
		return [][2]int{start}
	}

	p1 := step(start, first)
	prev, cur := p1, start
	contour := [][2]int{start}

	// Each boundary pixel is entered at most once per neighbour direction.
	limit := 8*area + 8
	for i := 0; i < limit; i++ {
		back := dirTo(cur, prev)
		var nextPt [2]int
		found := false
		for k := 1; k <= 8; k++ {
			dir := ((back-k)%8 + 8) % 8
			n := step(cur, dir)
			if inside(n[0], n[1]) {
				nextPt = n
				found = true
				break
			}
		}
		if !found {
			break
		}
		if nextPt == start && cur == p1 {
			break
		}
		contour = append(contour, nextPt)
		prev, cur = cur, nextPt
	}

	return contour
}

// polygonFromContour simplifies a traced contour. Contours that pass through
// a pixel twice belong to regions with one-pixel necks or spurs and are
// rejected.
func polygonFromContour(contour [][2]int, epsilonRatio float64) ([]Vertex, bool) {
	if len(contour) < 3 || revisits(contour) {
		return nil, false
	}

	ring := toRing(contour)
	if ring.Orientation() == 0 {
		return nil, false
	}

	return simplifyRing(ring, epsilonRatio)
}

func revisits(contour [][2]int) bool {
	seen := make(map[[2]int]struct{}, len(contour))
	for _, p := range contour {
		if _, ok := seen[p]; ok {
			return true
		}
		seen[p] = struct{}{}
	}
	return false
}

// simplifyRing runs Douglas-Peucker with a tolerance proportional to the
// perimeter, halving it while the result is degenerate. A few results that
// are not simple are retried at finer tolerances before the unsimplified
// ring is considered.
func simplifyRing(ring orb.Ring, epsilonRatio float64) ([]Vertex, bool) {
	ls := orb.LineString(ring)
	perimeter := planar.Length(ls)

	retries := maxSimplifyRetries
	for eps := epsilonRatio * perimeter; eps >= minEpsilon && retries > 0; eps /= 2 {
		s := simplify.DouglasPeucker(eps).Simplify(ls.Clone())
		result, ok := s.(orb.LineString)
		if !ok || len(result) < 4 {
			continue
		}

		candidate := orb.Ring(result)
		if candidate.Orientation() == 0 {
			continue
		}

		vertices := counterClockwise(candidate)
		if isSimple(vertices) {
			return vertices, true
		}
		retries--
	}

	vertices := counterClockwise(ring.Clone())
	return vertices, isSimple(vertices)
}

func counterClockwise(ring orb.Ring) []Vertex {
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}
	return fromRing(ring)
}

// isSimple reports whether the closed polygon through vs has no repeated
// vertex, no edge folding back onto its predecessor, and no two
// non-adjacent edges that touch.
func isSimple(vs []Vertex) bool {
	n := len(vs)
	if n < 3 {
		return false
	}

	seen := make(map[Vertex]struct{}, n)
	for _, v := range vs {
		if _, dup := seen[v]; dup {
			return false
		}
		seen[v] = struct{}{}
	}

	for i := 0; i < n; i++ {
		a, b, c := vs[i], vs[(i+1)%n], vs[(i+2)%n]
		if cross(a, b, c) == 0 && dot(b, a, c) > 0 {
			return false
		}
	}

	for i := 0; i < n; i++ {
		a, b := vs[i], vs[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsTouch(a, b, vs[j], vs[(j+1)%n]) {
				return false
			}
		}
	}

	return true
}

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c Vertex) int64 {
	return int64(b[0]-a[0])*int64(c[1]-a[1]) - int64(b[1]-a[1])*int64(c[0]-a[0])
}

// dot is (a-o) . (b-o).
func dot(o, a, b Vertex) int64 {
	return int64(a[0]-o[0])*int64(b[0]-o[0]) + int64(a[1]-o[1])*int64(b[1]-o[1])
}

func segmentsTouch(p1, p2, q1, q2 Vertex) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

// onSegment reports whether p, known to be collinear with a and b, lies
// between them.
func onSegment(a, b, p Vertex) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

// convexHull returns the hull of points with collinear points dropped.
func convexHull(points [][2]int) [][2]int {
	pts := make([]Vertex, len(points))
	for i, p := range points {
		pts[i] = Vertex(p)
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	hull := make([]Vertex, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	if len(hull) > 1 {
		hull = hull[:len(hull)-1]
	}

	out := make([][2]int, len(hull))
	for i, v := range hull {
		out[i] = [2]int(v)
	}
	return out
}

func toRing(contour [][2]int) orb.Ring {
	ring := make(orb.Ring, 0, len(contour)+1)
	for _, p := range contour {
		ring = append(ring, orb.Point{float64(p[0]), float64(p[1])})
	}
	return append(ring, ring[0])
}

func fromRing(ring orb.Ring) []Vertex {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		n--
	}

	vertices := make([]Vertex, 0, n)
	for _, p := range ring[:n] {
		vertices = append(vertices, Vertex{int(p[0]), int(p[1])})
	}
	return vertices
}

// boxCorners winds the rounded box counter-clockwise in the (x, y) plane.
func boxCorners(box Box) []Vertex {
	b := roundBox(box)
	return []Vertex{
		{b.X1, b.Y1},
		{b.X2, b.Y1},
		{b.X2, b.Y2},
		{b.X1, b.Y2},
	}
}
