package detector

import (
	"image"
	"math"
)

// point is a pixel coordinate on a contour.
type point struct {
	X, Y int
}

// contour is a closed boundary, stored as an ordered ring of pixels.
type contour []point

// boundingBox returns the tight axis-aligned bounds of the contour.
func (c contour) boundingBox() (x1, y1, x2, y2 int) {
	x1, y1 = c[0].X, c[0].Y
	x2, y2 = c[0].X, c[0].Y
	for _, p := range c[1:] {
		x1 = min(x1, p.X)
		y1 = min(y1, p.Y)
		x2 = max(x2, p.X)
		y2 = max(y2, p.Y)
	}
	// Bounds are exclusive on the far edge, matching bbox convention.
	return x1, y1, x2 + 1, y2 + 1
}

// arcLength returns the closed perimeter of the contour.
func (c contour) arcLength() float64 {
	if len(c) < 2 {
		return 0
	}
	var total float64
	for i := range c {
		j := (i + 1) % len(c)
		total += math.Hypot(float64(c[j].X-c[i].X), float64(c[j].Y-c[i].Y))
	}
	return total
}

// area returns the enclosed area by the shoelace formula.
func (c contour) area() float64 {
	if len(c) < 3 {
		return 0
	}
	var sum float64
	for i := range c {
		j := (i + 1) % len(c)
		sum += float64(c[i].X*c[j].Y - c[j].X*c[i].Y)
	}
	return math.Abs(sum) / 2
}

// Moore neighborhood in clockwise order starting from west.
var mooreOffsets = [8]point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// findExternalContours extracts one outer boundary per connected foreground
// component of a binary image. Foreground is any non-zero pixel. Components
// are found by flood fill; each component's boundary is then walked with
// Moore-neighbor tracing from its topmost-leftmost pixel.
func findExternalContours(bin *image.Gray) []contour {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	fg := func(x, y int) bool {
		if x < 0 || y < 0 || x >= w || y >= h {
			return false
		}
		return bin.GrayAt(b.Min.X+x, b.Min.Y+y).Y != 0
	}

	labels := make([]int, w*h)
	nextLabel := 0
	var contours []contour

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !fg(x, y) || labels[y*w+x] != 0 {
				continue
			}
			nextLabel++
			floodFill(fg, labels, w, h, x, y, nextLabel)
			// (x, y) is the topmost-leftmost pixel of this component by
			// construction of the scan order.
			contours = append(contours, traceBoundary(fg, point{x, y}))
		}
	}
	return contours
}

// floodFill labels the 8-connected component containing (sx, sy).
func floodFill(fg func(x, y int) bool, labels []int, w, h, sx, sy, label int) {
	stack := []point{{sx, sy}}
	labels[sy*w+sx] = label
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range mooreOffsets {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			if fg(nx, ny) && labels[ny*w+nx] == 0 {
				labels[ny*w+nx] = label
				stack = append(stack, point{nx, ny})
			}
		}
	}
}

// traceBoundary walks the outer boundary clockwise using Moore-neighbor
// tracing with Jacob's stopping criterion. start must be the component's
// topmost-leftmost foreground pixel.
func traceBoundary(fg func(x, y int) bool, start point) contour {
	ring := contour{start}

	// The backtrack begins due west of the start pixel, which is guaranteed
	// background for a topmost-leftmost start.
	cur := start
	backtrackIdx := 0 // index into mooreOffsets pointing at the last background neighbor

	// A single isolated pixel has no neighbors to walk.
	isolated := true
	for _, d := range mooreOffsets {
		if fg(start.X+d.X, start.Y+d.Y) {
			isolated = false
			break
		}
	}
	if isolated {
		return ring
	}

	firstMove := -1
	for steps := 0; ; steps++ {
		// Scan the Moore neighborhood clockwise beginning just after the
		// backtrack direction.
		found := false
		var next point
		var nextBacktrack int
		for i := 1; i <= 8; i++ {
			idx := (backtrackIdx + i) % 8
			n := point{cur.X + mooreOffsets[idx].X, cur.Y + mooreOffsets[idx].Y}
			if fg(n.X, n.Y) {
				next = n
				// New backtrack points at the previously checked (background)
				// neighbor, relative to the new pixel.
				prevIdx := (backtrackIdx + i - 1) % 8
				bg := point{cur.X + mooreOffsets[prevIdx].X, cur.Y + mooreOffsets[prevIdx].Y}
				nextBacktrack = offsetIndex(point{bg.X - n.X, bg.Y - n.Y})
				found = true
				break
			}
		}
		if !found {
			return ring
		}

		// Jacob's criterion: stop when we re-enter the start pixel from the
		// same direction as the first move.
		move := offsetIndex(point{next.X - cur.X, next.Y - cur.Y})
		if next == start {
			if firstMove == -1 || move == firstMove {
				return ring
			}
		}
		if firstMove == -1 {
			firstMove = move
		}

		cur = next
		backtrackIdx = nextBacktrack
		if cur != start {
			ring = append(ring, cur)
		}

		// Bail out on pathological inputs rather than looping forever.
		if steps > 8*len(ring)+4096 {
			return ring
		}
	}
}

// offsetIndex maps a unit offset back to its position in mooreOffsets.
func offsetIndex(d point) int {
	for i, o := range mooreOffsets {
		if o == d {
			return i
		}
	}
	return 0
}

// approxPolyDP reduces a closed contour to a polygon using the
// Douglas-Peucker algorithm with the given distance tolerance. The closed
// ring is split at its two mutually farthest anchor points and each chain is
// simplified independently.
func approxPolyDP(c contour, epsilon float64) []point {
	if len(c) < 3 {
		return append([]point(nil), c...)
	}

	// First anchor: farthest point from c[0]. Second anchor: farthest point
	// from the first anchor.
	a := farthestFrom(c, c[0])
	bIdx := farthestFrom(c, c[a])
	if a > bIdx {
		a, bIdx = bIdx, a
	}

	chain1 := append(contour(nil), c[a:bIdx+1]...)
	chain2 := append(contour(nil), c[bIdx:]...)
	chain2 = append(chain2, c[:a+1]...)

	out := douglasPeucker(chain1, epsilon)
	tail := douglasPeucker(chain2, epsilon)
	// Both chains share their endpoints; drop the duplicates when joining.
	if len(tail) > 2 {
		out = append(out, tail[1:len(tail)-1]...)
	}
	return out
}

func farthestFrom(c contour, p point) int {
	best, bestD := 0, -1.0
	for i, q := range c {
		d := math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
		if d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

// douglasPeucker simplifies an open polyline, keeping both endpoints.
func douglasPeucker(pts []point, epsilon float64) []point {
	if len(pts) < 3 {
		return append([]point(nil), pts...)
	}
	idx, maxDist := 0, 0.0
	first, last := pts[0], pts[len(pts)-1]
	for i := 1; i < len(pts)-1; i++ {
		d := perpendicularDistance(pts[i], first, last)
		if d > maxDist {
			idx, maxDist = i, d
		}
	}
	if maxDist <= epsilon {
		return []point{first, last}
	}
	left := douglasPeucker(pts[:idx+1], epsilon)
	right := douglasPeucker(pts[idx:], epsilon)
	return append(left[:len(left)-1], right...)
}

// perpendicularDistance is the distance from p to the line through a and b.
func perpendicularDistance(p, a, b point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(float64(p.X-a.X), float64(p.Y-a.Y))
	}
	return math.Abs(dx*float64(a.Y-p.Y)-float64(a.X-p.X)*dy) / length
}
