package platform

import (
	"math"
	"math/rand"
	"time"
)

// pointerPath generates a human-plausible cursor trajectory between two
// points: a cubic bezier with randomized control points, traversed with an
// ease-in-out profile over a Fitts's-law duration. Synthetic straight-line
// jumps are trivially distinguishable from real cursor input; some UIs react
// differently to them.

type pathPoint struct {
	X, Y  float64
	Delay time.Duration
}

// fitts estimates movement time for a given distance against a default
// target width.
func fitts(distance float64, rng *rand.Rand) time.Duration {
	const (
		targetWidth = 30.0
		baseMs      = 80.0
		slopeMs     = 140.0
	)
	id := math.Log2(1.0 + distance/targetWidth)
	mt := baseMs + slopeMs*id
	mt += mt * (rng.Float64()*0.3 - 0.15)
	return time.Duration(mt) * time.Millisecond
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// pointerPathTo returns intermediate move points from (x0,y0) to (x1,y1),
// each with the delay to wait before dispatching it.
func pointerPathTo(x0, y0, x1, y1 float64, rng *rand.Rand) []pathPoint {
	dx, dy := x1-x0, y1-y0
	dist := math.Hypot(dx, dy)
	if dist < 1.0 {
		return []pathPoint{{X: x1, Y: y1}}
	}

	duration := fitts(dist, rng)
	steps := int(duration.Seconds() * 60)
	if steps < 2 {
		steps = 2
	}

	// Control points perpendicular to the main direction give the curve a
	// natural arc.
	px, py := -dy/dist, dx/dist
	arc := dist * 0.1
	c1x := x0 + dx/3 + px*arc*(rng.Float64()*2-1)
	c1y := y0 + dy/3 + py*arc*(rng.Float64()*2-1)
	c2x := x0 + 2*dx/3 + px*arc*(rng.Float64()*2-1)
	c2y := y0 + 2*dy/3 + py*arc*(rng.Float64()*2-1)

	points := make([]pathPoint, 0, steps)
	prev := 0.0
	for i := 1; i <= steps; i++ {
		t := easeInOutCubic(float64(i) / float64(steps))
		omt := 1 - t
		bx := omt*omt*omt*x0 + 3*omt*omt*t*c1x + 3*omt*t*t*c2x + t*t*t*x1
		by := omt*omt*omt*y0 + 3*omt*omt*t*c1y + 3*omt*t*t*c2y + t*t*t*y1
		if i < steps {
			// Sub-pixel jitter along the way; the endpoint stays exact.
			bx += rng.NormFloat64() * 0.6
			by += rng.NormFloat64() * 0.6
		}
		points = append(points, pathPoint{
			X:     bx,
			Y:     by,
			Delay: time.Duration((t - prev) * float64(duration)),
		})
		prev = t
	}
	return points
}
