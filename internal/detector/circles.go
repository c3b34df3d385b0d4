package detector

import (
	"image"
	"math"
	"sort"
)

// circleParams tunes the Hough gradient transform.
type circleParams struct {
	MinDist      float64 // minimum distance between accepted centers
	GradThresh   float64 // edge pixels need at least this gradient magnitude
	CenterVotes  int     // accumulator threshold for candidate centers
	MinRadius    int
	MaxRadius    int
	RadiusVotes  int // minimum edge support for the chosen radius
}

func defaultCircleParams(minR, maxR int) circleParams {
	return circleParams{
		MinDist:     50,
		GradThresh:  50,
		CenterVotes: 30,
		MinRadius:   minR,
		MaxRadius:   maxR,
		RadiusVotes: 30,
	}
}

// foundCircle is one detected circle in pixel coordinates.
type foundCircle struct {
	X, Y, R int
}

// houghCircles finds circles with a two-stage gradient Hough transform:
// edge pixels vote along their gradient direction for candidate centers,
// surviving centers then pick the radius with the strongest edge support.
func houghCircles(g *image.Gray, p circleParams) []foundCircle {
	gx, gy, mag, w, h := sobelGradients(g)
	if w == 0 || h == 0 {
		return nil
	}

	// Stage 1: center voting. Every strong edge pixel votes along its
	// gradient line in both directions across the radius range.
	acc := make([]int32, w*h)
	type edgePx struct{ X, Y int }
	var edges []edgePx
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if mag[i] < p.GradThresh {
				continue
			}
			edges = append(edges, edgePx{x, y})
			ux, uy := gx[i]/mag[i], gy[i]/mag[i]
			for r := p.MinRadius; r <= p.MaxRadius; r++ {
				for _, sign := range [2]float64{1, -1} {
					cx := x + int(math.Round(sign*ux*float64(r)))
					cy := y + int(math.Round(sign*uy*float64(r)))
					if cx >= 0 && cy >= 0 && cx < w && cy < h {
						acc[cy*w+cx]++
					}
				}
			}
		}
	}

	// Candidate centers: local maxima above the vote threshold, strongest
	// first, separated by at least MinDist.
	type candidate struct {
		X, Y  int
		Votes int32
	}
	var cands []candidate
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := acc[y*w+x]
			if int(v) < p.CenterVotes {
				continue
			}
			if v < acc[y*w+x-1] || v < acc[y*w+x+1] ||
				v < acc[(y-1)*w+x] || v < acc[(y+1)*w+x] {
				continue
			}
			cands = append(cands, candidate{x, y, v})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].Votes > cands[j].Votes })

	var circles []foundCircle
	for _, c := range cands {
		tooClose := false
		for _, kept := range circles {
			if math.Hypot(float64(c.X-kept.X), float64(c.Y-kept.Y)) < p.MinDist {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		// Stage 2: pick the radius with the most supporting edge pixels.
		hist := make([]int, p.MaxRadius+2)
		for _, e := range edges {
			d := math.Hypot(float64(e.X-c.X), float64(e.Y-c.Y))
			r := int(math.Round(d))
			if r >= p.MinRadius && r <= p.MaxRadius {
				hist[r]++
			}
		}
		bestR, bestVotes := 0, 0
		for r := p.MinRadius; r <= p.MaxRadius; r++ {
			if hist[r] > bestVotes {
				bestR, bestVotes = r, hist[r]
			}
		}
		if bestVotes < p.RadiusVotes {
			continue
		}
		circles = append(circles, foundCircle{X: c.X, Y: c.Y, R: bestR})
	}
	return circles
}
