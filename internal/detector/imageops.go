package detector

import (
	"image"
	"image/color"
	"math"
)

// grayscale converts any image to 8-bit grayscale using the standard
// luminance weights.
func grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}

// integralImage computes the summed-area table of a grayscale image. The
// table is (w+1)x(h+1) so that the sum over [x0,x1)x[y0,y1) is
// ii[y1][x1]-ii[y0][x1]-ii[y1][x0]+ii[y0][x0].
func integralImage(g *image.Gray) [][]int64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	ii := make([][]int64, h+1)
	for i := range ii {
		ii[i] = make([]int64, w+1)
	}
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			ii[y+1][x+1] = ii[y][x+1] + rowSum
		}
	}
	return ii
}

// adaptiveThresholdInv binarizes a grayscale image against the local mean of
// a blockSize x blockSize neighborhood. Output is inverted binary: pixels
// darker than (local mean - c) become foreground (255), everything else
// background (0). blockSize must be odd.
func adaptiveThresholdInv(g *image.Gray, blockSize int, c int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	ii := integralImage(g)
	half := blockSize / 2
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h, y+half+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w, x+half+1)
			area := int64((x1 - x0) * (y1 - y0))
			sum := ii[y1][x1] - ii[y0][x1] - ii[y1][x0] + ii[y0][x0]
			mean := sum / area
			src := int64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			if src <= mean-int64(c) {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// gaussianBlur applies a separable Gaussian filter of the given kernel size
// and sigma. Borders are clamped.
func gaussianBlur(g *image.Gray, ksize int, sigma float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewGray(image.Rect(0, 0, w, h))
	}

	half := ksize / 2
	kernel := make([]float64, ksize)
	var norm float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		norm += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= norm
	}

	clampX := func(x int) int { return max(0, min(w-1, x)) }
	clampY := func(y int) int { return max(0, min(h-1, y)) }

	// Horizontal pass into a float buffer, then vertical pass.
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -half; k <= half; k++ {
				acc += kernel[k+half] * float64(g.GrayAt(b.Min.X+clampX(x+k), b.Min.Y+y).Y)
			}
			tmp[y*w+x] = acc
		}
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -half; k <= half; k++ {
				acc += kernel[k+half] * tmp[clampY(y+k)*w+x]
			}
			out.SetGray(x, y, color.Gray{Y: uint8(math.Round(max(0, min(255, acc))))})
		}
	}
	return out
}

// sobelGradients computes horizontal and vertical Sobel derivatives plus the
// gradient magnitude for every pixel.
func sobelGradients(g *image.Gray) (gx, gy []float64, mag []float64, w, h int) {
	b := g.Bounds()
	w, h = b.Dx(), b.Dy()
	gx = make([]float64, w*h)
	gy = make([]float64, w*h)
	mag = make([]float64, w*h)

	at := func(x, y int) float64 {
		x = max(0, min(w-1, x))
		y = max(0, min(h-1, y))
		return float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			dy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			i := y*w + x
			gx[i], gy[i] = dx, dy
			mag[i] = math.Hypot(dx, dy)
		}
	}
	return gx, gy, mag, w, h
}
