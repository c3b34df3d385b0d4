// Package detector turns a raw screen image into a structured set of
// candidate interactive elements using geometric and textual cues. It is a
// pure function of the image apart from its configuration; detection never
// fails on an empty screen, it just returns no elements.
package detector

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
	"github.com/sightline-ai/sightline/internal/config"
)

const (
	// Pass confidences are fixed: they reflect the reliability of the pass,
	// not per-element certainty, since no model is involved.
	rectPassConfidence   = 0.7
	circlePassConfidence = 0.6

	adaptiveBlockSize = 11
	adaptiveC         = 2
	approxEpsilonFrac = 0.04
	blurKernelSize    = 9
	blurSigma         = 2.0
)

// Detector runs the three detection passes and unions their results.
// Overlapping elements from different passes are deliberately kept separate;
// cross-pass deduplication is a documented non-guarantee.
type Detector struct {
	cfg    config.DetectorConfig
	ocr    schemas.TextRecognizer
	logger *zap.Logger
}

// New builds a detector. The text recognizer may be nil, in which case the
// text pass is skipped entirely.
func New(cfg config.DetectorConfig, ocr schemas.TextRecognizer, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		ocr:    ocr,
		logger: logger.Named("detector"),
	}
}

// DetectFile loads an image from disk, runs all passes, and wraps the result
// in an immutable ScreenState stamped with the capture source.
func (d *Detector) DetectFile(ctx context.Context, imagePath string) (schemas.ScreenState, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return schemas.ScreenState{}, fmt.Errorf("failed to open screenshot %s: %w", imagePath, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return schemas.ScreenState{}, fmt.Errorf("failed to decode screenshot %s: %w", imagePath, err)
	}

	elements := d.Detect(ctx, img, imagePath)
	return schemas.ScreenState{
		Elements:   elements,
		CapturedAt: time.Now().UTC(),
		Source:     imagePath,
	}, nil
}

// Detect runs the geometric, text and circular passes over the image and
// returns the union of their elements. imagePath is handed to the text
// recognizer, which operates on the file rather than decoded pixels.
func (d *Detector) Detect(ctx context.Context, img image.Image, imagePath string) []schemas.Element {
	gray := grayscale(img)

	elements := d.detectRectangles(gray)
	elements = append(elements, d.detectText(ctx, imagePath)...)
	elements = append(elements, d.detectCircles(gray)...)

	d.logger.Info("Detection complete",
		zap.Int("elements", len(elements)),
		zap.String("source", imagePath),
	)
	return elements
}

// detectRectangles is the geometric pass: adaptive thresholding, external
// contour extraction, polygon approximation, and acceptance of
// quadrilaterals whose area sits inside the configured bounds.
func (d *Detector) detectRectangles(gray *image.Gray) []schemas.Element {
	bin := adaptiveThresholdInv(gray, adaptiveBlockSize, adaptiveC)
	contours := findExternalContours(bin)

	var elements []schemas.Element
	for i, c := range contours {
		area := c.area()
		if area < float64(d.cfg.MinArea) || area > float64(d.cfg.MaxArea) {
			continue
		}

		approx := approxPolyDP(c, approxEpsilonFrac*c.arcLength())
		if len(approx) != 4 {
			continue
		}

		x1, y1, x2, y2 := c.boundingBox()
		bbox := schemas.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}

		class := schemas.ClassButton
		if bbox.Height() > 0 {
			aspect := float64(bbox.Width()) / float64(bbox.Height())
			switch {
			case aspect > 0.8 && aspect < 1.2:
				class = schemas.ClassButton // square-ish
			case aspect > 2.0:
				class = schemas.ClassTextField // wide
			}
		}

		elements = append(elements, schemas.Element{
			ID:          fmt.Sprintf("rect_%d", i),
			BBox:        bbox,
			Class:       class,
			Confidence:  rectPassConfidence,
			Affordances: []schemas.Affordance{schemas.AffordanceClickable, schemas.AffordanceFocusable},
		})
	}
	return elements
}

// detectText is the OCR pass. Recognition failures degrade to an empty
// result; they are logged, never propagated.
func (d *Detector) detectText(ctx context.Context, imagePath string) []schemas.Element {
	if d.ocr == nil || imagePath == "" {
		return nil
	}

	tokens, err := d.ocr.Recognize(ctx, imagePath)
	if err != nil {
		d.logger.Warn("OCR text detection failed", zap.Error(err))
		return nil
	}

	var elements []schemas.Element
	for i, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		if tok.Confidence < d.cfg.OCRConfidenceFloor {
			continue
		}
		elements = append(elements, schemas.Element{
			ID:          fmt.Sprintf("text_%d", i),
			BBox:        tok.BBox,
			Class:       schemas.ClassTextLabel,
			Confidence:  float64(tok.Confidence) / 100.0,
			Text:        text,
			Affordances: []schemas.Affordance{schemas.AffordanceReadable},
		})
	}
	return elements
}

// detectCircles is the circular pass: Hough transform over a blurred
// grayscale image; every circle becomes a clickable button whose bbox is the
// circle's bounding square.
func (d *Detector) detectCircles(gray *image.Gray) []schemas.Element {
	blurred := gaussianBlur(gray, blurKernelSize, blurSigma)
	circles := houghCircles(blurred, defaultCircleParams(d.cfg.MinCircleRadius, d.cfg.MaxCircleRadius))

	var elements []schemas.Element
	for i, c := range circles {
		elements = append(elements, schemas.Element{
			ID: fmt.Sprintf("circle_%d", i),
			BBox: schemas.BBox{
				X1: c.X - c.R, Y1: c.Y - c.R,
				X2: c.X + c.R, Y2: c.Y + c.R,
			},
			Class:       schemas.ClassButton,
			Confidence:  circlePassConfidence,
			Affordances: []schemas.Affordance{schemas.AffordanceClickable},
		})
	}
	return elements
}
