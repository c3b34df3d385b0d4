// Package ocr adapts the tesseract command-line tool as the detector's text
// recognizer.
package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
)

// Tesseract shells out to the tesseract binary and parses its TSV output.
type Tesseract struct {
	binary string
	logger *zap.Logger

	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New returns a recognizer backed by the tesseract binary on PATH.
func New(logger *zap.Logger) *Tesseract {
	return &Tesseract{
		binary: "tesseract",
		logger: logger.Named("ocr"),
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Recognize runs tesseract in TSV mode and returns one detection per word.
// A missing binary or a failed recognition is an error; the detector treats
// it as an empty token set rather than aborting.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) ([]schemas.TokenDetection, error) {
	out, err := t.runCommand(ctx, t.binary, imagePath, "stdout", "tsv")
	if err != nil {
		return nil, fmt.Errorf("tesseract failed: %w", err)
	}
	tokens := parseTSV(out)
	t.logger.Debug("Text recognized", zap.String("image", imagePath), zap.Int("tokens", len(tokens)))
	return tokens, nil
}

// parseTSV extracts word-level rows (level 5) from tesseract's TSV output.
// Column layout: level page block par line word left top width height conf text.
func parseTSV(data []byte) []schemas.TokenDetection {
	var tokens []schemas.TokenDetection
	scanner := bufio.NewScanner(bytes.NewReader(data))
	first := true
	for scanner.Scan() {
		if first {
			first = false // header row
			continue
		}
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 12 {
			continue
		}
		if fields[0] != "5" {
			continue
		}
		text := strings.TrimSpace(fields[11])
		if text == "" {
			continue
		}
		left, err1 := strconv.Atoi(fields[6])
		top, err2 := strconv.Atoi(fields[7])
		width, err3 := strconv.Atoi(fields[8])
		height, err4 := strconv.Atoi(fields[9])
		conf, err5 := strconv.ParseFloat(fields[10], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		if conf < 0 {
			continue
		}
		tokens = append(tokens, schemas.TokenDetection{
			Text: text,
			BBox: schemas.BBox{
				X1: left,
				Y1: top,
				X2: left + width,
				Y2: top + height,
			},
			Confidence: int(conf),
		})
	}
	return tokens
}
