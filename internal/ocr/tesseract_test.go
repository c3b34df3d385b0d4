package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sightline-ai/sightline/api/schemas"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t100\t50\t80\t20\t96.5\tSubmit\n" +
	"5\t1\t1\t1\t1\t2\t200\t50\t40\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t3\t300\t50\t60\t20\t41\tCancel\n" +
	"5\t1\t1\t1\t2\t1\t100\t90\t30\t15\t88\t   \n"

func TestParseTSV_WordRows(t *testing.T) {
	tokens := parseTSV([]byte(sampleTSV))

	require.Len(t, tokens, 2)
	assert.Equal(t, "Submit", tokens[0].Text)
	assert.Equal(t, schemas.BBox{X1: 100, Y1: 50, X2: 180, Y2: 70}, tokens[0].BBox)
	assert.Equal(t, 96, tokens[0].Confidence)
	assert.Equal(t, "Cancel", tokens[1].Text)
	assert.Equal(t, 41, tokens[1].Confidence)
}

func TestParseTSV_Empty(t *testing.T) {
	assert.Empty(t, parseTSV(nil))
	assert.Empty(t, parseTSV([]byte("level\tpage_num\n")))
}

func TestParseTSV_MalformedRowsSkipped(t *testing.T) {
	tsv := "header\n5\tbroken row\n5\t1\t1\t1\t1\t1\tnotanint\t50\t80\t20\t90\tWord\n"

	assert.Empty(t, parseTSV([]byte(tsv)))
}

func TestRecognize_InvokesBinary(t *testing.T) {
	rec := New(zaptest.NewLogger(t))
	var gotArgs []string
	rec.runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(sampleTSV), nil
	}

	tokens, err := rec.Recognize(context.Background(), "/tmp/screen.png")

	require.NoError(t, err)
	assert.Len(t, tokens, 2)
	assert.Equal(t, "tesseract /tmp/screen.png stdout tsv", strings.Join(gotArgs, " "))
}

func TestRecognize_CommandFailure(t *testing.T) {
	rec := New(zaptest.NewLogger(t))
	rec.runCommand = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}

	_, err := rec.Recognize(context.Background(), "/tmp/screen.png")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract failed")
}
