package platform

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sightline-ai/sightline/api/schemas"
)

// -- Test Setup Helpers --

func setupCapturer(t *testing.T) *DesktopCapturer {
	t.Helper()
	c, err := NewDesktopCapturer(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

// -- Test Cases: DesktopCapturer --

func TestCapture_WritesScreenshotFile(t *testing.T) {
	c := setupCapturer(t)
	c.lookPath = func(string) (string, error) { return "/usr/bin/tool", nil }
	var usedTool string
	c.runCommand = func(_ context.Context, name string, args ...string) error {
		usedTool = name
		// The capture tool writes the output path given as the last arg.
		return os.WriteFile(args[len(args)-1], []byte("png"), 0o644)
	}

	path, err := c.Capture(context.Background(), schemas.CaptureContext{Label: "initial"})

	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, path, "initial_")
	assert.NotEmpty(t, usedTool)
}

func TestCapture_NoToolAvailable(t *testing.T) {
	c := setupCapturer(t)
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := c.Capture(context.Background(), schemas.CaptureContext{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no screenshot tool available")
}

func TestCapture_AllToolsFail(t *testing.T) {
	c := setupCapturer(t)
	c.lookPath = func(string) (string, error) { return "/usr/bin/tool", nil }
	c.runCommand = func(_ context.Context, _ string, _ ...string) error {
		return errors.New("cannot open display")
	}

	_, err := c.Capture(context.Background(), schemas.CaptureContext{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "screen capture failed")
}

func TestCapture_EmptyOutputRejected(t *testing.T) {
	c := setupCapturer(t)
	c.lookPath = func(string) (string, error) { return "/usr/bin/tool", nil }
	c.runCommand = func(_ context.Context, _ string, args ...string) error {
		// Tool "succeeds" but produces an empty file.
		return os.WriteFile(args[len(args)-1], nil, 0o644)
	}

	_, err := c.Capture(context.Background(), schemas.CaptureContext{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "produced no output")
}

// -- Test Cases: DesktopLauncher --

func TestLaunchApp_KnownAppUsesCandidateTable(t *testing.T) {
	l := NewDesktopLauncher("", zaptest.NewLogger(t))
	l.lookPath = func(name string) (string, error) {
		if name == "kcalc" {
			return "/usr/bin/kcalc", nil
		}
		return "", errors.New("not found")
	}
	var started []string
	l.startCommand = func(name string, args ...string) error {
		started = append(started, name)
		return nil
	}

	ok := l.LaunchApp(context.Background(), "calculator")

	assert.True(t, ok)
	require.NotEmpty(t, started)
	if runtime.GOOS != "darwin" {
		// The candidate on PATH wins, not the first in the table.
		assert.Equal(t, "kcalc", started[0])
	}
}

func TestLaunchApp_UnknownAppRunsBareCommand(t *testing.T) {
	l := NewDesktopLauncher("", zaptest.NewLogger(t))
	var started []string
	l.startCommand = func(name string, args ...string) error {
		started = append(started, name)
		return nil
	}

	ok := l.LaunchApp(context.Background(), "gimp")

	assert.True(t, ok)
	assert.Equal(t, []string{"gimp"}, started)
}

func TestLaunchApp_FailureReturnsFalse(t *testing.T) {
	l := NewDesktopLauncher("", zaptest.NewLogger(t))
	l.startCommand = func(string, ...string) error { return errors.New("no such binary") }

	assert.False(t, l.LaunchApp(context.Background(), "gimp"))
}

func TestOpenWebsite_UsesSystemOpener(t *testing.T) {
	l := NewDesktopLauncher("", zaptest.NewLogger(t))
	var gotName string
	var gotArgs []string
	l.startCommand = func(name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}

	ok := l.OpenWebsite(context.Background(), "https://example.com")

	assert.True(t, ok)
	assert.Contains(t, []string{"xdg-open", "open"}, gotName)
	assert.Equal(t, []string{"https://example.com"}, gotArgs)
}

func TestAppVisible_MatchesWindowClass(t *testing.T) {
	l := NewDesktopLauncher("", zaptest.NewLogger(t))
	l.lookPath = func(name string) (string, error) {
		if name == "hyprctl" {
			return "/usr/bin/hyprctl", nil
		}
		return "", errors.New("not found")
	}
	l.runOutput = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(`[{"class": "org.gnome.Calculator", "title": "Calculator"}]`), nil
	}

	assert.True(t, l.AppVisible(context.Background(), "calculator"))
	assert.False(t, l.AppVisible(context.Background(), "texteditor"))
}

func TestAppVisible_FallsBackAcrossTools(t *testing.T) {
	l := NewDesktopLauncher("", zaptest.NewLogger(t))
	l.lookPath = func(string) (string, error) { return "/usr/bin/tool", nil }
	var tools []string
	l.runOutput = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		tools = append(tools, name)
		if name == "hyprctl" {
			return nil, errors.New("not a hyprland session")
		}
		return []byte("0x0400000a  0  kcalc.kcalc  host Calculator"), nil
	}

	visible := l.AppVisible(context.Background(), "calc")

	assert.True(t, visible)
	assert.Equal(t, []string{"hyprctl", "wmctrl"}, tools)
}

func TestAppVisible_NoListToolReportsHidden(t *testing.T) {
	l := NewDesktopLauncher("", zaptest.NewLogger(t))
	l.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	assert.False(t, l.AppVisible(context.Background(), "calculator"))
}

func TestOpenWebsite_NamedBrowserWins(t *testing.T) {
	l := NewDesktopLauncher("firefox", zaptest.NewLogger(t))
	var gotName string
	l.startCommand = func(name string, _ ...string) error {
		gotName = name
		return nil
	}

	ok := l.OpenWebsite(context.Background(), "https://example.com")

	assert.True(t, ok)
	assert.Equal(t, "firefox", gotName)
}

// -- Test Cases: pointer trajectory --

func TestPointerPath_EndsExactlyOnTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	path := pointerPathTo(0, 0, 300, 200, rng)

	require.NotEmpty(t, path)
	last := path[len(path)-1]
	assert.Equal(t, 300.0, last.X)
	assert.Equal(t, 200.0, last.Y)
}

func TestPointerPath_ShortHopIsDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	path := pointerPathTo(100, 100, 100.4, 100.2, rng)

	require.Len(t, path, 1)
	assert.Equal(t, 100.4, path[0].X)
}

func TestPointerPath_StaysNearSegment(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	path := pointerPathTo(0, 0, 400, 0, rng)

	// The arc plus jitter must not wander unreasonably far off axis.
	for _, p := range path {
		assert.Less(t, math.Abs(p.Y), 80.0)
		assert.GreaterOrEqual(t, p.X, -10.0)
		assert.LessOrEqual(t, p.X, 410.0)
	}
}

func TestPointerPath_DelaysSumToFittsDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	path := pointerPathTo(0, 0, 500, 500, rng)

	var total float64
	for _, p := range path {
		assert.GreaterOrEqual(t, p.Delay.Seconds(), 0.0)
		total += p.Delay.Seconds()
	}
	// Long moves take a perceptible but bounded amount of time.
	assert.Greater(t, total, 0.05)
	assert.Less(t, total, 2.0)
}
