package platform

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
	"github.com/sightline-ai/sightline/internal/config"
)

// WebSession drives a single browser tab over the DevTools protocol. It is
// at once the capturer, the launcher and the actuator for the web backend:
// screenshots, navigation and synthesized input all target the same tab.
type WebSession struct {
	ctx        context.Context
	cancel     context.CancelFunc
	allocStop  context.CancelFunc
	dir        string
	navTimeout time.Duration
	logger     *zap.Logger

	rng        *rand.Rand
	curX, curY float64
}

// NewWebSession starts a browser and optionally navigates to cfg.StartURL.
func NewWebSession(parent context.Context, cfg config.WebConfig, screenshotDir string, logger *zap.Logger) (*WebSession, error) {
	if err := os.MkdirAll(screenshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1280, 800),
	)
	allocCtx, allocStop := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	s := &WebSession{
		ctx:        tabCtx,
		cancel:     cancel,
		allocStop:  allocStop,
		dir:        screenshotDir,
		navTimeout: cfg.NavigationTimeout,
		logger:     logger.Named("web"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	// Start the browser eagerly so a missing Chrome binary fails fast.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	if cfg.StartURL != "" {
		if !s.OpenWebsite(parent, cfg.StartURL) {
			s.Close()
			return nil, fmt.Errorf("failed to open start URL %q", cfg.StartURL)
		}
	}
	return s, nil
}

// Close tears down the tab and the browser process.
func (s *WebSession) Close() {
	s.cancel()
	s.allocStop()
}

// Capture screenshots the viewport to a PNG file.
func (s *WebSession) Capture(ctx context.Context, cc schemas.CaptureContext) (string, error) {
	label := cc.Label
	if label == "" {
		label = "capture"
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%d.png", label, time.Now().UnixNano()))

	var buf []byte
	grab := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(ctx)
		return err
	})
	if err := s.run(ctx, grab); err != nil {
		return "", fmt.Errorf("browser screenshot failed: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	s.logger.Debug("Viewport captured", zap.String("path", path))
	return path, nil
}

// LaunchApp is not meaningful inside a browser tab.
func (s *WebSession) LaunchApp(_ context.Context, appName string) bool {
	s.logger.Warn("LaunchApp is unsupported on the web backend", zap.String("app", appName))
	return false
}

// AppVisible always reports false: the browser tab is the only window the
// web backend knows about.
func (s *WebSession) AppVisible(context.Context, string) bool { return false }

// OpenWebsite navigates the tab and waits for the page body.
func (s *WebSession) OpenWebsite(ctx context.Context, url string) bool {
	if !strings.Contains(url, "://") {
		url = "https://" + url
	}
	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()
	err := s.run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body"))
	if err != nil {
		s.logger.Warn("Navigation failed", zap.String("url", url), zap.Error(err))
		return false
	}
	s.logger.Info("Navigated", zap.String("url", url))
	return true
}

// Perform synthesizes the step's input against the tab. Click targets are
// resolved to element centers from the screen state; type and key inject
// keyboard events into the focused node.
func (s *WebSession) Perform(ctx context.Context, step schemas.PlanStep, state schemas.ScreenState) error {
	switch step.Operation {
	case schemas.OpClick:
		el, ok := state.FindElement(step.Target)
		if !ok {
			return fmt.Errorf("unknown element %q", step.Target)
		}
		x, y := el.BBox.Center()
		if err := s.glideTo(ctx, float64(x), float64(y)); err != nil {
			return err
		}
		return s.run(ctx, chromedp.MouseClickXY(float64(x), float64(y)))
	case schemas.OpType:
		text := step.Value
		if text == "" {
			text = step.Target
		}
		return s.run(ctx, chromedp.KeyEvent(text))
	case schemas.OpKey:
		key := step.Value
		if key == "" {
			key = step.Target
		}
		return s.run(ctx, chromedp.KeyEvent(mapKeyName(key)))
	case schemas.OpWait:
		return sleepFor(ctx, step)
	default:
		return fmt.Errorf("unsupported operation %q", step.Operation)
	}
}

// glideTo moves the cursor to (x, y) along a generated trajectory instead of
// teleporting it, dispatching one mouseMoved event per path point.
func (s *WebSession) glideTo(ctx context.Context, x, y float64) error {
	for _, p := range pointerPathTo(s.curX, s.curY, x, y, s.rng) {
		if p.Delay > 0 {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		move := input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y)
		if err := s.run(ctx, move); err != nil {
			return err
		}
	}
	s.curX, s.curY = x, y
	return nil
}

func (s *WebSession) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(s.ctx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mapKeyName translates common key names to DevTools key runes.
func mapKeyName(name string) string {
	switch strings.ToLower(name) {
	case "enter", "return":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "escape", "esc":
		return kb.Escape
	case "backspace":
		return kb.Backspace
	case "delete":
		return kb.Delete
	default:
		return name
	}
}

// sleepFor honors a wait step, parsing the duration from the step payload.
// Bare numbers are seconds; otherwise any Go duration string is accepted.
// Unparseable payloads fall back to one second.
func sleepFor(ctx context.Context, step schemas.PlanStep) error {
	payload := step.Value
	if payload == "" {
		payload = step.Target
	}
	d := time.Second
	if secs, err := strconv.ParseFloat(payload, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else if parsed, err := time.ParseDuration(payload); err == nil {
		d = parsed
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
