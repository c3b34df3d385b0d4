// Package platform provides the screen backends: native desktop capture and
// launching via external tools, and an embedded-browser backend driven over
// the Chrome DevTools Protocol.
package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
)

// screenshotTool is one external capture command candidate. The args receive
// the output path appended unless pathArg says otherwise.
type screenshotTool struct {
	name string
	args []string
}

// capture tool candidates in preference order, per display stack.
var (
	waylandTools = []screenshotTool{
		{name: "grim"},
		{name: "gnome-screenshot", args: []string{"-f"}},
		{name: "spectacle", args: []string{"-b", "-n", "-o"}},
	}
	x11Tools = []screenshotTool{
		{name: "scrot", args: []string{"-o"}},
		{name: "gnome-screenshot", args: []string{"-f"}},
		{name: "import", args: []string{"-window", "root"}},
		{name: "spectacle", args: []string{"-b", "-n", "-o"}},
	}
	darwinTools = []screenshotTool{
		{name: "screencapture", args: []string{"-x"}},
	}
)

// DesktopCapturer grabs the physical screen by shelling out to whichever
// capture tool the host provides.
type DesktopCapturer struct {
	dir    string
	logger *zap.Logger

	// runCommand and lookPath are swappable for tests.
	runCommand func(ctx context.Context, name string, args ...string) error
	lookPath   func(name string) (string, error)
}

// NewDesktopCapturer stores screenshots under dir, creating it if needed.
func NewDesktopCapturer(dir string, logger *zap.Logger) (*DesktopCapturer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return &DesktopCapturer{
		dir:    dir,
		logger: logger.Named("capture.desktop"),
		runCommand: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
		lookPath: exec.LookPath,
	}, nil
}

// Capture writes a full-screen PNG and returns its path. Tools are tried in
// preference order for the host's display stack; the first success wins.
func (c *DesktopCapturer) Capture(ctx context.Context, cc schemas.CaptureContext) (string, error) {
	label := cc.Label
	if label == "" {
		label = "capture"
	}
	path := filepath.Join(c.dir, fmt.Sprintf("%s_%d.png", label, time.Now().UnixNano()))

	var lastErr error
	for _, tool := range c.candidateTools() {
		if _, err := c.lookPath(tool.name); err != nil {
			continue
		}
		args := append(append([]string{}, tool.args...), path)
		if err := c.runCommand(ctx, tool.name, args...); err != nil {
			lastErr = fmt.Errorf("%s: %w", tool.name, err)
			c.logger.Warn("Screenshot tool failed", zap.String("tool", tool.name), zap.Error(err))
			continue
		}
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			c.logger.Debug("Screen captured", zap.String("path", path), zap.String("tool", tool.name))
			return path, nil
		}
		lastErr = fmt.Errorf("%s produced no output", tool.name)
	}
	if lastErr != nil {
		return "", fmt.Errorf("screen capture failed: %w", lastErr)
	}
	return "", fmt.Errorf("no screenshot tool available on this host")
}

func (c *DesktopCapturer) candidateTools() []screenshotTool {
	if runtime.GOOS == "darwin" {
		return darwinTools
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return append(append([]screenshotTool{}, waylandTools...), x11Tools...)
	}
	return x11Tools
}

// appCommands maps a friendly application name to launch candidates per OS.
var appCommands = map[string]map[string][]string{
	"calculator": {
		"linux":  {"gnome-calculator", "kcalc", "xcalc"},
		"darwin": {"open", "-a", "Calculator"},
	},
	"texteditor": {
		"linux":  {"gedit", "kate", "mousepad"},
		"darwin": {"open", "-a", "TextEdit"},
	},
	"browser": {
		"linux":  {"xdg-open", "about:blank"},
		"darwin": {"open", "-a", "Safari"},
	},
}

// DesktopLauncher starts applications and opens URLs with host tools.
// Launching is best-effort: failures are reported as false, never as a run
// abort.
type DesktopLauncher struct {
	// browser overrides the system default opener for websites when set.
	browser string
	logger  *zap.Logger

	startCommand func(name string, args ...string) error
	lookPath     func(name string) (string, error)
	runOutput    func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewDesktopLauncher(browser string, logger *zap.Logger) *DesktopLauncher {
	return &DesktopLauncher{
		browser: browser,
		logger:  logger.Named("launcher"),
		startCommand: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
		lookPath: exec.LookPath,
		runOutput: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// LaunchApp starts the named application, trying each known candidate for
// the host OS. Unknown names are attempted as a bare command.
func (l *DesktopLauncher) LaunchApp(_ context.Context, appName string) bool {
	if perOS, ok := appCommands[appName]; ok {
		if cmd, ok := perOS[runtime.GOOS]; ok {
			if runtime.GOOS == "darwin" {
				if err := l.startCommand(cmd[0], cmd[1:]...); err == nil {
					l.logger.Info("Application launched", zap.String("app", appName))
					return true
				}
				return false
			}
			for _, candidate := range cmd {
				if _, err := l.lookPath(candidate); err != nil {
					continue
				}
				if err := l.startCommand(candidate); err == nil {
					l.logger.Info("Application launched",
						zap.String("app", appName), zap.String("command", candidate))
					return true
				}
			}
			l.logger.Warn("No launch candidate succeeded", zap.String("app", appName))
			return false
		}
	}
	if err := l.startCommand(appName); err != nil {
		l.logger.Warn("Application launch failed", zap.String("app", appName), zap.Error(err))
		return false
	}
	l.logger.Info("Application launched", zap.String("app", appName))
	return true
}

// window list commands in preference order; their output is matched by
// substring against the application name.
var windowListTools = [][]string{
	{"hyprctl", "clients", "-j"},
	{"wmctrl", "-lx"},
}

// AppVisible checks whether any open window mentions the application in its
// class or title. Best-effort: a missing list tool reports not visible.
func (l *DesktopLauncher) AppVisible(ctx context.Context, appName string) bool {
	needle := strings.ToLower(appName)
	for _, tool := range windowListTools {
		if _, err := l.lookPath(tool[0]); err != nil {
			continue
		}
		out, err := l.runOutput(ctx, tool[0], tool[1:]...)
		if err != nil {
			l.logger.Debug("Window list tool failed", zap.String("tool", tool[0]), zap.Error(err))
			continue
		}
		visible := strings.Contains(strings.ToLower(string(out)), needle)
		l.logger.Info("Window visibility checked",
			zap.String("app", appName), zap.String("tool", tool[0]), zap.Bool("visible", visible))
		return visible
	}
	l.logger.Debug("No window list tool available", zap.String("app", appName))
	return false
}

// OpenWebsite opens the URL in the configured browser, or the system
// default one.
func (l *DesktopLauncher) OpenWebsite(_ context.Context, url string) bool {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	if l.browser != "" {
		opener = l.browser
	}
	if err := l.startCommand(opener, url); err != nil {
		l.logger.Warn("Failed to open website", zap.String("url", url), zap.Error(err))
		return false
	}
	l.logger.Info("Website opened", zap.String("url", url))
	return true
}
