// Package actuator performs plan steps against the live desktop by driving
// an external input-injection tool.
package actuator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
)

// Desktop injects input with xdotool (X11) or ydotool (Wayland). The two
// tools share a verb vocabulary close enough to bridge with a small argument
// translation.
type Desktop struct {
	tool   string
	logger *zap.Logger

	runCommand func(ctx context.Context, name string, args ...string) error
}

// New builds a desktop actuator for the given tool name ("xdotool" or
// "ydotool").
func New(tool string, logger *zap.Logger) (*Desktop, error) {
	switch tool {
	case "xdotool", "ydotool":
	default:
		return nil, fmt.Errorf("unsupported input tool %q", tool)
	}
	return &Desktop{
		tool:   tool,
		logger: logger.Named("actuator"),
		runCommand: func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(out)))
			}
			return nil
		},
	}, nil
}

// Perform executes one plan step. Click targets resolve to the center of the
// element's bounding box in the screen state the plan was made against; a
// target absent from that state is an error, which the coordinator surfaces
// as a step failure.
func (d *Desktop) Perform(ctx context.Context, step schemas.PlanStep, state schemas.ScreenState) error {
	switch step.Operation {
	case schemas.OpClick:
		el, ok := state.FindElement(step.Target)
		if !ok {
			return fmt.Errorf("unknown element %q", step.Target)
		}
		x, y := el.BBox.Center()
		return d.click(ctx, x, y)
	case schemas.OpType:
		text := step.Value
		if text == "" {
			text = step.Target
		}
		return d.typeText(ctx, text)
	case schemas.OpKey:
		key := step.Value
		if key == "" {
			key = step.Target
		}
		return d.pressKey(ctx, key)
	case schemas.OpWait:
		return d.wait(ctx, step)
	default:
		return fmt.Errorf("unsupported operation %q", step.Operation)
	}
}

func (d *Desktop) click(ctx context.Context, x, y int) error {
	d.logger.Debug("Click", zap.Int("x", x), zap.Int("y", y))
	if d.tool == "ydotool" {
		if err := d.runCommand(ctx, d.tool, "mousemove", "--absolute", "-x", strconv.Itoa(x), "-y", strconv.Itoa(y)); err != nil {
			return err
		}
		// 0xC0 is left button press+release.
		return d.runCommand(ctx, d.tool, "click", "0xC0")
	}
	if err := d.runCommand(ctx, d.tool, "mousemove", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
		return err
	}
	return d.runCommand(ctx, d.tool, "click", "1")
}

func (d *Desktop) typeText(ctx context.Context, text string) error {
	d.logger.Debug("Type", zap.Int("length", len(text)))
	if d.tool == "ydotool" {
		return d.runCommand(ctx, d.tool, "type", "--", text)
	}
	return d.runCommand(ctx, d.tool, "type", "--delay", "50", "--", text)
}

func (d *Desktop) pressKey(ctx context.Context, key string) error {
	d.logger.Debug("Key", zap.String("key", key))
	return d.runCommand(ctx, d.tool, "key", mapKeyName(d.tool, key))
}

func (d *Desktop) wait(ctx context.Context, step schemas.PlanStep) error {
	payload := step.Value
	if payload == "" {
		payload = step.Target
	}
	dur := time.Second
	if secs, err := strconv.ParseFloat(payload, 64); err == nil {
		dur = time.Duration(secs * float64(time.Second))
	} else if parsed, err := time.ParseDuration(payload); err == nil {
		dur = parsed
	}
	d.logger.Debug("Wait", zap.Duration("duration", dur))
	select {
	case <-time.After(dur):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mapKeyName translates planner key names to the tool's keysym vocabulary.
func mapKeyName(tool, key string) string {
	lower := strings.ToLower(key)
	if tool == "ydotool" {
		// ydotool speaks keycodes via its key verb but accepts names on
		// recent versions; pass through.
		return key
	}
	switch lower {
	case "enter":
		return "Return"
	case "esc", "escape":
		return "Escape"
	case "tab":
		return "Tab"
	case "backspace":
		return "BackSpace"
	case "delete":
		return "Delete"
	case "space":
		return "space"
	default:
		return key
	}
}
