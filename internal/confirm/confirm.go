// Package confirm asks a human whether a flagged plan may proceed.
package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
)

// Terminal prompts on an interactive console. No answer — closed stdin, a
// read error, a non-interactive environment — counts as refusal.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

// NewTerminal wires the confirmer to the given streams, usually os.Stdin and
// os.Stderr.
func NewTerminal(in io.Reader, out io.Writer, logger *zap.Logger) *Terminal {
	return &Terminal{in: in, out: out, logger: logger.Named("confirm")}
}

// Confirm prints the plan and its warnings, then reads a yes/no answer.
func (t *Terminal) Confirm(ctx context.Context, plan schemas.Plan, warnings []string) bool {
	fmt.Fprintf(t.out, "\nThis plan requires confirmation (confidence %.2f):\n", plan.Confidence)
	for _, w := range warnings {
		fmt.Fprintf(t.out, "  ! %s\n", w)
	}
	for _, step := range plan.Steps {
		fmt.Fprintf(t.out, "  %d. %s %s", step.Index, step.Operation, step.Target)
		if step.Value != "" {
			fmt.Fprintf(t.out, " %q", step.Value)
		}
		fmt.Fprintln(t.out)
	}
	fmt.Fprint(t.out, "Proceed? [y/N]: ")

	answer := make(chan bool, 1)
	go func() {
		reader := bufio.NewReader(t.in)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			answer <- false
			return
		}
		line = strings.ToLower(strings.TrimSpace(line))
		answer <- line == "y" || line == "yes"
	}()

	select {
	case ok := <-answer:
		t.logger.Info("Confirmation answered", zap.Bool("approved", ok))
		return ok
	case <-ctx.Done():
		t.logger.Warn("Confirmation abandoned", zap.Error(ctx.Err()))
		return false
	}
}

// AutoApprove accepts every plan. Used by the --yes flag for unattended runs.
type AutoApprove struct {
	logger *zap.Logger
}

func NewAutoApprove(logger *zap.Logger) *AutoApprove {
	return &AutoApprove{logger: logger.Named("confirm")}
}

func (a *AutoApprove) Confirm(_ context.Context, plan schemas.Plan, warnings []string) bool {
	a.logger.Info("Plan auto-approved",
		zap.String("plan_id", plan.ID),
		zap.Int("warnings", len(warnings)),
	)
	return true
}
