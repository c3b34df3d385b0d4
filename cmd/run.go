package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
	"github.com/sightline-ai/sightline/internal/actuator"
	"github.com/sightline-ai/sightline/internal/config"
	"github.com/sightline-ai/sightline/internal/confirm"
	"github.com/sightline-ai/sightline/internal/detector"
	"github.com/sightline-ai/sightline/internal/executor"
	"github.com/sightline-ai/sightline/internal/observability"
	"github.com/sightline-ai/sightline/internal/ocr"
	"github.com/sightline-ai/sightline/internal/orchestrator"
	"github.com/sightline-ai/sightline/internal/planner"
	"github.com/sightline-ai/sightline/internal/platform"
	"github.com/sightline-ai/sightline/internal/runlog"
	"github.com/sightline-ai/sightline/internal/safety"
	"github.com/sightline-ai/sightline/internal/verifier"
)

// newRunCmd creates the `run` command, which drives one instruction through
// the agent pipeline.
func newRunCmd(cfg *config.Config) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run \"<instruction>\"",
		Short: "Executes a natural-language instruction against the screen",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind the override flags so they win over config and env values.
			if err := viper.BindPFlag("safety.confidence_threshold", cmd.Flags().Lookup("threshold")); err != nil {
				return err
			}
			if err := viper.BindPFlag("executor.max_retries", cmd.Flags().Lookup("max-retries")); err != nil {
				return err
			}
			return viper.BindPFlag("capture.backend", cmd.Flags().Lookup("backend"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			instruction := args[0]
			appName, _ := cmd.Flags().GetString("app")
			autoApprove, _ := cmd.Flags().GetBool("yes")

			components, err := initializeRunComponents(ctx, cfg, autoApprove, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize run components: %w", err)
			}
			defer components.Shutdown()

			result, err := components.Orchestrator.Run(ctx, instruction, appName)
			printRunSummary(result)
			return err
		},
	}

	runCmd.Flags().String("app", "", "Application to launch before the first capture.")
	runCmd.Flags().BoolP("yes", "y", false, "Approve flagged plans without prompting.")
	runCmd.Flags().Float64("threshold", 0, "Safety confidence threshold. (Overrides config/env)")
	runCmd.Flags().Int("max-retries", 0, "Attempts per plan step. (Overrides config/env)")
	runCmd.Flags().String("backend", "", "Capture backend: 'desktop' or 'web'. (Overrides config/env)")
	return runCmd
}

// runComponents holds the initialized pipeline services.
type runComponents struct {
	Orchestrator *orchestrator.Orchestrator
	Planner      *planner.LLMPlanner
	WebSession   *platform.WebSession
}

// Shutdown releases the components that hold external resources.
func (rc *runComponents) Shutdown() {
	if rc.WebSession != nil {
		rc.WebSession.Close()
	}
}

// initializeRunComponents handles dependency injection for the run pipeline.
func initializeRunComponents(ctx context.Context, cfg *config.Config, autoApprove bool, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{}

	// 1. Run log backend
	runLogger, err := runlog.New(ctx, cfg.RunLog, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize run log: %w", err)
	}

	// 2. Screen backend: capture, launch, actuate
	var (
		capturer schemas.Capturer
		launcher schemas.Launcher
		act      schemas.Actuator
	)
	switch cfg.Capture.Backend {
	case "web":
		session, err := platform.NewWebSession(ctx, cfg.Capture.Web, cfg.Capture.ScreenshotDir, logger)
		if err != nil {
			return components, fmt.Errorf("failed to start web backend: %w", err)
		}
		components.WebSession = session
		capturer, launcher, act = session, session, session
	default:
		capturer, err = platform.NewDesktopCapturer(cfg.Capture.ScreenshotDir, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize desktop capture: %w", err)
		}
		launcher = platform.NewDesktopLauncher(cfg.Capture.Browser, logger)
		act, err = actuator.New(cfg.Actuator.Tool, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize actuator: %w", err)
		}
	}

	// 3. Perception. A missing OCR binary degrades to geometry-only
	// detection rather than failing the run.
	var recognizer schemas.TextRecognizer
	if _, err := exec.LookPath("tesseract"); err == nil {
		recognizer = ocr.New(logger)
	} else {
		logger.Warn("tesseract not found on PATH, text detection disabled")
	}
	perceiver := detector.New(cfg.Detector, recognizer, logger)

	// 4. Planner
	plnr, err := planner.NewFromConfig(cfg.Planner, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize planner: %w", err)
	}
	components.Planner = plnr

	// 5. Safety gate and confirmer
	gate := safety.NewGate(cfg.Safety.ConfidenceThreshold, safety.PolicyFromName(cfg.Safety.Policy), logger)
	var confirmer schemas.Confirmer
	if autoApprove {
		confirmer = confirm.NewAutoApprove(logger)
	} else {
		confirmer = confirm.NewTerminal(os.Stdin, os.Stderr, logger)
	}

	// 6. Execution and verification
	coordinator := executor.New(act, cfg.Executor.MaxRetries, cfg.Executor.RetryDelay, logger)
	differ := verifier.New(verifier.NewContentMatcher(), logger)

	orch, err := orchestrator.New(
		capturer, launcher, perceiver, plnr, gate, confirmer, coordinator, differ, runLogger,
		orchestrator.Options{
			SettleDelay: cfg.Capture.SettleDelay,
			LaunchWait:  cfg.Capture.LaunchWait,
		},
		logger,
	)
	if err != nil {
		return components, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	components.Orchestrator = orch
	return components, nil
}

// printRunSummary writes the human-facing outcome to stdout.
func printRunSummary(result *schemas.RunResult) {
	if result == nil {
		return
	}
	fmt.Printf("\nRun %s: %s\n", result.RunID, result.Outcome)
	if result.Error != "" {
		fmt.Printf("  error: %s\n", result.Error)
	}
	if result.Execution != nil {
		fmt.Printf("  steps: %d, success rate: %.2f\n",
			len(result.Execution.Steps), result.Execution.SuccessRate)
		for _, step := range result.Execution.Steps {
			fmt.Printf("    %d. %s (attempts: %d, verification: %s)\n",
				step.StepIndex, step.Outcome, step.Attempts, step.Verification)
		}
	}
	if result.LogRef != "" {
		fmt.Printf("  log: %s\n", result.LogRef)
	}
}
