// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sightline-ai/sightline/cmd"
	"github.com/sightline-ai/sightline/internal/observability"
)

// main is the entry point for the sightline agent.
func main() {
	defer observability.Sync()

	// A signal-aware context lets an interrupted run still finalize its log.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
