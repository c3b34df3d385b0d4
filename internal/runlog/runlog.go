// Package runlog persists the audit trail of automation runs. Three backends
// share one contract: an append-only event stream during the run, then a
// single Finalize that writes the structured run record and returns a
// reference to it.
package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
	"github.com/sightline-ai/sightline/internal/config"
)

// Event is one append-only audit entry recorded while a run progresses.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	OK        bool      `json:"ok"`
}

// New builds the run logger selected by cfg.Type. The postgres backend opens
// a live connection pool; callers owning the returned logger should finalize
// every run they start so the backend can release resources.
func New(ctx context.Context, cfg config.RunLogConfig, logger *zap.Logger) (schemas.RunLogger, error) {
	runID := uuid.NewString()
	switch cfg.Type {
	case "file":
		return NewFileLogger(cfg.Dir, runID, logger)
	case "sqlite":
		return NewSQLiteLogger(cfg.SQLitePath, runID, logger)
	case "postgres":
		return NewPostgresLogger(ctx, cfg.Postgres, runID, logger)
	default:
		return nil, fmt.Errorf("unknown runlog type %q", cfg.Type)
	}
}
