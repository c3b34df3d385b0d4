package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
	"github.com/sightline-ai/sightline/internal/config"
)

// DBPool is the subset of pgxpool.Pool the logger needs. Narrowing the
// surface lets tests substitute a pgxmock pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	instruction  TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	success_rate DOUBLE PRECISION,
	error        TEXT,
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ,
	payload      JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS run_events (
	id      BIGSERIAL PRIMARY KEY,
	run_id  TEXT NOT NULL,
	ts      TIMESTAMPTZ NOT NULL,
	name    TEXT NOT NULL,
	message TEXT,
	ok      BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
`

// PostgresLogger persists runs in a shared database, for deployments where
// several agents report to one audit store.
type PostgresLogger struct {
	pool   DBPool
	runID  string
	logger *zap.Logger
}

// NewPostgresLogger connects to the configured database and ensures the
// schema exists.
func NewPostgresLogger(ctx context.Context, cfg config.PostgresConfig, runID string, logger *zap.Logger) (*PostgresLogger, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	pl, err := NewPostgresLoggerWithPool(ctx, pool, runID, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return pl, nil
}

// NewPostgresLoggerWithPool wires an existing pool, verifying connectivity
// and applying the schema.
func NewPostgresLoggerWithPool(ctx context.Context, pool DBPool, runID string, logger *zap.Logger) (*PostgresLogger, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping runlog database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to apply runlog schema: %w", err)
	}
	return &PostgresLogger{
		pool:   pool,
		runID:  runID,
		logger: logger.Named("runlog.postgres"),
	}, nil
}

func (p *PostgresLogger) RunID() string { return p.runID }

func (p *PostgresLogger) LogInstruction(ctx context.Context, instruction string) error {
	return p.insertEvent(ctx, "instruction", instruction, true)
}

func (p *PostgresLogger) LogAction(ctx context.Context, name, message string, ok bool) error {
	return p.insertEvent(ctx, name, message, ok)
}

func (p *PostgresLogger) insertEvent(ctx context.Context, name, message string, ok bool) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO run_events (run_id, ts, name, message, ok) VALUES ($1, $2, $3, $4, $5)`,
		p.runID, time.Now().UTC(), name, message, ok)
	if err != nil {
		return fmt.Errorf("failed to record run event: %w", err)
	}
	return nil
}

// Finalize stores the run row and releases the pool.
func (p *PostgresLogger) Finalize(ctx context.Context, result *schemas.RunResult) (string, error) {
	defer p.pool.Close()

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run record: %w", err)
	}

	var rate *float64
	if result.Execution != nil {
		rate = &result.Execution.SuccessRate
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO runs (run_id, instruction, outcome, success_rate, error, started_at, finished_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.runID, result.Instruction, string(result.Outcome), rate, result.Error,
		result.StartedAt, result.FinishedAt, payload)
	if err != nil {
		return "", fmt.Errorf("failed to store run record: %w", err)
	}

	ref := fmt.Sprintf("postgres://runs/%s", p.runID)
	p.logger.Info("Run record stored", zap.String("ref", ref))
	return ref, nil
}
