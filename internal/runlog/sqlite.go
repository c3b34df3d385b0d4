package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sightline-ai/sightline/api/schemas"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	instruction  TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	success_rate REAL,
	error        TEXT,
	started_at   TIMESTAMP,
	finished_at  TIMESTAMP,
	payload      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT NOT NULL,
	ts      TIMESTAMP NOT NULL,
	name    TEXT NOT NULL,
	message TEXT,
	ok      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
`

// SQLiteLogger persists runs and their event streams in an embedded database.
// Events are written through immediately, so a partial trail survives a crash
// even though the run row itself only lands at Finalize.
type SQLiteLogger struct {
	db     *sql.DB
	path   string
	runID  string
	logger *zap.Logger
}

// NewSQLiteLogger opens (creating if needed) the database at path and ensures
// the schema exists.
func NewSQLiteLogger(path, runID string, logger *zap.Logger) (*SQLiteLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create runlog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open runlog database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply runlog schema: %w", err)
	}
	return &SQLiteLogger{
		db:     db,
		path:   path,
		runID:  runID,
		logger: logger.Named("runlog.sqlite"),
	}, nil
}

func (s *SQLiteLogger) RunID() string { return s.runID }

func (s *SQLiteLogger) LogInstruction(ctx context.Context, instruction string) error {
	return s.insertEvent(ctx, "instruction", instruction, true)
}

func (s *SQLiteLogger) LogAction(ctx context.Context, name, message string, ok bool) error {
	return s.insertEvent(ctx, name, message, ok)
}

func (s *SQLiteLogger) insertEvent(ctx context.Context, name, message string, ok bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, ts, name, message, ok) VALUES (?, ?, ?, ?, ?)`,
		s.runID, time.Now().UTC(), name, message, ok)
	if err != nil {
		return fmt.Errorf("failed to record run event: %w", err)
	}
	return nil
}

// Finalize stores the run row and closes the database. The returned reference
// names the database file and the run id within it.
func (s *SQLiteLogger) Finalize(ctx context.Context, result *schemas.RunResult) (string, error) {
	defer s.db.Close()

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run record: %w", err)
	}

	var rate sql.NullFloat64
	if result.Execution != nil {
		rate = sql.NullFloat64{Float64: result.Execution.SuccessRate, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, instruction, outcome, success_rate, error, started_at, finished_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, result.Instruction, string(result.Outcome), rate, result.Error,
		result.StartedAt, result.FinishedAt, string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to store run record: %w", err)
	}

	ref := fmt.Sprintf("sqlite:%s#%s", s.path, s.runID)
	s.logger.Info("Run record stored", zap.String("ref", ref))
	return ref, nil
}
