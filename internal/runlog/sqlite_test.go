package runlog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sightline-ai/sightline/internal/config"
)

func configFor(backendType string) config.RunLogConfig {
	return config.RunLogConfig{Type: backendType}
}

func TestSQLiteLogger_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	sl, err := NewSQLiteLogger(path, "run-abc", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "run-abc", sl.RunID())

	ctx := context.Background()
	require.NoError(t, sl.LogInstruction(ctx, "type hello into the editor"))
	require.NoError(t, sl.LogAction(ctx, "capture", "initial.png", true))

	ref, err := sl.Finalize(ctx, sampleResult("run-abc"))
	require.NoError(t, err)
	assert.Contains(t, ref, "run-abc")

	// Reopen and inspect what was persisted.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var instruction, outcome string
	var rate float64
	err = db.QueryRow(`SELECT instruction, outcome, success_rate FROM runs WHERE run_id = ?`, "run-abc").
		Scan(&instruction, &outcome, &rate)
	require.NoError(t, err)
	assert.Equal(t, "open the calculator and compute 2+2", instruction)
	assert.Equal(t, "COMPLETED", outcome)
	assert.Equal(t, 1.0, rate)

	var events int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM run_events WHERE run_id = ?`, "run-abc").Scan(&events))
	assert.Equal(t, 2, events)
}

func TestSQLiteLogger_NullRateWithoutExecution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	sl, err := NewSQLiteLogger(path, "run-err", zaptest.NewLogger(t))
	require.NoError(t, err)

	result := sampleResult("run-err")
	result.Execution = nil
	result.Outcome = "ERRORED"
	result.Error = "screen capture failed"

	_, err = sl.Finalize(context.Background(), result)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var rate sql.NullFloat64
	require.NoError(t, db.QueryRow(`SELECT success_rate FROM runs WHERE run_id = ?`, "run-err").Scan(&rate))
	assert.False(t, rate.Valid)
}
