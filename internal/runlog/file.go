package runlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/api/schemas"
)

// FileLogger writes the run record as a single JSON document under a
// directory, one file per run. Events are buffered in memory and embedded in
// the final document, so a crash before Finalize loses the trail; the file
// backend trades durability for zero external dependencies.
type FileLogger struct {
	dir    string
	runID  string
	logger *zap.Logger

	mu     sync.Mutex
	events []Event
}

type fileRecord struct {
	Result *schemas.RunResult `json:"result"`
	Events []Event            `json:"events"`
}

// NewFileLogger creates the log directory if needed.
func NewFileLogger(dir, runID string, logger *zap.Logger) (*FileLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runlog directory: %w", err)
	}
	return &FileLogger{
		dir:    dir,
		runID:  runID,
		logger: logger.Named("runlog.file"),
	}, nil
}

func (f *FileLogger) RunID() string { return f.runID }

func (f *FileLogger) LogInstruction(_ context.Context, instruction string) error {
	f.append(Event{Timestamp: time.Now().UTC(), Name: "instruction", Message: instruction, OK: true})
	return nil
}

func (f *FileLogger) LogAction(_ context.Context, name, message string, ok bool) error {
	f.append(Event{Timestamp: time.Now().UTC(), Name: name, Message: message, OK: ok})
	return nil
}

func (f *FileLogger) append(e Event) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

// Finalize writes the complete run document and returns its path.
func (f *FileLogger) Finalize(_ context.Context, result *schemas.RunResult) (string, error) {
	f.mu.Lock()
	events := make([]Event, len(f.events))
	copy(events, f.events)
	f.mu.Unlock()

	data, err := json.MarshalIndent(fileRecord{Result: result, Events: events}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run record: %w", err)
	}

	path := filepath.Join(f.dir, fmt.Sprintf("run_%s.json", f.runID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run record: %w", err)
	}

	f.logger.Info("Run record written", zap.String("path", path))
	return path, nil
}
