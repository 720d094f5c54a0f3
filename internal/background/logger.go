package background

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
)

// RunCompletionLogger emits run lifecycle logs and one JSON line per finished
// run for log collectors
type RunCompletionLogger struct {
	logger types.Logger
	out    io.Writer
	mu     sync.Mutex
}

// NewRunCompletionLogger writes completion lines to out, or stdout when nil
func NewRunCompletionLogger(logger types.Logger, out io.Writer) *RunCompletionLogger {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if out == nil {
		out = os.Stdout
	}
	return &RunCompletionLogger{logger: logger, out: out}
}

// RunCompletionLog is the structured record of a finished run
type RunCompletionLog struct {
	RunID          string    `json:"runId"`
	Trigger        string    `json:"trigger"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Operation      string    `json:"operation"`
	ProcessingTime string    `json:"processing_time"`
	Inserted       int       `json:"inserted"`
	Updated        int       `json:"updated"`
	Spooled        int       `json:"spooled"`
	Failures       int       `json:"failures"`
	Cancelled      bool      `json:"cancelled"`
}

// CreateRunCompletionLog builds the completion record for a result
func CreateRunCompletionLog(result *RunResult) *RunCompletionLog {
	processingTime := "0s"
	if result.ProcessingTime != nil {
		processingTime = result.ProcessingTime.String()
	}

	entry := &RunCompletionLog{
		RunID:          result.RunID,
		Trigger:        result.Trigger,
		Status:         string(result.Status),
		Error:          result.Error,
		Timestamp:      time.Now().UTC(),
		Operation:      "discover",
		ProcessingTime: processingTime,
	}
	if s := result.Summary; s != nil {
		entry.Inserted = s.Inserted
		entry.Updated = s.Updated
		entry.Spooled = s.Spooled
		entry.Failures = s.FailureCount()
		entry.Cancelled = s.Cancelled
	}
	return entry
}

// LogRunCompletion writes the JSON completion line and an application log entry
func (l *RunCompletionLogger) LogRunCompletion(result *RunResult) error {
	entry := CreateRunCompletionLog(result)

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("Failed to marshal run completion log", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to marshal run completion log: %w", err)
	}

	l.mu.Lock()
	_, err = l.out.Write(append(data, '\n'))
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write run completion log: %w", err)
	}

	fields := map[string]interface{}{
		"run_id":          result.RunID,
		"status":          result.Status,
		"trigger":         result.Trigger,
		"processing_time": entry.ProcessingTime,
	}
	if result.Status == RunStatusFailure {
		fields["error"] = result.Error
		l.logger.Error("Discovery run failed", fields)
		return nil
	}
	l.logger.Info("Discovery run completed", fields)
	return nil
}

// LogRunStart logs when a run starts processing
func (l *RunCompletionLogger) LogRunStart(result *RunResult) {
	l.logger.Info("Discovery run started", map[string]interface{}{
		"run_id":  result.RunID,
		"trigger": result.Trigger,
		"status":  "PROCESSING",
	})
}

// LogRunAccepted logs when a run is queued
func (l *RunCompletionLogger) LogRunAccepted(result *RunResult) {
	l.logger.Info("Discovery run accepted", map[string]interface{}{
		"run_id":  result.RunID,
		"trigger": result.Trigger,
		"status":  "ACCEPTED",
	})
}
