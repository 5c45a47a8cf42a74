package mealplanner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// GenerationLogger records every provider attempt made while planning.
type GenerationLogger interface {
	LogAttempt(attempt AttemptLog) error
}

// NewGenerationLogFilePath returns a file path based on a cleaned up model name or id to make it easier to identify logs produced with various models.
func NewGenerationLogFilePath(model string) string {
	r := strings.NewReplacer(":", "_", "/", "_")
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		r.Replace(strings.ToLower(model)),
	)
}

// AttemptLog is one provider call for one day.
type AttemptLog struct {
	DayIndex  int       `json:"day_index"`
	Attempt   int       `json:"attempt"`
	Repair    bool      `json:"repair"`
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt,omitempty"`
	Output    string    `json:"output,omitempty"`
	Rule      string    `json:"rule,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// FileGenerationLogger accumulates attempts and writes them on Flush.
type FileGenerationLogger struct {
	mu       sync.Mutex
	attempts []AttemptLog
	writer   io.Writer
}

func NewFileGenerationLogger(writer io.Writer) *FileGenerationLogger {
	return &FileGenerationLogger{
		attempts: make([]AttemptLog, 0),
		writer:   writer,
	}
}

// LogAttempt buffers the attempt; nothing is written until Flush.
func (l *FileGenerationLogger) LogAttempt(attempt AttemptLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, attempt)
	return nil
}

// Flush writes all buffered attempts to the writer and clears the buffer.
func (l *FileGenerationLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"generation_session": map[string]any{
			"timestamp": time.Now(),
			"attempts":  l.attempts,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal generation log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write generation log: %w", err)
	}

	l.attempts = l.attempts[:0]
	return nil
}

// NoOpGenerationLogger discards all attempts.
type NoOpGenerationLogger struct{}

func NewNoOpGenerationLogger() *NoOpGenerationLogger {
	return &NoOpGenerationLogger{}
}

func (NoOpGenerationLogger) LogAttempt(AttemptLog) error { return nil }

// StdoutGenerationLogger writes each attempt as a JSON line (for Lambda/CloudWatch).
type StdoutGenerationLogger struct {
	out io.Writer
}

func NewStdoutGenerationLogger() *StdoutGenerationLogger {
	return &StdoutGenerationLogger{out: os.Stdout}
}

func (l *StdoutGenerationLogger) LogAttempt(attempt AttemptLog) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
