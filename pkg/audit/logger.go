// Package audit emits one immutable record per orchestration or synthesis run
// and offers durable, hash-chained persistence plus archive export. The core
// only emits events; their consumption is owned by external collaborators.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind categorizes a run record.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindSynthesis  Kind = "SYNTHESIS"
)

// Event is a structured audit record for a single run.
type Event struct {
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind"`
	Timestamp    time.Time         `json:"timestamp"`
	DocumentHash string            `json:"document_hash"`
	DocumentType string            `json:"document_type,omitempty"`
	ModuleIDs    []string          `json:"module_ids"`
	Summary      map[string]string `json:"summary,omitempty"`
	Duration     time.Duration     `json:"duration"`
}

// NewEvent stamps a record with a fresh id and UTC timestamp.
func NewEvent(kind Kind, documentHash, documentType string, moduleIDs []string) Event {
	return Event{
		ID:           uuid.New().String(),
		Kind:         kind,
		Timestamp:    time.Now().UTC(),
		DocumentHash: documentHash,
		DocumentType: documentType,
		ModuleIDs:    append([]string(nil), moduleIDs...),
		Summary:      make(map[string]string),
	}
}

// Logger records audit events. Implementations must be safe for concurrent use.
type Logger interface {
	Record(ctx context.Context, event Event) error
}

// NopLogger discards every event. Default for library embedding.
type NopLogger struct{}

func (NopLogger) Record(context.Context, Event) error { return nil }

// writerLogger writes JSON lines to a configurable writer.
type writerLogger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// Allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &writerLogger{writer: w}
}

func (l *writerLogger) Record(ctx context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(raw, '\n')...))
	return err
}
