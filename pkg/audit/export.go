package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimeRange is returned when start time is after end time.
var ErrInvalidTimeRange = errors.New("audit: start_time must be before end_time")

// ArchiveStore persists an export pack and returns its content address.
// S3 and GCS implementations live in this package; any conforming blob store
// may be substituted.
type ArchiveStore interface {
	Store(ctx context.Context, data []byte) (string, error)
}

// Pack is a verifiable bundle of audit entries for a time window.
type Pack struct {
	GeneratedAt time.Time `json:"generated_at"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	EntryCount  int       `json:"entry_count"`
	Checksum    string    `json:"checksum"`
	ArchiveRef  string    `json:"archive_ref,omitempty"`
}

// Exporter bundles entries from a RunStore into zip packs and optionally
// pushes them to an archive store.
type Exporter struct {
	store   RunStore
	archive ArchiveStore
}

// NewExporter builds an Exporter. archive may be nil for local-only export.
func NewExporter(store RunStore, archive ArchiveStore) *Exporter {
	return &Exporter{store: store, archive: archive}
}

// Export collects the entries in [start, end], zips them and, when an archive
// store is configured, uploads the pack content-addressed.
func (e *Exporter) Export(ctx context.Context, start, end time.Time) (*Pack, []byte, error) {
	if e.store == nil {
		return nil, nil, ErrStoreNotConfigured
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return nil, nil, ErrInvalidTimeRange
	}

	entries, err := e.store.List(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	var selected []*Entry
	for _, entry := range entries {
		if !start.IsZero() && entry.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && entry.Timestamp.After(end) {
			continue
		}
		selected = append(selected, entry)
	}

	payload, err := json.MarshalIndent(selected, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("audit: marshal pack: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("entries.json")
	if err != nil {
		return nil, nil, fmt.Errorf("audit: zip create: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return nil, nil, fmt.Errorf("audit: zip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("audit: zip close: %w", err)
	}

	data := buf.Bytes()
	sum := sha256.Sum256(data)
	pack := &Pack{
		GeneratedAt: time.Now().UTC(),
		StartTime:   start,
		EndTime:     end,
		EntryCount:  len(selected),
		Checksum:    hex.EncodeToString(sum[:]),
	}

	if e.archive != nil {
		ref, err := e.archive.Store(ctx, data)
		if err != nil {
			return nil, nil, fmt.Errorf("audit: archive upload: %w", err)
		}
		pack.ArchiveRef = ref
	}
	return pack, data, nil
}
