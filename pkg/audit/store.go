package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrChainBroken is returned by VerifyChain when the hash chain does not
	// replay cleanly.
	ErrChainBroken = errors.New("audit: hash chain is broken")
	// ErrStoreNotConfigured is returned when a store-backed logger has no store.
	ErrStoreNotConfigured = errors.New("audit: store not configured (fail-closed)")
)

// Entry is an Event as persisted: sequenced and hash-chained so tampering with
// any historical record invalidates every later entry hash.
type Entry struct {
	Sequence     uint64          `json:"sequence"`
	Event        json.RawMessage `json:"event"`
	EventID      string          `json:"event_id"`
	Kind         Kind            `json:"kind"`
	Timestamp    time.Time       `json:"timestamp"`
	PreviousHash string          `json:"previous_hash"`
	EntryHash    string          `json:"entry_hash"`
}

// RunStore persists audit entries append-only.
type RunStore interface {
	Append(ctx context.Context, event Event) (*Entry, error)
	List(ctx context.Context, limit int) ([]*Entry, error)
	VerifyChain(ctx context.Context) error
}

// SQLStore is a RunStore on database/sql. It works against the modernc.org
// sqlite driver and lib/pq alike; only the placeholder style differs.
type SQLStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

// NewSQLiteStore builds a RunStore over a sqlite database handle and runs the
// schema migration.
func NewSQLiteStore(db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{
		db:          db,
		placeholder: func(int) string { return "?" },
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPostgresStore builds a RunStore over a postgres database handle.
func NewPostgresStore(db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{
		db:          db,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_runs (
		sequence      INTEGER PRIMARY KEY,
		event_id      TEXT NOT NULL UNIQUE,
		kind          TEXT NOT NULL,
		timestamp     TIMESTAMP NOT NULL,
		event         TEXT NOT NULL,
		previous_hash TEXT NOT NULL DEFAULT '',
		entry_hash    TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Append serializes the event, chains it to the current head and inserts it.
// The read-chain-then-insert runs in a transaction so concurrent appends
// cannot fork the chain.
func (s *SQLStore) Append(ctx context.Context, event Event) (*Entry, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("audit: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sequence uint64
	var previousHash string
	row := tx.QueryRowContext(ctx,
		`SELECT sequence, entry_hash FROM audit_runs ORDER BY sequence DESC LIMIT 1`)
	switch err := row.Scan(&sequence, &previousHash); {
	case errors.Is(err, sql.ErrNoRows):
		sequence, previousHash = 0, ""
	case err != nil:
		return nil, fmt.Errorf("audit: read chain head: %w", err)
	}

	entry := &Entry{
		Sequence:     sequence + 1,
		Event:        raw,
		EventID:      event.ID,
		Kind:         event.Kind,
		Timestamp:    event.Timestamp,
		PreviousHash: previousHash,
	}
	entry.EntryHash = chainHash(entry)

	query := fmt.Sprintf(
		`INSERT INTO audit_runs (sequence, event_id, kind, timestamp, event, previous_hash, entry_hash)
		 VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
		s.placeholder(5), s.placeholder(6), s.placeholder(7))
	if _, err := tx.ExecContext(ctx, query,
		entry.Sequence, entry.EventID, string(entry.Kind), entry.Timestamp,
		string(raw), entry.PreviousHash, entry.EntryHash); err != nil {
		return nil, fmt.Errorf("audit: insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("audit: commit: %w", err)
	}
	return entry, nil
}

// List returns up to limit entries in chain order (oldest first).
func (s *SQLStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := `SELECT sequence, event_id, kind, timestamp, event, previous_hash, entry_hash
	          FROM audit_runs ORDER BY sequence ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var kind, event string
		if err := rows.Scan(&e.Sequence, &e.EventID, &kind, &e.Timestamp, &event, &e.PreviousHash, &e.EntryHash); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Kind = Kind(kind)
		e.Event = json.RawMessage(event)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// VerifyChain replays the chain and fails on the first inconsistent link.
func (s *SQLStore) VerifyChain(ctx context.Context) error {
	entries, err := s.List(ctx, 0)
	if err != nil {
		return err
	}
	previous := ""
	for _, e := range entries {
		if e.PreviousHash != previous {
			return fmt.Errorf("%w: entry %d links to %q, expected %q",
				ErrChainBroken, e.Sequence, e.PreviousHash, previous)
		}
		if chainHash(e) != e.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrChainBroken, e.Sequence)
		}
		previous = e.EntryHash
	}
	return nil
}

// chainHash hashes the entry's immutable fields plus the previous hash.
func chainHash(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%d|", e.Sequence, e.EventID, e.Kind, e.Timestamp.UnixNano())
	h.Write(e.Event)
	h.Write([]byte("|" + e.PreviousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// StoreLogger is a Logger that persists into a RunStore.
type StoreLogger struct {
	store RunStore
}

// NewStoreLogger wraps a RunStore as a Logger.
func NewStoreLogger(store RunStore) *StoreLogger {
	return &StoreLogger{store: store}
}

func (l *StoreLogger) Record(ctx context.Context, event Event) error {
	if l.store == nil {
		return ErrStoreNotConfigured
	}
	_, err := l.store.Append(ctx, event)
	return err
}
