package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestSQLStoreAppendFirstEntry(t *testing.T) {
	store, mock := newMockStore(t)
	event := NewEvent(KindValidation, "h", "contract", []string{"m"})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sequence, entry_hash FROM audit_runs").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO audit_runs").
		WithArgs(uint64(1), event.ID, string(KindValidation), event.Timestamp,
			sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry, err := store.Append(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, uint64(1), entry.Sequence)
	require.Empty(t, entry.PreviousHash)
	require.Equal(t, chainHash(entry), entry.EntryHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreAppendChainsToHead(t *testing.T) {
	store, mock := newMockStore(t)
	event := NewEvent(KindSynthesis, "h", "", nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sequence, entry_hash FROM audit_runs").
		WillReturnRows(sqlmock.NewRows([]string{"sequence", "entry_hash"}).
			AddRow(uint64(7), "previous-hash"))
	mock.ExpectExec("INSERT INTO audit_runs").
		WithArgs(uint64(8), event.ID, string(KindSynthesis), event.Timestamp,
			sqlmock.AnyArg(), "previous-hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry, err := store.Append(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, uint64(8), entry.Sequence)
	require.Equal(t, "previous-hash", entry.PreviousHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreAppendRollsBackOnInsertFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sequence, entry_hash FROM audit_runs").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO audit_runs").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := store.Append(context.Background(), NewEvent(KindValidation, "h", "", nil))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// buildChain produces n valid chained entries for replay tests.
func buildChain(t *testing.T, n int) []*Entry {
	t.Helper()
	entries := make([]*Entry, 0, n)
	previous := ""
	for i := 1; i <= n; i++ {
		event := NewEvent(KindValidation, "h", "contract", nil)
		raw, err := json.Marshal(event)
		require.NoError(t, err)
		entry := &Entry{
			Sequence:     uint64(i),
			Event:        raw,
			EventID:      event.ID,
			Kind:         event.Kind,
			Timestamp:    event.Timestamp,
			PreviousHash: previous,
		}
		entry.EntryHash = chainHash(entry)
		previous = entry.EntryHash
		entries = append(entries, entry)
	}
	return entries
}

func chainRows(entries []*Entry) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"sequence", "event_id", "kind", "timestamp", "event", "previous_hash", "entry_hash",
	})
	for _, e := range entries {
		rows.AddRow(e.Sequence, e.EventID, string(e.Kind), e.Timestamp,
			string(e.Event), e.PreviousHash, e.EntryHash)
	}
	return rows
}

func TestSQLStoreVerifyChain(t *testing.T) {
	t.Run("intact chain verifies", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT sequence, event_id, kind, timestamp, event, previous_hash, entry_hash").
			WillReturnRows(chainRows(buildChain(t, 3)))
		require.NoError(t, store.VerifyChain(context.Background()))
	})

	t.Run("tampered event detected", func(t *testing.T) {
		store, mock := newMockStore(t)
		entries := buildChain(t, 3)
		entries[1].Event = json.RawMessage(`{"id":"forged"}`)
		mock.ExpectQuery("SELECT sequence, event_id, kind, timestamp, event, previous_hash, entry_hash").
			WillReturnRows(chainRows(entries))
		require.ErrorIs(t, store.VerifyChain(context.Background()), ErrChainBroken)
	})

	t.Run("broken link detected", func(t *testing.T) {
		store, mock := newMockStore(t)
		entries := buildChain(t, 3)
		entries[2].PreviousHash = "severed"
		mock.ExpectQuery("SELECT sequence, event_id, kind, timestamp, event, previous_hash, entry_hash").
			WillReturnRows(chainRows(entries))
		require.ErrorIs(t, store.VerifyChain(context.Background()), ErrChainBroken)
	})

	t.Run("empty chain verifies", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT sequence, event_id, kind, timestamp, event, previous_hash, entry_hash").
			WillReturnRows(chainRows(nil))
		require.NoError(t, store.VerifyChain(context.Background()))
	})
}

func TestSQLStoreList(t *testing.T) {
	store, mock := newMockStore(t)
	entries := buildChain(t, 2)
	mock.ExpectQuery("SELECT sequence, event_id, kind, timestamp, event, previous_hash, entry_hash").
		WillReturnRows(chainRows(entries))

	got, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, entries[0].EventID, got[0].EventID)
	require.Equal(t, entries[1].EntryHash, got[1].EntryHash)
}

func TestStoreLogger(t *testing.T) {
	t.Run("fails closed without a store", func(t *testing.T) {
		logger := NewStoreLogger(nil)
		require.ErrorIs(t, logger.Record(context.Background(), Event{}), ErrStoreNotConfigured)
	})

	t.Run("appends through the store", func(t *testing.T) {
		store, mock := newMockStore(t)
		logger := NewStoreLogger(store)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT sequence, entry_hash FROM audit_runs").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO audit_runs").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		event := NewEvent(KindValidation, "h", "", nil)
		event.Duration = 5 * time.Millisecond
		require.NoError(t, logger.Record(context.Background(), event))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
