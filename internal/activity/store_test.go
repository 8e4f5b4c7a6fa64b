package activity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matthewbaird/jigtrack/internal/store"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewSQLiteStore(ctx, db, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	return s
}

func TestSQLiteStore_WriteAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	withPayload := testEntry(7, "jig", "Returned", 1)
	withPayload.Payload = json.RawMessage(`{"jig_id":7}`)
	writeAll(t, s,
		testEntry(7, "jig", "Checked out", 2),
		withPayload,
		testEntry(8, "jig", "Created", 3),
		testEntry(0, "settings", "Saved", 100),
	)

	opts := DefaultQueryOptions()
	opts.JigID = 7
	results, err := s.Recent(ctx, opts)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	got := results[0]
	if got.Summary != "Returned" || got.User != "admin" || got.JigID != 7 {
		t.Errorf("newest entry = %+v", got)
	}
	if string(got.Payload) != `{"jig_id":7}` {
		t.Errorf("payload = %s", got.Payload)
	}
	if results[1].Payload != nil {
		t.Errorf("entry without payload read back %s", results[1].Payload)
	}
	if d := got.OccurredAt.Sub(withPayload.OccurredAt); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("occurred_at drifted by %v", d)
	}
}

func TestSQLiteStore_TimeWindowAndCategory(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	writeAll(t, s,
		testEntry(1, "jig", "Recent", 5),
		testEntry(1, "jig", "Old", 200),
		testEntry(0, "domain", "Replaced", 1),
	)

	results, err := s.Recent(ctx, DefaultQueryOptions())
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}

	results, err = s.Recent(ctx, QueryOptions{Category: "jig"})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(results) != 2 || results[0].Summary != "Recent" || results[1].Summary != "Old" {
		t.Errorf("category query = %+v", results)
	}
}
