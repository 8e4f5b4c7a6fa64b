package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/ddl"
	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/store"
)

// Entry is one line of the activity log.
type Entry struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	User       string          `json:"user"`
	JigID      int64           `json:"jig_id,omitempty"`
	Summary    string          `json:"summary"`
	Category   string          `json:"category"`
	Weight     string          `json:"weight"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Store is the interface for reading and writing activity entries.
type Store interface {
	Write(ctx context.Context, e Entry) error
	// Recent returns matching entries, newest first.
	Recent(ctx context.Context, opts QueryOptions) ([]Entry, error)
}

// TableName is the activity table in the fixture database.
const TableName = "activity"

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

var tableSchema = schema.MustNew([]schema.FieldSpec{
	{Name: "id", Type: schema.FieldInt, PrimaryKey: true},
	{Name: "event_id", Type: schema.FieldText},
	{Name: "event_type", Type: schema.FieldText},
	{Name: "occurred_at", Type: schema.FieldText},
	{Name: "operator", Type: schema.FieldText},
	{Name: "jig_id", Type: schema.FieldInt},
	{Name: "summary", Type: schema.FieldText},
	{Name: "category", Type: schema.FieldText},
	{Name: "weight", Type: schema.FieldText},
	{Name: "payload", Type: schema.FieldText, Optional: true},
})

// SQLiteStore implements Store on a table of the fixture database.
type SQLiteStore struct {
	table *store.Table
}

// NewSQLiteStore creates the activity table if needed and returns a store
// over it.
func NewSQLiteStore(ctx context.Context, db *sql.DB, log *zap.Logger) (*SQLiteStore, error) {
	if _, err := ddl.CreateTable(ctx, db, tableSchema, TableName, false); err != nil {
		return nil, fmt.Errorf("creating activity table: %w", err)
	}
	t, err := store.NewTable(db, TableName, tableSchema, log)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{table: t}, nil
}

// Write inserts e and commits immediately.
func (s *SQLiteStore) Write(ctx context.Context, e Entry) error {
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	_, err := s.table.Insert(ctx, schema.Record{
		"event_id":    e.EventID,
		"event_type":  e.EventType,
		"occurred_at": e.OccurredAt.UTC().Format(timeLayout),
		"operator":    e.User,
		"jig_id":      e.JigID,
		"summary":     e.Summary,
		"category":    e.Category,
		"weight":      e.Weight,
		"payload":     payload,
	})
	if err != nil {
		_ = s.table.Revert()
		return fmt.Errorf("writing activity entry: %w", err)
	}
	if err := s.table.Commit(); err != nil {
		return fmt.Errorf("writing activity entry: %w", err)
	}
	return nil
}

// Recent returns matching entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	var f store.Filter
	if opts.JigID != 0 {
		f = append(f, store.Eq("jig_id", opts.JigID))
	}
	if opts.Category != "" {
		f = append(f, store.Eq("category", opts.Category))
	}
	if opts.Since != nil || opts.Until != nil {
		lo, hi := "0000", "9999"
		if opts.Since != nil {
			lo = opts.Since.UTC().Format(timeLayout)
		}
		if opts.Until != nil {
			hi = opts.Until.UTC().Format(timeLayout)
		}
		f = append(f, store.Between("occurred_at", lo, hi))
	}
	rows, err := s.table.Select(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := entryOf(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return newestFirst(entries, opts.limit()), nil
}

func entryOf(r schema.Record) (Entry, error) {
	at, err := time.Parse(timeLayout, text(r["occurred_at"]))
	if err != nil {
		return Entry{}, fmt.Errorf("reading activity entry %v: %w", r["id"], err)
	}
	e := Entry{
		EventID:    text(r["event_id"]),
		EventType:  text(r["event_type"]),
		OccurredAt: at,
		User:       text(r["operator"]),
		Summary:    text(r["summary"]),
		Category:   text(r["category"]),
		Weight:     text(r["weight"]),
	}
	if id, ok := r["jig_id"].(int64); ok {
		e.JigID = id
	}
	if p := text(r["payload"]); p != "" {
		e.Payload = json.RawMessage(p)
	}
	return e, nil
}

func text(v any) string {
	s, _ := v.(string)
	return s
}

func newestFirst(entries []Entry, limit int) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.After(entries[j].OccurredAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
