// Package store is the SQLite-backed row store for jig records and the
// enumerated-domain tables.
//
// Edits are staged in an open transaction: Insert, Update and Delete apply to
// the transaction, Commit makes them durable and Revert discards them. Reads
// made while edits are staged see the staged state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

var (
	// ErrCommit wraps every failure to apply staged edits.
	ErrCommit = errors.New("storage error")
	// ErrNotFound is returned when no row has the requested key.
	ErrNotFound = errors.New("record not found")
)

// Open opens the SQLite database at path with a single connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return db, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Table is the row store for one schema-described table.
type Table struct {
	db     *sql.DB
	name   string
	schema *schema.Schema
	pk     string
	log    *zap.Logger
	tx     *sql.Tx
}

// NewTable returns a store for table name described by s. The schema must
// declare a primary key.
func NewTable(db *sql.DB, name string, s *schema.Schema, log *zap.Logger) (*Table, error) {
	pk, ok := s.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("table %s: schema has no primary key", name)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Table{db: db, name: name, schema: s, pk: pk.Name, log: log}, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the schema rows are read with.
func (t *Table) Schema() *schema.Schema { return t.schema }

// DB returns the underlying database.
func (t *Table) DB() *sql.DB { return t.db }

// Pending reports whether edits are staged.
func (t *Table) Pending() bool { return t.tx != nil }

func (t *Table) querier() querier {
	if t.tx != nil {
		return t.tx
	}
	return t.db
}

func (t *Table) stage(ctx context.Context) (*sql.Tx, error) {
	if t.tx != nil {
		return t.tx, nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrCommit, err)
	}
	t.tx = tx
	return tx, nil
}

// Select returns the rows matching f ordered by primary key.
func (t *Table) Select(ctx context.Context, f Filter) ([]schema.Record, error) {
	cols := t.schema.Names()
	sel := entsql.Dialect(dialect.SQLite).
		Select(cols...).
		From(entsql.Dialect(dialect.SQLite).Table(t.name)).
		OrderBy(entsql.Asc(t.pk))
	if p := f.predicate(); p != nil {
		sel.Where(p)
	}
	query, args := sel.Query()

	rows, err := t.querier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []schema.Record
	for rows.Next() {
		r, err := t.scan(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", t.name, err)
	}
	return out, nil
}

// Get returns the row with the given key.
func (t *Table) Get(ctx context.Context, key int64) (schema.Record, error) {
	rows, err := t.Select(ctx, Filter{Eq(t.pk, key)})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %d: %w", t.name, key, ErrNotFound)
	}
	return rows[0], nil
}

func (t *Table) scan(rows *sql.Rows, cols []string) (schema.Record, error) {
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning %s row: %w", t.name, err)
	}
	r := make(schema.Record, len(cols))
	for i, c := range cols {
		f, _ := t.schema.Field(c)
		v, err := schema.Coerce(f, raw[i])
		if err != nil {
			return nil, fmt.Errorf("reading %s.%s: %w", t.name, c, err)
		}
		r[c] = v
	}
	return r, nil
}

// Insert stages a new row and returns its assigned key. Fields absent from r
// and a nil primary key are left to the column defaults.
func (t *Table) Insert(ctx context.Context, r schema.Record) (int64, error) {
	var cols []string
	var vals []any
	for _, f := range t.schema.Fields() {
		v, ok := r[f.Name]
		if !ok || (f.PrimaryKey && v == nil) {
			continue
		}
		cols = append(cols, f.Name)
		vals = append(vals, schema.StorageValue(v))
	}
	query, args := entsql.Dialect(dialect.SQLite).
		Insert(t.name).
		Columns(cols...).
		Values(vals...).
		Query()

	tx, err := t.stage(ctx)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: insert into %s: %v", ErrCommit, t.name, err)
	}
	key, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: insert into %s: %v", ErrCommit, t.name, err)
	}
	t.log.Debug("row staged", zap.String("op", "insert"), zap.String("table", t.name), zap.Int64("jig_id", key))
	return key, nil
}

// Update stages new values for the fields of partial that belong to the
// schema. The primary key is never rewritten. It reports whether a row
// matched.
func (t *Table) Update(ctx context.Context, key int64, partial schema.Record) (bool, error) {
	upd := entsql.Dialect(dialect.SQLite).Update(t.name)
	n := 0
	for _, f := range t.schema.Fields() {
		v, ok := partial[f.Name]
		if !ok || f.PrimaryKey {
			continue
		}
		upd.Set(f.Name, schema.StorageValue(v))
		n++
	}
	if n == 0 {
		return false, nil
	}
	query, args := upd.Where(entsql.EQ(t.pk, key)).Query()

	tx, err := t.stage(ctx)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: update %s %d: %v", ErrCommit, t.name, key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: update %s %d: %v", ErrCommit, t.name, key, err)
	}
	t.log.Debug("row staged", zap.String("op", "update"), zap.String("table", t.name), zap.Int64("jig_id", key))
	return affected > 0, nil
}

// Delete stages removal of the row with key and reports whether it existed.
func (t *Table) Delete(ctx context.Context, key int64) (bool, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Delete(t.name).
		Where(entsql.EQ(t.pk, key)).
		Query()

	tx, err := t.stage(ctx)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: delete %s %d: %v", ErrCommit, t.name, key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete %s %d: %v", ErrCommit, t.name, key, err)
	}
	t.log.Debug("row staged", zap.String("op", "delete"), zap.String("table", t.name), zap.Int64("jig_id", key))
	return affected > 0, nil
}

// Commit makes all staged edits durable. On failure nothing is applied.
func (t *Table) Commit() error {
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: commit %s: %v", ErrCommit, t.name, err)
	}
	return nil
}

// Revert discards all staged edits.
func (t *Table) Revert() error {
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("reverting %s: %w", t.name, err)
	}
	return nil
}
