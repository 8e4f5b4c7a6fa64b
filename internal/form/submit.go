package form

import (
	"context"
	"errors"
	"fmt"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

// ErrRowGone is returned when the row being edited no longer exists.
var ErrRowGone = errors.New("edited row no longer exists")

// RowStore is the staged-write side of the row store.
type RowStore interface {
	Insert(ctx context.Context, r schema.Record) (int64, error)
	Update(ctx context.Context, key int64, partial schema.Record) (bool, error)
	Commit() error
	Revert() error
}

// RowMapper maps a display row of the current view to its storage row and
// key.
type RowMapper interface {
	DisplayToStorage(display int) (int, error)
	KeyAt(storage int) (int64, error)
}

// Target is where Submit writes.
type Target struct {
	Store RowStore
	View  RowMapper
}

// Mode selects between appending a new row and editing a displayed one.
type Mode struct {
	edit       bool
	displayRow int
}

// CreateMode appends a new row.
func CreateMode() Mode { return Mode{} }

// EditMode overwrites the row shown at displayRow of the current view.
func EditMode(displayRow int) Mode { return Mode{edit: true, displayRow: displayRow} }

// IsEdit reports whether m edits an existing row.
func (m Mode) IsEdit() bool { return m.edit }

// DisplayRow returns the edited display row.
func (m Mode) DisplayRow() int { return m.displayRow }

// Submit writes a validated record and commits. In create mode a nil primary
// key is left to the store. In edit mode only schema fields other than the
// key are overwritten. Any failure reverts every staged edit so the store is
// back at its last committed state; the returned key is the written row's.
func Submit(ctx context.Context, s *schema.Schema, r schema.Record, mode Mode, t Target) (int64, error) {
	key, err := stage(ctx, s, r, mode, t)
	if err != nil {
		if rerr := t.Store.Revert(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return 0, err
	}
	if err := t.Store.Commit(); err != nil {
		if rerr := t.Store.Revert(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return 0, err
	}
	return key, nil
}

func stage(ctx context.Context, s *schema.Schema, r schema.Record, mode Mode, t Target) (int64, error) {
	pk, hasPK := s.PrimaryKey()

	if !mode.edit {
		row := schema.Record{}
		for _, f := range s.Fields() {
			v, ok := r[f.Name]
			if !ok || (f.PrimaryKey && v == nil) {
				continue
			}
			row[f.Name] = v
		}
		return t.Store.Insert(ctx, row)
	}

	storage, err := t.View.DisplayToStorage(mode.displayRow)
	if err != nil {
		return 0, err
	}
	key, err := t.View.KeyAt(storage)
	if err != nil {
		return 0, err
	}
	partial := schema.Record{}
	for _, f := range s.Fields() {
		if hasPK && f.Name == pk.Name {
			continue
		}
		if v, ok := r[f.Name]; ok {
			partial[f.Name] = v
		}
	}
	ok, err := t.Store.Update(ctx, key, partial)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: key %d", ErrRowGone, key)
	}
	return key, nil
}
