// Package table coordinates the record list: structured filters pushed down
// to the row store, a free-text filter and sort applied in memory, the
// display-to-storage row mapping, re-selection after writes and per-cell
// warning states.
package table

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/store"
	"github.com/matthewbaird/jigtrack/internal/style"
)

var (
	// ErrNotVisible is returned when a written row is hidden by the current
	// filter.
	ErrNotVisible = errors.New("row is not visible under the current filter")
	// ErrOutOfRange is returned for a display or storage row that does not
	// exist.
	ErrOutOfRange = errors.New("row index out of range")
)

// Source is the read side of the row store.
type Source interface {
	Select(ctx context.Context, f store.Filter) ([]schema.Record, error)
}

// DateRange is an inclusive range of calendar days. A zero side is open.
type DateRange struct {
	From schema.Date
	To   schema.Date
}

// Criteria is the structured filter: date ranges and exact matches keyed by
// column, combined with AND.
type Criteria struct {
	Ranges map[string]DateRange
	Equals map[string]string
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool { return len(c.Ranges) == 0 && len(c.Equals) == 0 }

var (
	openFrom = schema.Date{Year: 1, Month: 1, Day: 1}
	openTo   = schema.Date{Year: 9999, Month: 12, Day: 31}
)

// Filter renders the criteria as row-store clauses in column order.
func (c Criteria) Filter() store.Filter {
	var f store.Filter
	for _, col := range sortedKeys(c.Ranges) {
		r := c.Ranges[col]
		from, to := r.From, r.To
		if from.IsZero() {
			from = openFrom
		}
		if to.IsZero() {
			to = openTo
		}
		f = append(f, store.Between(col, from.String(), to.String()))
	}
	for _, col := range sortedKeys(c.Equals) {
		f = append(f, store.Eq(col, c.Equals[col]))
	}
	return f
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Coordinator is the filtered, sorted view over the row store.
type Coordinator struct {
	src    Source
	schema *schema.Schema
	pk     string

	headers []string
	engine  *style.Engine

	rows []schema.Record // storage order
	view []int           // display row -> storage row

	search   string
	criteria Criteria
	sortCol  string
	sortDesc bool
	selected int
}

// New returns a coordinator over src. Call Refresh to load rows.
func New(src Source, s *schema.Schema) *Coordinator {
	pk, _ := s.PrimaryKey()
	c := &Coordinator{src: src, schema: s, pk: pk.Name, selected: -1}
	c.headers = s.Names()
	c.engine = style.NewEngine(c.headers)
	return c
}

// Headers returns the column names in display order.
func (c *Coordinator) Headers() []string { return c.headers }

// Titles returns the column titles in display order.
func (c *Coordinator) Titles() []string {
	out := make([]string, len(c.headers))
	for i, h := range c.headers {
		f, _ := c.schema.Field(h)
		out[i] = f.Label()
	}
	return out
}

// Refresh reloads the rows matching the structured criteria and rebuilds the
// view. The style engine's column index is re-derived from the header.
func (c *Coordinator) Refresh(ctx context.Context) error {
	rows, err := c.src.Select(ctx, c.criteria.Filter())
	if err != nil {
		return fmt.Errorf("refreshing table: %w", err)
	}
	c.rows = rows
	c.headers = c.schema.Names()
	c.engine.Reset(c.headers)
	c.rebuild()
	return nil
}

// SetCriteria replaces the structured filter and refreshes.
func (c *Coordinator) SetCriteria(ctx context.Context, cr Criteria) error {
	for col := range cr.Ranges {
		if _, ok := c.schema.Field(col); !ok {
			return fmt.Errorf("filter on unknown column %q", col)
		}
	}
	for col := range cr.Equals {
		if _, ok := c.schema.Field(col); !ok {
			return fmt.Errorf("filter on unknown column %q", col)
		}
	}
	c.criteria = cr
	return c.Refresh(ctx)
}

// Criteria returns the active structured filter.
func (c *Coordinator) Criteria() Criteria { return c.criteria }

// SetSearch sets the case-insensitive free-text filter matched against every
// column.
func (c *Coordinator) SetSearch(text string) {
	c.search = strings.TrimSpace(text)
	c.rebuild()
}

// Search returns the free-text filter.
func (c *Coordinator) Search() string { return c.search }

// SortBy orders the view by column. An empty column restores storage order.
func (c *Coordinator) SortBy(column string, desc bool) error {
	if column != "" {
		if _, ok := c.schema.Field(column); !ok {
			return fmt.Errorf("sort on unknown column %q", column)
		}
	}
	c.sortCol, c.sortDesc = column, desc
	c.rebuild()
	return nil
}

// Sort returns the sort column and direction.
func (c *Coordinator) Sort() (string, bool) { return c.sortCol, c.sortDesc }

func (c *Coordinator) rebuild() {
	needle := strings.ToLower(c.search)
	view := make([]int, 0, len(c.rows))
	for i, r := range c.rows {
		if needle == "" || c.matches(r, needle) {
			view = append(view, i)
		}
	}
	if c.sortCol != "" {
		f, _ := c.schema.Field(c.sortCol)
		sort.SliceStable(view, func(i, j int) bool {
			a, b := c.rows[view[i]][c.sortCol], c.rows[view[j]][c.sortCol]
			if c.sortDesc {
				return less(f, b, a)
			}
			return less(f, a, b)
		})
	}
	c.view = view
	c.selected = -1
}

func (c *Coordinator) matches(r schema.Record, needle string) bool {
	for _, h := range c.headers {
		if strings.Contains(strings.ToLower(schema.Display(r[h])), needle) {
			return true
		}
	}
	return false
}

func less(f schema.FieldSpec, a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	switch f.Type {
	case schema.FieldInt:
		x, okx := a.(int64)
		y, oky := b.(int64)
		if okx && oky {
			return x < y
		}
	case schema.FieldFloat:
		x, okx := a.(float64)
		y, oky := b.(float64)
		if okx && oky {
			return x < y
		}
	case schema.FieldBool:
		x, _ := a.(bool)
		y, _ := b.(bool)
		return !x && y
	case schema.FieldDate:
		x, okx := a.(schema.Date)
		y, oky := b.(schema.Date)
		if okx && oky {
			return x.Before(y)
		}
	}
	return strings.ToLower(schema.Display(a)) < strings.ToLower(schema.Display(b))
}

// Len returns the number of displayed rows.
func (c *Coordinator) Len() int { return len(c.view) }

// DisplayToStorage maps a display row to its storage row.
func (c *Coordinator) DisplayToStorage(display int) (int, error) {
	if display < 0 || display >= len(c.view) {
		return 0, fmt.Errorf("display row %d: %w", display, ErrOutOfRange)
	}
	return c.view[display], nil
}

// KeyAt returns the primary key of a storage row.
func (c *Coordinator) KeyAt(storage int) (int64, error) {
	if storage < 0 || storage >= len(c.rows) {
		return 0, fmt.Errorf("storage row %d: %w", storage, ErrOutOfRange)
	}
	key, ok := c.rows[storage][c.pk].(int64)
	if !ok {
		return 0, fmt.Errorf("storage row %d has no key", storage)
	}
	return key, nil
}

// Row returns the record shown at a display row.
func (c *Coordinator) Row(display int) (schema.Record, error) {
	i, err := c.DisplayToStorage(display)
	if err != nil {
		return nil, err
	}
	return c.rows[i], nil
}

// Rows returns the displayed records in display order.
func (c *Coordinator) Rows() []schema.Record {
	out := make([]schema.Record, len(c.view))
	for d, i := range c.view {
		out[d] = c.rows[i]
	}
	return out
}

// DisplayOf returns the display row showing key.
func (c *Coordinator) DisplayOf(key int64) (int, bool) {
	for d, i := range c.view {
		if k, ok := c.rows[i][c.pk].(int64); ok && k == key {
			return d, true
		}
	}
	return -1, false
}

// SelectAfterInsert refreshes and selects the inserted row, or reports
// ErrNotVisible when the current filter hides it.
func (c *Coordinator) SelectAfterInsert(ctx context.Context, key int64) (int, error) {
	return c.reselect(ctx, key)
}

// SelectAfterUpdate refreshes and re-selects the row that was edited.
func (c *Coordinator) SelectAfterUpdate(ctx context.Context, key int64) (int, error) {
	return c.reselect(ctx, key)
}

func (c *Coordinator) reselect(ctx context.Context, key int64) (int, error) {
	if err := c.Refresh(ctx); err != nil {
		return -1, err
	}
	d, ok := c.DisplayOf(key)
	if !ok {
		c.selected = -1
		return -1, fmt.Errorf("key %d: %w", key, ErrNotVisible)
	}
	c.selected = d
	return d, nil
}

// Select marks a display row as selected.
func (c *Coordinator) Select(display int) error {
	if display < 0 || display >= len(c.view) {
		return fmt.Errorf("display row %d: %w", display, ErrOutOfRange)
	}
	c.selected = display
	return nil
}

// Selected returns the selected display row, or -1.
func (c *Coordinator) Selected() int { return c.selected }

// Cell returns the text and warning state of a cell.
func (c *Coordinator) Cell(display int, column string, t style.Thresholds, now time.Time) (string, style.State) {
	r, err := c.Row(display)
	if err != nil {
		return "", style.Normal
	}
	col := c.engine.Index(column)
	values := make([]any, len(c.headers))
	for i, h := range c.headers {
		values[i] = r[h]
	}
	return schema.Display(r[column]), c.engine.StyleAt(values, col, t, now)
}
