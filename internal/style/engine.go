package style

import (
	"time"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

// Columns resolves column names to positions in the current table header.
type Columns map[string]int

// NewColumns indexes headers by name.
func NewColumns(headers []string) Columns {
	c := make(Columns, len(headers))
	for i, h := range headers {
		c[h] = i
	}
	return c
}

// Engine evaluates cell states for positional rows. Its column index is
// derived from the header and must be reset whenever the table is.
type Engine struct {
	cols    Columns
	headers []string
}

// NewEngine returns an engine for headers.
func NewEngine(headers []string) *Engine {
	e := &Engine{}
	e.Reset(headers)
	return e
}

// Reset re-derives the column index from headers.
func (e *Engine) Reset(headers []string) {
	e.headers = append([]string(nil), headers...)
	e.cols = NewColumns(headers)
}

// Index returns the position of column, or -1.
func (e *Engine) Index(column string) int {
	if i, ok := e.cols[column]; ok {
		return i
	}
	return -1
}

// StyleAt returns the state of the cell at position col of values.
func (e *Engine) StyleAt(values []any, col int, t Thresholds, now time.Time) State {
	if col < 0 || col >= len(e.headers) {
		return Normal
	}
	return StyleFor(positional{values: values, cols: e.cols}, e.headers[col], t, now)
}

// StyleRecord returns the state of column for a record.
func (e *Engine) StyleRecord(r schema.Record, column string, t Thresholds, now time.Time) State {
	return StyleFor(RecordRow(r), column, t, now)
}

type positional struct {
	values []any
	cols   Columns
}

func (p positional) Value(column string) (any, bool) {
	i, ok := p.cols[column]
	if !ok || i >= len(p.values) {
		return nil, false
	}
	return p.values[i], true
}
