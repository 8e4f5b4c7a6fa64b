// Package style decides the warning state of a table cell from the row's
// values, the configured thresholds and the current time.
package style

import (
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

// State is the visual state of a cell.
type State int

const (
	Normal State = iota
	Warning
	Critical
)

func (s State) String() string {
	switch s {
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "normal"
	}
}

// Cutoffs are inclusive remaining-count limits.
type Cutoffs struct {
	Critical int
	Warning  int
}

// Thresholds is the business configuration the rules evaluate against.
type Thresholds struct {
	CriticalColor       string
	WarningColor        string
	CalibrationLeadDays int
	Usage               Cutoffs // lifetime uses
	Cycle               Cutoffs // uses since last calibration
}

// DefaultThresholds are used when no settings file exists.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalColor:       "red",
		WarningColor:        "orange",
		CalibrationLeadDays: 14,
		Usage:               Cutoffs{Critical: 10, Warning: 50},
		Cycle:               Cutoffs{Critical: 10, Warning: 50},
	}
}

// Color returns the configured color for s, or "" for Normal.
func (t Thresholds) Color(s State) string {
	switch s {
	case Critical:
		return t.CriticalColor
	case Warning:
		return t.WarningColor
	default:
		return ""
	}
}

// Column names the rules read.
const (
	ColUsedcount      = "Usedcount"
	ColMaxcount       = "Maxcount"
	ColCheckUsedcount = "CheckUsedcount"
	ColCheckMaxcount  = "CheckMaxcount"
	ColCheckdate      = "Checkdate"
	ColCheckCycle     = "CheckCycle"
)

// Row exposes a row's values by column name.
type Row interface {
	Value(column string) (any, bool)
}

// RecordRow adapts a record to Row.
type RecordRow schema.Record

func (r RecordRow) Value(column string) (any, bool) {
	v, ok := r[column]
	return v, ok
}

// StyleFor returns the state of column in row. It never fails: missing or
// non-numeric inputs yield Normal.
func StyleFor(row Row, column string, t Thresholds, now time.Time) State {
	switch column {
	case ColUsedcount:
		return remaining(row, ColUsedcount, ColMaxcount, t.Usage)
	case ColCheckUsedcount:
		return remaining(row, ColCheckUsedcount, ColCheckMaxcount, t.Cycle)
	case ColCheckdate:
		return calibration(row, t.CalibrationLeadDays, now)
	default:
		return Normal
	}
}

func remaining(row Row, usedCol, maxCol string, c Cutoffs) State {
	used, ok := number(row, usedCol)
	if !ok {
		return Normal
	}
	max, ok := number(row, maxCol)
	if !ok {
		return Normal
	}
	left := max - used
	switch {
	case left <= float64(c.Critical):
		return Critical
	case left <= float64(c.Warning):
		return Warning
	default:
		return Normal
	}
}

func calibration(row Row, leadDays int, now time.Time) State {
	v, ok := row.Value(ColCheckdate)
	if !ok {
		return Normal
	}
	checked, ok := date(v)
	if !ok {
		return Normal
	}
	cycle, ok := number(row, ColCheckCycle)
	if !ok {
		return Normal
	}
	today := schema.DateOf(now)
	due := checked.AddDays(int(cycle))
	switch {
	case due.Before(today):
		return Critical
	case !today.Before(due.AddDays(-leadDays)):
		return Warning
	default:
		return Normal
	}
}

func number(row Row, column string) (float64, bool) {
	v, ok := row.Value(column)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func date(v any) (schema.Date, bool) {
	switch x := v.(type) {
	case schema.Date:
		return x, !x.IsZero()
	case time.Time:
		return schema.DateOf(x), !x.IsZero()
	case string:
		d, err := schema.ParseDate(strings.TrimSpace(x))
		return d, err == nil
	default:
		return schema.Date{}, false
	}
}
