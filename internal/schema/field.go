// Package schema holds the declarative field set of a jig record.
//
// The static field set is declared in CUE (jig.cue) and parsed once at
// startup. Enumerated domains are loaded from storage and merged into the
// static set by Resolve; the resulting Schema is immutable and is consumed by
// the DDL translator, the form builder and the table coordinator.
package schema

import (
	"fmt"
	"strconv"
)

// FieldType classifies how a field is stored, edited and validated.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInt
	FieldFloat
	FieldBool
	FieldDate
	FieldEnum
)

// String returns the schema-visible type name.
func (ft FieldType) String() string {
	switch ft {
	case FieldText:
		return "text"
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldBool:
		return "bool"
	case FieldDate:
		return "date"
	case FieldEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Numeric reports whether the type carries numeric bounds.
func (ft FieldType) Numeric() bool {
	return ft == FieldInt || ft == FieldFloat
}

// Widget overrides the control chosen for a field's type.
type Widget string

const (
	WidgetDefault  Widget = ""
	WidgetPassword Widget = "password"
	WidgetFile     Widget = "file"
	WidgetDate     Widget = "date"
	WidgetTextArea Widget = "textarea"
)

// Bound is one side of a numeric range.
type Bound struct {
	Value     float64
	Exclusive bool
}

// Bounds constrains a field's value. A nil side is unbounded; MaxLength of
// zero means text of any length.
type Bounds struct {
	Min       *Bound
	Max       *Bound
	MaxLength int
}

// Empty reports whether no constraint is set.
func (b Bounds) Empty() bool {
	return b.Min == nil && b.Max == nil && b.MaxLength == 0
}

// Contains reports whether v satisfies the numeric bounds.
func (b Bounds) Contains(v float64) bool {
	if b.Min != nil {
		if b.Min.Exclusive && v <= b.Min.Value || !b.Min.Exclusive && v < b.Min.Value {
			return false
		}
	}
	if b.Max != nil {
		if b.Max.Exclusive && v >= b.Max.Value || !b.Max.Exclusive && v > b.Max.Value {
			return false
		}
	}
	return true
}

// Describe renders the numeric bounds for error messages, e.g. ">= 0, <= 999".
func (b Bounds) Describe() string {
	var s string
	if b.Min != nil {
		op := ">="
		if b.Min.Exclusive {
			op = ">"
		}
		s = op + " " + FormatNumber(b.Min.Value)
	}
	if b.Max != nil {
		op := "<="
		if b.Max.Exclusive {
			op = "<"
		}
		if s != "" {
			s += ", "
		}
		s += op + " " + FormatNumber(b.Max.Value)
	}
	return s
}

// FormatNumber renders a bound value as the shortest decimal literal.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Placement positions a control on the form grid.
type Placement struct {
	Row     int
	Col     int
	ColSpan int
	Hidden  bool
}

// FieldSpec describes one field of a record.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Title      string
	Default    any
	HasDefault bool
	Bounds     Bounds
	Placement  Placement
	PrimaryKey bool
	Optional   bool
	Domain     string
	Widget     Widget
}

// Label returns the title, falling back to the field name.
func (f FieldSpec) Label() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// EnumMember is one value of a named enumerated domain.
type EnumMember struct {
	Domain string
	Value  string
}

func (m EnumMember) String() string { return m.Value }

// EnumeratedDomain is a named, ordered set of allowed values.
type EnumeratedDomain struct {
	Name   string
	Values []string
}

// Contains reports whether v is a member of the domain.
func (d EnumeratedDomain) Contains(v string) bool {
	for _, s := range d.Values {
		if s == v {
			return true
		}
	}
	return false
}

// Member returns the typed member for v.
func (d EnumeratedDomain) Member(v string) (EnumMember, error) {
	if !d.Contains(v) {
		return EnumMember{}, fmt.Errorf("%q is not a member of %s", v, d.Name)
	}
	return EnumMember{Domain: d.Name, Value: v}, nil
}

// Record maps field names to typed values: int64, float64, string, bool,
// Date, EnumMember, or nil for an unset optional field or an unassigned key.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
