// Package ddl translates a schema's field constraints into a SQLite
// CREATE TABLE statement and applies it.
package ddl

import (
	"fmt"
	"strings"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

// ColumnType maps a field to its storage type.
func ColumnType(f schema.FieldSpec) string {
	switch f.Type {
	case schema.FieldInt:
		return "INTEGER"
	case schema.FieldFloat:
		return "REAL"
	case schema.FieldBool:
		return "BOOLEAN"
	case schema.FieldDate:
		return "DATE"
	case schema.FieldText:
		if f.Bounds.MaxLength > 0 {
			return fmt.Sprintf("TEXT(%d)", f.Bounds.MaxLength)
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

// Check renders the CHECK clause for a field's numeric bounds, or "" when the
// field has none. Clauses are ordered >=, >, <=, <.
func Check(f schema.FieldSpec) string {
	var checks []string
	b := f.Bounds
	if b.Min != nil && !b.Min.Exclusive {
		checks = append(checks, fmt.Sprintf("%s >= %s", f.Name, schema.FormatNumber(b.Min.Value)))
	}
	if b.Min != nil && b.Min.Exclusive {
		checks = append(checks, fmt.Sprintf("%s > %s", f.Name, schema.FormatNumber(b.Min.Value)))
	}
	if b.Max != nil && !b.Max.Exclusive {
		checks = append(checks, fmt.Sprintf("%s <= %s", f.Name, schema.FormatNumber(b.Max.Value)))
	}
	if b.Max != nil && b.Max.Exclusive {
		checks = append(checks, fmt.Sprintf("%s < %s", f.Name, schema.FormatNumber(b.Max.Value)))
	}
	if len(checks) == 0 {
		return ""
	}
	return "CHECK (" + strings.Join(checks, " AND ") + ")"
}

// DefaultLiteral renders a default value as a SQL literal.
func DefaultLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return quote(x)
	case int64:
		return fmt.Sprint(x)
	case int:
		return fmt.Sprint(x)
	case float64:
		return schema.FormatNumber(x)
	case schema.Date:
		return quote(x.String())
	case schema.EnumMember:
		return quote(x.Value)
	default:
		return quote(fmt.Sprint(x))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ColumnDef renders one column definition:
//
//	name TYPE [NOT NULL] [CHECK (...)] [PRIMARY KEY [AUTOINCREMENT]] [DEFAULT v]
func ColumnDef(f schema.FieldSpec) string {
	parts := []string{f.Name, ColumnType(f)}
	if !f.Optional {
		parts = append(parts, "NOT NULL")
	}
	if c := Check(f); c != "" {
		parts = append(parts, c)
	}
	if f.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
		if f.Type == schema.FieldInt {
			parts = append(parts, "AUTOINCREMENT")
		}
	}
	if f.HasDefault {
		parts = append(parts, "DEFAULT "+DefaultLiteral(f.Default))
	}
	return strings.Join(parts, " ")
}

// CreateStatement renders the CREATE TABLE statement for s. Without recreate
// the statement is guarded with IF NOT EXISTS.
func CreateStatement(s *schema.Schema, table string, recreate bool) string {
	fields := s.Fields()
	defs := make([]string, len(fields))
	for i, f := range fields {
		defs[i] = "    " + ColumnDef(f)
	}
	guard := "IF NOT EXISTS "
	if recreate {
		guard = ""
	}
	return fmt.Sprintf("CREATE TABLE %s%s (\n%s\n);", guard, table, strings.Join(defs, ",\n"))
}
