package store

import (
	entsql "entgo.io/ent/dialect/sql"
)

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpBetween
)

// Clause is one condition of a filter.
type Clause struct {
	Column string
	Op     Op
	Values []any
}

// Eq matches rows whose column equals v.
func Eq(column string, v any) Clause {
	return Clause{Column: column, Op: OpEq, Values: []any{v}}
}

// Between matches rows whose column lies in [lo, hi].
func Between(column string, lo, hi any) Clause {
	return Clause{Column: column, Op: OpBetween, Values: []any{lo, hi}}
}

// Filter is a conjunction of clauses. The empty filter matches every row.
type Filter []Clause

func (f Filter) predicate() *entsql.Predicate {
	if len(f) == 0 {
		return nil
	}
	preds := make([]*entsql.Predicate, 0, len(f))
	for _, c := range f {
		switch c.Op {
		case OpBetween:
			col, lo, hi := c.Column, c.Values[0], c.Values[1]
			preds = append(preds, entsql.P(func(b *entsql.Builder) {
				b.Ident(col).WriteString(" BETWEEN ").Arg(lo).WriteString(" AND ").Arg(hi)
			}))
		default:
			preds = append(preds, entsql.EQ(c.Column, c.Values[0]))
		}
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return entsql.And(preds...)
}
