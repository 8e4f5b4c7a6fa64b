package schema

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed jig.cue
var jigCUE []byte

// JigDefinition is the CUE definition holding the fixture field set.
const JigDefinition = "#Jig"

// Jig returns the static fixture schema declared in jig.cue.
func Jig() (*Schema, error) {
	return LoadCUE(jigCUE, JigDefinition)
}

// LoadCUE compiles src and classifies every field of the named definition.
//
// Field kinds come from the CUE type (int, float/number, bool, string).
// Numeric bounds are read from <, <=, >, >= constraints and defaults from
// default markers (*v). Attributes refine the classification:
//
//	@pk()                      primary key
//	@enum(Domain)              choice field drawing from Domain
//	@date()                    calendar date stored as text
//	@ui(title=..., row=.., col=.., span=.., hidden, widget=.., maxlen=..)
func LoadCUE(src []byte, definition string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("looking up %s: %w", definition, err)
	}

	var fields []FieldSpec
	iter, err := def.Fields(cue.Optional(true))
	if err != nil {
		return nil, fmt.Errorf("iterating %s: %w", definition, err)
	}
	for iter.Next() {
		label := strings.TrimSuffix(iter.Selector().String(), "?")
		f, err := classifyField(label, iter.Value(), iter.IsOptional())
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return New(fields)
}

func classifyField(name string, val cue.Value, optional bool) (FieldSpec, error) {
	f := FieldSpec{
		Name:      name,
		Optional:  optional,
		Placement: Placement{ColSpan: 1},
	}

	switch kind := fieldKind(val); {
	case kind&cue.BoolKind != 0 && kind&^cue.BoolKind == 0:
		f.Type = FieldBool
	case kind == cue.IntKind:
		f.Type = FieldInt
	case kind&(cue.FloatKind|cue.NumberKind) != 0:
		f.Type = FieldFloat
	case kind == cue.StringKind:
		f.Type = FieldText
	default:
		// Left as an out-of-range type so the form builder falls back to
		// free text and logs it.
		f.Type = FieldType(-1)
	}

	if a := val.Attribute("date"); a.Err() == nil {
		f.Type = FieldDate
	}
	if a := val.Attribute("enum"); a.Err() == nil {
		domain, err := a.String(0)
		if err != nil || domain == "" {
			return f, fmt.Errorf("%w: field %s: @enum needs a domain name", ErrInvalidSchema, name)
		}
		f.Type = FieldEnum
		f.Domain = domain
	}
	if a := val.Attribute("pk"); a.Err() == nil {
		f.PrimaryKey = true
	}

	if f.Type.Numeric() {
		f.Bounds.Min, f.Bounds.Max = numericBounds(val)
	}
	if d, ok := val.Default(); ok && d.IsConcrete() {
		def, err := concreteValue(f, d)
		if err != nil {
			return f, fmt.Errorf("%w: field %s default: %v", ErrInvalidSchema, name, err)
		}
		f.Default, f.HasDefault = def, true
	}

	if err := applyUIAttribute(&f, val.Attribute("ui")); err != nil {
		return f, fmt.Errorf("%w: field %s: %v", ErrInvalidSchema, name, err)
	}
	return f, nil
}

// fieldKind looks through disjunctions with defaults (*1 | int & <=999) to
// the kind the field admits.
func fieldKind(val cue.Value) cue.Kind {
	k := val.IncompleteKind()
	if k != cue.BottomKind {
		return k
	}
	op, args := val.Expr()
	if op == cue.AndOp || op == cue.OrOp {
		for _, arg := range args {
			if k := arg.IncompleteKind(); k != cue.BottomKind {
				return k
			}
		}
	}
	return cue.BottomKind
}

// maxBoundDepth limits how far numericBounds descends into nested
// expressions.
const maxBoundDepth = 8

// numericBounds walks conjunctions and disjunctions collecting the tightest
// declared <, <=, > and >= constraints. A field with a default evaluates to a
// NoOp wrapping the disjunction, which is unwrapped.
func numericBounds(val cue.Value) (lo, hi *Bound) {
	return boundsAt(val, 0)
}

func boundsAt(val cue.Value, depth int) (lo, hi *Bound) {
	if depth > maxBoundDepth {
		return nil, nil
	}
	op, args := val.Expr()
	switch op {
	case cue.NoOp:
		if len(args) == 1 {
			return boundsAt(args[0], depth+1)
		}
	case cue.AndOp, cue.OrOp:
		for _, arg := range args {
			aLo, aHi := boundsAt(arg, depth+1)
			if aLo != nil {
				lo = aLo
			}
			if aHi != nil {
				hi = aHi
			}
		}
	case cue.GreaterThanEqualOp, cue.GreaterThanOp:
		if len(args) >= 1 {
			if n, err := args[len(args)-1].Float64(); err == nil {
				lo = &Bound{Value: n, Exclusive: op == cue.GreaterThanOp}
			}
		}
	case cue.LessThanEqualOp, cue.LessThanOp:
		if len(args) >= 1 {
			if n, err := args[len(args)-1].Float64(); err == nil {
				hi = &Bound{Value: n, Exclusive: op == cue.LessThanOp}
			}
		}
	}
	return lo, hi
}

func concreteValue(f FieldSpec, d cue.Value) (any, error) {
	switch f.Type {
	case FieldInt:
		return d.Int64()
	case FieldFloat:
		return d.Float64()
	case FieldBool:
		return d.Bool()
	case FieldDate:
		s, err := d.String()
		if err != nil {
			return nil, err
		}
		return ParseDate(s)
	case FieldEnum:
		s, err := d.String()
		if err != nil {
			return nil, err
		}
		return EnumMember{Domain: f.Domain, Value: s}, nil
	default:
		return d.String()
	}
}

func applyUIAttribute(f *FieldSpec, a cue.Attribute) error {
	if a.Err() != nil {
		return nil
	}
	if s, ok, _ := a.Lookup(0, "title"); ok {
		f.Title = s
	}
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"row", &f.Placement.Row},
		{"col", &f.Placement.Col},
		{"span", &f.Placement.ColSpan},
		{"maxlen", &f.Bounds.MaxLength},
	} {
		s, ok, _ := a.Lookup(0, p.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("@ui(%s=%s): %v", p.key, s, err)
		}
		*p.dst = n
	}
	if hidden, _ := a.Flag(0, "hidden"); hidden {
		f.Placement.Hidden = true
	}
	if s, ok, _ := a.Lookup(0, "widget"); ok {
		switch w := Widget(s); w {
		case WidgetPassword, WidgetFile, WidgetDate, WidgetTextArea:
			f.Widget = w
		default:
			return fmt.Errorf("unknown widget %q", s)
		}
	}
	return nil
}
