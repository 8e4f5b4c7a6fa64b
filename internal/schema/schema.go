package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSchema is returned when a field set violates a schema rule.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrUnknownDomain is returned for a domain the schema has not loaded.
	ErrUnknownDomain = errors.New("unknown enumerated domain")
	// ErrConfiguration is fatal: the enumerated domains could not be loaded
	// even after bootstrapping them.
	ErrConfiguration = errors.New("configuration error")
)

// Schema is an ordered, immutable set of FieldSpecs plus the enumerated
// domains its choice fields draw from.
type Schema struct {
	fields  []FieldSpec
	index   map[string]int
	domains map[string]EnumeratedDomain
}

// New validates fields and returns a schema without loaded domains.
func New(fields []FieldSpec) (*Schema, error) {
	s := &Schema{
		fields:  make([]FieldSpec, len(fields)),
		index:   make(map[string]int, len(fields)),
		domains: map[string]EnumeratedDomain{},
	}
	copy(s.fields, fields)
	pk := ""
	for i, f := range s.fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Name)
		}
		s.index[f.Name] = i
		if f.PrimaryKey {
			if pk != "" {
				return nil, fmt.Errorf("%w: fields %q and %q are both primary keys", ErrInvalidSchema, pk, f.Name)
			}
			if f.Type != FieldInt {
				return nil, fmt.Errorf("%w: primary key %q must be an integer", ErrInvalidSchema, f.Name)
			}
			pk = f.Name
		}
		if f.Type == FieldEnum && f.Domain == "" {
			return nil, fmt.Errorf("%w: choice field %q names no domain", ErrInvalidSchema, f.Name)
		}
	}
	return s, nil
}

// MustNew is New for statically known field sets.
func MustNew(fields []FieldSpec) *Schema {
	s, err := New(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Fields returns all fields in declaration order.
func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Visible returns the fields shown on forms.
func (s *Schema) Visible() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.fields {
		if !f.Placement.Hidden {
			out = append(out, f)
		}
	}
	return out
}

// PrimaryKey returns the key field, if the schema declares one.
func (s *Schema) PrimaryKey() (FieldSpec, bool) {
	for _, f := range s.fields {
		if f.PrimaryKey {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// DomainNames returns the distinct domains referenced by choice fields, in
// field order.
func (s *Schema) DomainNames() []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range s.fields {
		if f.Type == FieldEnum && !seen[f.Domain] {
			seen[f.Domain] = true
			out = append(out, f.Domain)
		}
	}
	return out
}

// Enum returns a loaded domain.
func (s *Schema) Enum(domain string) (EnumeratedDomain, error) {
	d, ok := s.domains[domain]
	if !ok {
		return EnumeratedDomain{}, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return d, nil
}

// WithDomains returns a copy of s with the given domains loaded.
func (s *Schema) WithDomains(domains ...EnumeratedDomain) *Schema {
	out := &Schema{
		fields:  s.fields,
		index:   s.index,
		domains: make(map[string]EnumeratedDomain, len(s.domains)+len(domains)),
	}
	for k, v := range s.domains {
		out.domains[k] = v
	}
	for _, d := range domains {
		vals := make([]string, len(d.Values))
		copy(vals, d.Values)
		out.domains[d.Name] = EnumeratedDomain{Name: d.Name, Values: vals}
	}
	return out
}
