// Package form builds input forms from a schema, moves values between
// records and controls, validates them and submits the result to a row store.
package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

// FieldErrors maps field names to validation messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	names := make([]string, 0, len(fe))
	for n := range fe {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + ": " + fe[n]
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// Option configures Build.
type Option func(*options)

type options struct {
	now func() time.Time
	log *zap.Logger
}

// WithClock sets the clock date pickers take "today" from.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for build warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// Form is one control per visible field, in grid order.
type Form struct {
	schema   *schema.Schema
	controls []*Control
	byName   map[string]*Control
	key      any
	log      *zap.Logger
}

// Build creates a control for every visible field of s. Choice fields list
// their domain in domain order; unrecognized field types fall back to a
// free-text control and are logged.
func Build(s *schema.Schema, opts ...Option) *Form {
	o := options{now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	f := &Form{schema: s, byName: map[string]*Control{}, log: o.log}
	for _, fs := range s.Visible() {
		if fs.PrimaryKey {
			continue
		}
		c := f.newControl(fs, o)
		f.controls = append(f.controls, c)
		f.byName[fs.Name] = c
	}
	sort.SliceStable(f.controls, func(i, j int) bool {
		a, b := f.controls[i].Field.Placement, f.controls[j].Field.Placement
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return f
}

func (f *Form) newControl(fs schema.FieldSpec, o options) *Control {
	switch fs.Widget {
	case schema.WidgetPassword:
		return newTextControl(fs, KindPassword)
	case schema.WidgetFile:
		return newTextControl(fs, KindFile)
	case schema.WidgetDate:
		return newDatePicker(fs, o.now())
	case schema.WidgetTextArea:
		if fs.Type == schema.FieldText {
			return newTextControl(fs, KindTextArea)
		}
	}
	switch fs.Type {
	case schema.FieldBool:
		return newToggle(fs)
	case schema.FieldDate:
		return newDatePicker(fs, o.now())
	case schema.FieldInt:
		return newIntStepper(fs)
	case schema.FieldFloat:
		return newFloatStepper(fs)
	case schema.FieldEnum:
		d, err := f.schema.Enum(fs.Domain)
		if err != nil {
			o.log.Warn("choice field has no loaded domain, using free text",
				zap.String("field", fs.Name), zap.String("domain", fs.Domain))
			return newTextControl(fs, KindText)
		}
		return newChoice(fs, d)
	case schema.FieldText:
		return newTextControl(fs, KindText)
	default:
		o.log.Warn("unsupported field type, using free text",
			zap.String("field", fs.Name), zap.Stringer("type", fs.Type))
		return newTextControl(fs, KindText)
	}
}

// Controls returns the controls in grid order.
func (f *Form) Controls() []*Control { return f.controls }

// Control returns the control for a field.
func (f *Form) Control(name string) (*Control, bool) {
	c, ok := f.byName[name]
	return c, ok
}

// Key returns the primary key of the populated record, or nil in create mode.
func (f *Form) Key() any { return f.key }

// Populate loads an existing record into the controls. Values that cannot be
// shown are logged and returned; the remaining fields are still loaded.
func (f *Form) Populate(r schema.Record) error {
	if pk, ok := f.schema.PrimaryKey(); ok {
		f.key = r[pk.Name]
	}
	var errs []error
	for _, c := range f.controls {
		v, ok := r[c.Field.Name]
		if !ok {
			continue
		}
		if err := c.Set(v); err != nil {
			f.log.Warn("cannot load value into form", zap.String("field", c.Field.Name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply feeds operator input, keyed by field name, into the controls.
// Toggles absent from input are switched off, as an unchecked checkbox is
// not submitted.
func (f *Form) Apply(input map[string]string) {
	for _, c := range f.controls {
		s, ok := input[c.Field.Name]
		if !ok {
			if c.Kind == KindToggle {
				c.SetInput("")
			}
			continue
		}
		c.SetInput(s)
	}
}

// SetInput applies operator text to one control.
func (f *Form) SetInput(name, text string) error {
	c, ok := f.byName[name]
	if !ok {
		return fmt.Errorf("no control for field %q", name)
	}
	c.SetInput(text)
	return nil
}

// Collect reads the controls back into typed values keyed by field name.
func (f *Form) Collect() map[string]any {
	out := make(map[string]any, len(f.controls))
	for _, c := range f.controls {
		out[c.Field.Name] = c.Value()
	}
	return out
}

// Validate checks raw against the schema and returns the typed record. Every
// error indicator is cleared first; on failure the offending fields'
// indicators are set and shown.
func (f *Form) Validate(raw map[string]any) (schema.Record, FieldErrors) {
	for _, c := range f.controls {
		c.clearError()
	}

	rec := schema.Record{}
	errs := FieldErrors{}
	for _, fs := range f.schema.Fields() {
		if fs.PrimaryKey {
			rec[fs.Name] = f.key
			continue
		}
		c, onForm := f.byName[fs.Name]
		if onForm && c.inputErr != nil {
			errs[fs.Name] = c.inputErr.Error()
			continue
		}
		v, ok := raw[fs.Name]
		if !ok {
			if onForm && !fs.Optional {
				errs[fs.Name] = "field required"
			}
			continue
		}
		typed, msg := f.check(fs, v)
		if msg != "" {
			errs[fs.Name] = msg
			continue
		}
		rec[fs.Name] = typed
	}

	if len(errs) > 0 {
		for name, msg := range errs {
			if c, ok := f.byName[name]; ok {
				c.showError(msg)
			}
		}
		return nil, errs
	}
	return rec, nil
}

func (f *Form) check(fs schema.FieldSpec, v any) (any, string) {
	if v == nil {
		if fs.Optional {
			return nil, ""
		}
		return nil, "field required"
	}
	typed, err := schema.Coerce(fs, v)
	if err != nil {
		return nil, "not a valid " + typeNoun(fs.Type)
	}
	switch fs.Type {
	case schema.FieldInt:
		if !fs.Bounds.Contains(float64(typed.(int64))) {
			return nil, "must be " + fs.Bounds.Describe()
		}
	case schema.FieldFloat:
		if !fs.Bounds.Contains(typed.(float64)) {
			return nil, "must be " + fs.Bounds.Describe()
		}
	case schema.FieldText:
		s := typed.(string)
		if n := fs.Bounds.MaxLength; n > 0 && len([]rune(s)) > n {
			return nil, fmt.Sprintf("must be at most %d characters", n)
		}
	case schema.FieldEnum:
		d, err := f.schema.Enum(fs.Domain)
		if err != nil {
			return nil, err.Error()
		}
		m := typed.(schema.EnumMember)
		if !d.Contains(m.Value) {
			return nil, "not one of: " + strings.Join(d.Values, ", ")
		}
	}
	return typed, ""
}

func typeNoun(t schema.FieldType) string {
	switch t {
	case schema.FieldInt:
		return "integer"
	case schema.FieldFloat:
		return "number"
	case schema.FieldBool:
		return "boolean"
	case schema.FieldDate:
		return "date"
	case schema.FieldEnum:
		return "choice"
	default:
		return "text"
	}
}

// Errors returns the currently shown indicators keyed by field name.
func (f *Form) Errors() FieldErrors {
	out := FieldErrors{}
	for _, c := range f.controls {
		if c.Error.Visible {
			out[c.Field.Name] = c.Error.Message
		}
	}
	return out
}
