package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

// Kind is the variant of a Control, fixed at construction.
type Kind int

const (
	KindText Kind = iota
	KindPassword
	KindFile
	KindTextArea
	KindToggle
	KindDate
	KindIntStepper
	KindFloatStepper
	KindChoice
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPassword:
		return "password"
	case KindFile:
		return "file"
	case KindTextArea:
		return "textarea"
	case KindToggle:
		return "toggle"
	case KindDate:
		return "date"
	case KindIntStepper:
		return "int_stepper"
	case KindFloatStepper:
		return "float_stepper"
	case KindChoice:
		return "choice"
	default:
		return "unknown"
	}
}

// Step sizes used to turn exclusive bounds into stepper limits.
const (
	IntStep   = 1
	FloatStep = 1e-9
)

// Indicator is the inline error shown under a control.
type Indicator struct {
	Message string
	Visible bool
}

// Control is one input on a form. Its Kind selects which of the state fields
// are meaningful and which typed getter Value uses.
type Control struct {
	Field schema.FieldSpec
	Kind  Kind
	Error Indicator

	null    bool
	text    string
	checked bool
	date    schema.Date

	intVal, intMin, intMax       int64
	floatVal, floatMin, floatMax float64

	choices  []string
	selected int

	inputErr error
	value    func(*Control) any
}

func newTextControl(f schema.FieldSpec, kind Kind) *Control {
	c := &Control{Field: f, Kind: kind, value: (*Control).textValue}
	if f.HasDefault && f.Default != nil {
		c.text = schema.Display(f.Default)
	} else if f.Optional {
		c.null = true
	}
	return c
}

func newToggle(f schema.FieldSpec) *Control {
	c := &Control{Field: f, Kind: KindToggle, value: (*Control).toggleValue}
	if b, ok := f.Default.(bool); ok {
		c.checked = b
	}
	return c
}

func newDatePicker(f schema.FieldSpec, today time.Time) *Control {
	c := &Control{Field: f, Kind: KindDate, value: (*Control).dateValue, date: schema.DateOf(today)}
	if f.HasDefault {
		if d, err := schema.Coerce(schema.FieldSpec{Type: schema.FieldDate}, f.Default); err == nil && d != nil {
			c.date = d.(schema.Date)
		}
	}
	return c
}

func newIntStepper(f schema.FieldSpec) *Control {
	c := &Control{Field: f, Kind: KindIntStepper, value: (*Control).intValue, intMin: math.MinInt64, intMax: math.MaxInt64}
	if b := f.Bounds.Min; b != nil {
		if b.Exclusive {
			c.intMin = saturate(math.Floor(b.Value) + IntStep)
		} else {
			c.intMin = saturate(math.Ceil(b.Value))
		}
	}
	if b := f.Bounds.Max; b != nil {
		if b.Exclusive {
			c.intMax = saturate(math.Ceil(b.Value) - IntStep)
		} else {
			c.intMax = saturate(math.Floor(b.Value))
		}
	}
	switch d := f.Default.(type) {
	case int64:
		c.intVal = c.clampInt(d)
	default:
		if f.Optional && !f.HasDefault {
			c.null = true
		}
		c.intVal = c.clampInt(0)
	}
	return c
}

// saturate converts an integral float to int64, clamping values outside the
// int64 range.
func saturate(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v <= math.MinInt64:
		return math.MinInt64
	case v >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(v)
}

func newFloatStepper(f schema.FieldSpec) *Control {
	c := &Control{Field: f, Kind: KindFloatStepper, value: (*Control).floatValue, floatMin: -math.MaxFloat64, floatMax: math.MaxFloat64}
	if b := f.Bounds.Min; b != nil {
		c.floatMin = b.Value
		if b.Exclusive {
			c.floatMin += FloatStep
		}
	}
	if b := f.Bounds.Max; b != nil {
		c.floatMax = b.Value
		if b.Exclusive {
			c.floatMax -= FloatStep
		}
	}
	switch d := f.Default.(type) {
	case float64:
		c.floatVal = c.clampFloat(d)
	case int64:
		c.floatVal = c.clampFloat(float64(d))
	default:
		if f.Optional && !f.HasDefault {
			c.null = true
		}
		c.floatVal = c.clampFloat(0)
	}
	return c
}

func newChoice(f schema.FieldSpec, d schema.EnumeratedDomain) *Control {
	c := &Control{Field: f, Kind: KindChoice, value: (*Control).choiceValue, selected: -1}
	c.choices = append([]string(nil), d.Values...)
	if f.HasDefault && f.Default != nil {
		c.selected = c.indexOf(schema.Display(f.Default))
	}
	return c
}

func (c *Control) clampInt(v int64) int64 {
	if v < c.intMin {
		return c.intMin
	}
	if v > c.intMax {
		return c.intMax
	}
	return v
}

func (c *Control) clampFloat(v float64) float64 {
	return math.Min(math.Max(v, c.floatMin), c.floatMax)
}

func (c *Control) indexOf(s string) int {
	for i, v := range c.choices {
		if v == s {
			return i
		}
	}
	return -1
}

// Value returns the control's typed value: string, bool, schema.Date, int64,
// float64, schema.EnumMember, or nil when unset.
func (c *Control) Value() any {
	if c.null {
		return nil
	}
	return c.value(c)
}

func (c *Control) textValue() any {
	if c.text == "" && c.Field.Optional {
		return nil
	}
	return c.text
}

func (c *Control) toggleValue() any { return c.checked }
func (c *Control) dateValue() any   { return c.date }
func (c *Control) intValue() any    { return c.intVal }
func (c *Control) floatValue() any  { return c.floatVal }

func (c *Control) choiceValue() any {
	if c.selected < 0 {
		return nil
	}
	return schema.EnumMember{Domain: c.Field.Domain, Value: c.choices[c.selected]}
}

// Set loads a typed record value into the control. Numeric values are
// clamped into the stepper's range. An unknown choice leaves the selection
// unchanged and returns an error.
func (c *Control) Set(v any) error {
	c.inputErr = nil
	if v == nil {
		c.null = true
		c.text = ""
		c.selected = -1
		return nil
	}
	switch c.Kind {
	case KindToggle:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%s: cannot show %T in a toggle", c.Field.Name, v)
		}
		c.checked = b
	case KindDate:
		d, err := schema.Coerce(schema.FieldSpec{Name: c.Field.Name, Type: schema.FieldDate}, v)
		if err != nil {
			return err
		}
		c.date = d.(schema.Date)
	case KindIntStepper:
		n, err := schema.Coerce(schema.FieldSpec{Name: c.Field.Name, Type: schema.FieldInt}, v)
		if err != nil {
			return err
		}
		c.intVal = c.clampInt(n.(int64))
	case KindFloatStepper:
		n, err := schema.Coerce(schema.FieldSpec{Name: c.Field.Name, Type: schema.FieldFloat}, v)
		if err != nil {
			return err
		}
		c.floatVal = c.clampFloat(n.(float64))
	case KindChoice:
		i := c.indexOf(schema.Display(v))
		if i < 0 {
			return fmt.Errorf("%s: %q is not one of the listed choices", c.Field.Name, schema.Display(v))
		}
		c.selected = i
	default:
		c.text = schema.Display(v)
	}
	c.null = false
	return nil
}

// SetInput applies operator text to the control the way the matching input
// widget would. Unparseable text is remembered and reported by Validate.
func (c *Control) SetInput(s string) {
	c.inputErr = nil
	switch c.Kind {
	case KindText, KindPassword, KindFile, KindTextArea:
	default:
		s = strings.TrimSpace(s)
	}
	switch c.Kind {
	case KindToggle:
		c.checked = s == "on" || s == "true" || s == "1"
		c.null = false
	case KindDate:
		d, err := schema.ParseDate(s)
		if err != nil {
			c.inputErr = fmt.Errorf("not a valid date, want yyyy-MM-dd")
			return
		}
		c.date, c.null = d, false
	case KindIntStepper:
		if s == "" && c.Field.Optional {
			c.null = true
			return
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.inputErr = fmt.Errorf("not a valid integer")
			return
		}
		c.intVal, c.null = c.clampInt(n), false
	case KindFloatStepper:
		if s == "" && c.Field.Optional {
			c.null = true
			return
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) {
			c.inputErr = fmt.Errorf("not a valid number")
			return
		}
		c.floatVal, c.null = c.clampFloat(n), false
	case KindChoice:
		if s == "" {
			c.selected = -1
			return
		}
		i := c.indexOf(s)
		if i < 0 {
			c.inputErr = fmt.Errorf("not one of: %s", strings.Join(c.choices, ", "))
			return
		}
		c.selected, c.null = i, false
	default:
		c.text, c.null = s, false
	}
}

// Text returns the control's current state as input text.
func (c *Control) Text() string {
	if c.null {
		return ""
	}
	switch c.Kind {
	case KindToggle:
		return strconv.FormatBool(c.checked)
	case KindDate:
		return c.date.String()
	case KindIntStepper:
		return strconv.FormatInt(c.intVal, 10)
	case KindFloatStepper:
		return strconv.FormatFloat(c.floatVal, 'f', -1, 64)
	case KindChoice:
		if c.selected < 0 {
			return ""
		}
		return c.choices[c.selected]
	default:
		return c.text
	}
}

// Checked reports a toggle's state.
func (c *Control) Checked() bool { return c.checked }

// Choices returns a choice control's values in domain order.
func (c *Control) Choices() []string { return c.choices }

// IntRange returns an integer stepper's limits.
func (c *Control) IntRange() (lo, hi int64) { return c.intMin, c.intMax }

// FloatRange returns a float stepper's limits.
func (c *Control) FloatRange() (lo, hi float64) { return c.floatMin, c.floatMax }

// Bounded reports whether the stepper has a finite lower or upper limit.
func (c *Control) Bounded() (lo, hi bool) {
	switch c.Kind {
	case KindIntStepper:
		return c.intMin != math.MinInt64, c.intMax != math.MaxInt64
	case KindFloatStepper:
		return c.floatMin != -math.MaxFloat64, c.floatMax != math.MaxFloat64
	}
	return false, false
}

func (c *Control) clearError() {
	c.Error = Indicator{}
}

func (c *Control) showError(msg string) {
	c.Error = Indicator{Message: msg, Visible: true}
}
