package form

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func bound(v float64, exclusive bool) *schema.Bound {
	return &schema.Bound{Value: v, Exclusive: exclusive}
}

func testSchema() *schema.Schema {
	s := schema.MustNew([]schema.FieldSpec{
		{Name: "id", Type: schema.FieldInt, PrimaryKey: true, Optional: true, Placement: schema.Placement{Hidden: true}},
		{Name: "name", Type: schema.FieldText, Placement: schema.Placement{Row: 0, Col: 0}},
		{Name: "secret", Type: schema.FieldText, Widget: schema.WidgetPassword, Placement: schema.Placement{Row: 0, Col: 2}},
		{Name: "manual", Type: schema.FieldText, Widget: schema.WidgetFile, Optional: true, Placement: schema.Placement{Row: 0, Col: 4}},
		{Name: "active", Type: schema.FieldBool, Default: true, HasDefault: true, Placement: schema.Placement{Row: 2, Col: 0}},
		{Name: "made", Type: schema.FieldDate, Placement: schema.Placement{Row: 2, Col: 2}},
		{Name: "count", Type: schema.FieldInt, Default: int64(1), HasDefault: true,
			Bounds: schema.Bounds{Min: bound(0, false), Max: bound(999, false)}, Placement: schema.Placement{Row: 2, Col: 4}},
		{Name: "slots", Type: schema.FieldInt, Bounds: schema.Bounds{Min: bound(0, true), Max: bound(10, true)}, Placement: schema.Placement{Row: 4, Col: 0}},
		{Name: "ratio", Type: schema.FieldFloat, Bounds: schema.Bounds{Min: bound(0, true), Max: bound(1, false)}, Placement: schema.Placement{Row: 4, Col: 2}},
		{Name: "kind", Type: schema.FieldEnum, Domain: "Kind", Placement: schema.Placement{Row: 4, Col: 4}},
		{Name: "status", Type: schema.FieldEnum, Domain: "Status", Default: schema.EnumMember{Domain: "Status", Value: "USING"}, HasDefault: true, Placement: schema.Placement{Row: 6, Col: 0}},
		{Name: "internal", Type: schema.FieldText, Optional: true, Placement: schema.Placement{Hidden: true}},
	})
	return s.WithDomains(
		schema.EnumeratedDomain{Name: "Kind", Values: []string{"server", "pc"}},
		schema.EnumeratedDomain{Name: "Status", Values: []string{"UNUSE", "USING"}},
	)
}

func TestBuild_ControlSelection(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))

	want := map[string]Kind{
		"name":   KindText,
		"secret": KindPassword,
		"manual": KindFile,
		"active": KindToggle,
		"made":   KindDate,
		"count":  KindIntStepper,
		"slots":  KindIntStepper,
		"ratio":  KindFloatStepper,
		"kind":   KindChoice,
		"status": KindChoice,
	}
	require.Len(t, f.Controls(), len(want))
	for name, kind := range want {
		c, ok := f.Control(name)
		require.True(t, ok, name)
		assert.Equal(t, kind, c.Kind, name)
	}
	_, ok := f.Control("id")
	assert.False(t, ok, "hidden primary key has no control")
	_, ok = f.Control("internal")
	assert.False(t, ok, "hidden fields have no control")
}

func TestBuild_GridOrder(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))
	var names []string
	for _, c := range f.Controls() {
		names = append(names, c.Field.Name)
	}
	assert.Equal(t, []string{"name", "secret", "manual", "active", "made", "count", "slots", "ratio", "kind", "status"}, names)
}

func TestBuild_InitialValues(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))
	raw := f.Collect()

	assert.Equal(t, true, raw["active"])
	assert.Equal(t, schema.Date{Year: 2024, Month: 3, Day: 15}, raw["made"], "date defaults to today")
	assert.Equal(t, int64(1), raw["count"])
	assert.Equal(t, int64(1), raw["slots"], "clamped to exclusive minimum + 1")
	assert.Nil(t, raw["kind"], "choice without default is unselected")
	assert.Equal(t, schema.EnumMember{Domain: "Status", Value: "USING"}, raw["status"])
	assert.Nil(t, raw["manual"])
	assert.Equal(t, "", raw["name"])
}

func TestBuild_StepperRanges(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))

	count, _ := f.Control("count")
	lo, hi := count.IntRange()
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, int64(999), hi)

	slots, _ := f.Control("slots")
	lo, hi = slots.IntRange()
	assert.Equal(t, int64(1), lo)
	assert.Equal(t, int64(9), hi)

	ratio, _ := f.Control("ratio")
	flo, fhi := ratio.FloatRange()
	assert.InDelta(t, FloatStep, flo, 1e-15)
	assert.Equal(t, 1.0, fhi)
}

func TestBuild_UnboundedStepper(t *testing.T) {
	s := schema.MustNew([]schema.FieldSpec{{Name: "n", Type: schema.FieldInt}})
	f := Build(s)
	c, _ := f.Control("n")
	lo, hi := c.IntRange()
	assert.Equal(t, int64(math.MinInt64), lo)
	assert.Equal(t, int64(math.MaxInt64), hi)
	bl, bh := c.Bounded()
	assert.False(t, bl)
	assert.False(t, bh)
}

func TestBuild_HugeBoundsSaturate(t *testing.T) {
	s := schema.MustNew([]schema.FieldSpec{{Name: "n", Type: schema.FieldInt,
		Bounds: schema.Bounds{Min: bound(-1e20, false), Max: bound(1e20, true)}}})
	c, _ := Build(s).Control("n")
	lo, hi := c.IntRange()
	assert.Equal(t, int64(math.MinInt64), lo)
	assert.Equal(t, int64(math.MaxInt64), hi)
}

func TestJigForm_CountStaysWithinDeclaredBounds(t *testing.T) {
	static, err := schema.Jig()
	require.NoError(t, err)
	s := static.WithDomains(
		schema.EnumeratedDomain{Name: schema.DomainJigType, Values: schema.DefaultDomains[schema.DomainJigType]},
		schema.EnumeratedDomain{Name: schema.DomainJigUseStatus, Values: schema.DefaultDomains[schema.DomainJigUseStatus]},
	)
	f := Build(s, WithClock(clock))

	count, ok := f.Control("count")
	require.True(t, ok)
	_, hi := count.IntRange()
	assert.Equal(t, int64(999), hi)

	require.NoError(t, f.SetInput("count", "5000"))
	raw := f.Collect()
	assert.Equal(t, int64(999), raw["count"])

	raw["count"] = int64(5000)
	_, errs := f.Validate(raw)
	assert.NotEmpty(t, errs["count"])

	cycle, _ := f.Control("CheckCycle")
	_, hi = cycle.IntRange()
	assert.Equal(t, int64(9999), hi)
}

func TestSetInput_TextKeepsWhitespace(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))
	require.NoError(t, f.SetInput("name", "  gauge  "))
	require.NoError(t, f.SetInput("secret", " pw "))
	require.NoError(t, f.SetInput("count", " 12 "))

	raw := f.Collect()
	assert.Equal(t, "  gauge  ", raw["name"])
	assert.Equal(t, " pw ", raw["secret"])
	assert.Equal(t, int64(12), raw["count"])
}

func TestBuild_UnknownTypeFallsBackWithWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := schema.MustNew([]schema.FieldSpec{{Name: "blob", Type: schema.FieldType(42)}})

	f := Build(s, WithLogger(zap.New(core)))
	c, ok := f.Control("blob")
	require.True(t, ok)
	assert.Equal(t, KindText, c.Kind)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "blob", logs.All()[0].ContextMap()["field"])
}

func TestControl_NeverCollectsOutOfBounds(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))

	for _, in := range []string{"-5", "0", "500", "999", "1000", "123456789"} {
		require.NoError(t, f.SetInput("count", in))
		v := f.Collect()["count"].(int64)
		assert.GreaterOrEqual(t, v, int64(0), in)
		assert.LessOrEqual(t, v, int64(999), in)
	}
	require.NoError(t, f.SetInput("count", "1000"))
	assert.Equal(t, int64(999), f.Collect()["count"])

	for _, in := range []string{"-1", "0", "0.5", "1", "2"} {
		require.NoError(t, f.SetInput("ratio", in))
		v := f.Collect()["ratio"].(float64)
		assert.Greater(t, v, 0.0, in)
		assert.LessOrEqual(t, v, 1.0, in)
	}

	c, _ := f.Control("count")
	require.NoError(t, c.Set(int64(5000)))
	assert.Equal(t, int64(999), c.Value())
}

func resolvedJig(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Jig()
	require.NoError(t, err)
	return s.WithDomains(
		schema.EnumeratedDomain{Name: schema.DomainJigType, Values: schema.DefaultDomains[schema.DomainJigType]},
		schema.EnumeratedDomain{Name: schema.DomainJigUseStatus, Values: schema.DefaultDomains[schema.DomainJigUseStatus]},
	)
}

func sampleJig() schema.Record {
	return schema.Record{
		"id":             int64(12),
		"name":           "Torque fixture",
		"model":          "X1",
		"type":           schema.EnumMember{Domain: schema.DomainJigType, Value: "adapter"},
		"count":          int64(3),
		"no":             "J-0012",
		"CheckCycle":     int64(180),
		"UseStatus":      schema.EnumMember{Domain: schema.DomainJigUseStatus, Value: schema.StatusInUse},
		"Makedate":       schema.Date{Year: 2023, Month: 7, Day: 4},
		"Maxcount":       int64(20000),
		"CheckMaxcount":  int64(800),
		"Version":        "B2",
		"Checkdate":      schema.Date{Year: 2024, Month: 1, Day: 31},
		"Usedcount":      int64(1500),
		"CheckUsedcount": int64(120),
		"Location":       "Cabinet 3",
		"Remark":         "left drawer",
	}
}

func TestRoundTrip_PopulateCollectValidate(t *testing.T) {
	s := resolvedJig(t)
	rec := sampleJig()

	f := Build(s, WithClock(clock))
	require.NoError(t, f.Populate(rec))

	raw := f.Collect()
	for k, v := range rec {
		if k == "id" {
			continue
		}
		assert.Equal(t, v, raw[k], k)
	}

	got, errs := f.Validate(raw)
	require.Empty(t, errs)
	assert.Equal(t, rec, got)
}

func TestRoundTrip_NilOptional(t *testing.T) {
	s := resolvedJig(t)
	rec := sampleJig()
	rec["Remark"] = nil

	f := Build(s, WithClock(clock))
	require.NoError(t, f.Populate(rec))
	got, errs := f.Validate(f.Collect())
	require.Empty(t, errs)
	assert.Nil(t, got["Remark"])
}

func TestPopulate_UnknownChoiceKeepsGoing(t *testing.T) {
	s := resolvedJig(t)
	rec := sampleJig()
	rec["type"] = schema.EnumMember{Domain: schema.DomainJigType, Value: "retired-kind"}

	f := Build(s, WithClock(clock))
	err := f.Populate(rec)
	assert.Error(t, err)
	assert.Equal(t, "Cabinet 3", f.Collect()["Location"])
	assert.Nil(t, f.Collect()["type"])
}

func TestValidate_ShowsAndClearsIndicators(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))
	raw := f.Collect()
	raw["count"] = int64(1200)
	raw["name"] = nil

	rec, errs := f.Validate(raw)
	assert.Nil(t, rec)
	require.Len(t, errs, 3)
	assert.Equal(t, "must be >= 0, <= 999", errs["count"])
	assert.Equal(t, "field required", errs["name"])
	assert.Equal(t, "field required", errs["kind"])

	count, _ := f.Control("count")
	assert.True(t, count.Error.Visible)
	assert.Equal(t, errs, f.Errors())

	require.NoError(t, f.SetInput("kind", "pc"))
	require.NoError(t, f.SetInput("name", "gauge"))
	rec, errs = f.Validate(f.Collect())
	require.Empty(t, errs)
	assert.False(t, count.Error.Visible)
	assert.Empty(t, f.Errors())
	assert.Equal(t, schema.EnumMember{Domain: "Kind", Value: "pc"}, rec["kind"])
	assert.Nil(t, rec["id"])
	_, hasHidden := rec["internal"]
	assert.False(t, hasHidden)
}

func TestValidate_InputErrors(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))
	f.Apply(map[string]string{
		"name":  "gauge",
		"made":  "15/03/2024",
		"count": "many",
		"kind":  "mainframe",
	})
	_, errs := f.Validate(f.Collect())
	assert.Equal(t, "not a valid date, want yyyy-MM-dd", errs["made"])
	assert.Equal(t, "not a valid integer", errs["count"])
	assert.Equal(t, "not one of: server, pc", errs["kind"])

	active, _ := f.Control("active")
	assert.False(t, active.Checked(), "absent checkbox input switches the toggle off")
}

func TestValidate_EnumOutsideDomain(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))
	raw := f.Collect()
	raw["kind"] = schema.EnumMember{Domain: "Kind", Value: "mainframe"}
	_, errs := f.Validate(raw)
	assert.Equal(t, "not one of: server, pc", errs["kind"])
}

func TestSetInput_UnknownField(t *testing.T) {
	f := Build(testSchema(), WithClock(clock))
	assert.Error(t, f.SetInput("nope", "1"))
}

type fakeStore struct {
	inserted  []schema.Record
	updated   map[int64]schema.Record
	commits   int
	reverts   int
	commitErr error
	insertErr error
	missing   bool
}

func (s *fakeStore) Insert(_ context.Context, r schema.Record) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, r)
	return int64(len(s.inserted)), nil
}

func (s *fakeStore) Update(_ context.Context, key int64, partial schema.Record) (bool, error) {
	if s.missing {
		return false, nil
	}
	if s.updated == nil {
		s.updated = map[int64]schema.Record{}
	}
	s.updated[key] = partial
	return true, nil
}

func (s *fakeStore) Commit() error {
	s.commits++
	return s.commitErr
}

func (s *fakeStore) Revert() error {
	s.reverts++
	return nil
}

type fakeView struct {
	storage map[int]int
	keys    []int64
}

func (v fakeView) DisplayToStorage(display int) (int, error) {
	i, ok := v.storage[display]
	if !ok {
		return 0, errors.New("display row out of range")
	}
	return i, nil
}

func (v fakeView) KeyAt(storage int) (int64, error) {
	if storage < 0 || storage >= len(v.keys) {
		return 0, errors.New("storage row out of range")
	}
	return v.keys[storage], nil
}

func TestSubmit_CreateOmitsNilKey(t *testing.T) {
	s := resolvedJig(t)
	rec := sampleJig()
	rec["id"] = nil
	st := &fakeStore{}

	key, err := Submit(context.Background(), s, rec, CreateMode(), Target{Store: st})
	require.NoError(t, err)
	assert.Equal(t, int64(1), key)
	require.Len(t, st.inserted, 1)
	_, hasKey := st.inserted[0]["id"]
	assert.False(t, hasKey)
	assert.Equal(t, 1, st.commits)
	assert.Equal(t, 0, st.reverts)
}

func TestSubmit_EditMapsDisplayRow(t *testing.T) {
	s := resolvedJig(t)
	rec := sampleJig()
	st := &fakeStore{}
	view := fakeView{storage: map[int]int{0: 2, 1: 0, 2: 1}, keys: []int64{10, 11, 12}}

	key, err := Submit(context.Background(), s, rec, EditMode(0), Target{Store: st, View: view})
	require.NoError(t, err)
	assert.Equal(t, int64(12), key)

	partial := st.updated[12]
	require.NotNil(t, partial)
	_, hasKey := partial["id"]
	assert.False(t, hasKey, "primary key is never rewritten")
	assert.Equal(t, "Torque fixture", partial["name"])
	assert.Len(t, partial, 16)
}

func TestSubmit_CommitFailureReverts(t *testing.T) {
	s := resolvedJig(t)
	st := &fakeStore{commitErr: errors.New("storage error: disk I/O error")}

	_, err := Submit(context.Background(), s, sampleJig(), CreateMode(), Target{Store: st})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Equal(t, 1, st.reverts)
}

func TestSubmit_StageFailureReverts(t *testing.T) {
	s := resolvedJig(t)
	st := &fakeStore{insertErr: errors.New("CHECK constraint failed")}

	_, err := Submit(context.Background(), s, sampleJig(), CreateMode(), Target{Store: st})
	require.Error(t, err)
	assert.Equal(t, 0, st.commits)
	assert.Equal(t, 1, st.reverts)
}

func TestSubmit_EditMissingRow(t *testing.T) {
	s := resolvedJig(t)
	st := &fakeStore{missing: true}
	view := fakeView{storage: map[int]int{0: 0}, keys: []int64{10}}

	_, err := Submit(context.Background(), s, sampleJig(), EditMode(0), Target{Store: st, View: view})
	assert.ErrorIs(t, err, ErrRowGone)
	assert.Equal(t, 1, st.reverts)

	_, err = Submit(context.Background(), s, sampleJig(), EditMode(5), Target{Store: st, View: view})
	assert.Error(t, err)
}
