package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJig_FieldOrderAndPlacement(t *testing.T) {
	s, err := Jig()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"id", "name", "model", "type", "count", "no", "CheckCycle", "UseStatus",
		"Makedate", "Maxcount", "CheckMaxcount", "Version", "Checkdate",
		"Usedcount", "CheckUsedcount", "Location", "Remark",
	}, s.Names())

	pk, ok := s.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)
	assert.Equal(t, FieldInt, pk.Type)
	assert.True(t, pk.Placement.Hidden)
	assert.True(t, pk.Optional)

	loc, _ := s.Field("Location")
	assert.Equal(t, Placement{Row: 6, Col: 4, ColSpan: 4}, loc.Placement)
	assert.Equal(t, "Storage Location", loc.Title)

	remark, _ := s.Field("Remark")
	assert.True(t, remark.Optional)
	assert.Equal(t, WidgetTextArea, remark.Widget)

	assert.Len(t, s.Visible(), 16)
}

func TestJig_TypesBoundsDefaults(t *testing.T) {
	s, err := Jig()
	require.NoError(t, err)

	count, _ := s.Field("count")
	assert.Equal(t, FieldInt, count.Type)
	require.True(t, count.HasDefault)
	assert.Equal(t, int64(1), count.Default)
	require.NotNil(t, count.Bounds.Max)
	assert.Equal(t, 999.0, count.Bounds.Max.Value)
	assert.False(t, count.Bounds.Max.Exclusive)
	assert.Nil(t, count.Bounds.Min)

	maxcount, _ := s.Field("Maxcount")
	assert.Equal(t, int64(10000), maxcount.Default)
	require.NotNil(t, maxcount.Bounds.Max)
	assert.Equal(t, 99999.0, maxcount.Bounds.Max.Value)

	cycle, _ := s.Field("CheckCycle")
	assert.Equal(t, int64(360), cycle.Default)
	require.NotNil(t, cycle.Bounds.Max)
	assert.Equal(t, 9999.0, cycle.Bounds.Max.Value)

	used, _ := s.Field("Usedcount")
	assert.False(t, used.HasDefault)
	assert.True(t, used.Bounds.Empty())

	typ, _ := s.Field("type")
	assert.Equal(t, FieldEnum, typ.Type)
	assert.Equal(t, DomainJigType, typ.Domain)

	made, _ := s.Field("Makedate")
	assert.Equal(t, FieldDate, made.Type)

	assert.Equal(t, []string{DomainJigType, DomainJigUseStatus}, s.DomainNames())
}

func TestLoadCUE_ExclusiveBoundsAndFloat(t *testing.T) {
	src := []byte(`
#T: {
	ratio:  float & >0 & <1   @ui(title="Ratio")
	active: *true | bool
	label:  string            @ui(maxlen=20,widget=password)
}`)
	s, err := LoadCUE(src, "#T")
	require.NoError(t, err)

	ratio, _ := s.Field("ratio")
	assert.Equal(t, FieldFloat, ratio.Type)
	require.NotNil(t, ratio.Bounds.Min)
	assert.True(t, ratio.Bounds.Min.Exclusive)
	assert.True(t, ratio.Bounds.Max.Exclusive)

	active, _ := s.Field("active")
	assert.Equal(t, FieldBool, active.Type)
	assert.Equal(t, true, active.Default)

	label, _ := s.Field("label")
	assert.Equal(t, 20, label.Bounds.MaxLength)
	assert.Equal(t, WidgetPassword, label.Widget)
}

func TestLoadCUE_UnknownWidget(t *testing.T) {
	_, err := LoadCUE([]byte(`#T: { a: string @ui(widget=slider) }`), "#T")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestNew_Rules(t *testing.T) {
	_, err := New([]FieldSpec{{Name: "a"}, {Name: "a"}})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = New([]FieldSpec{{Name: "id", Type: FieldText, PrimaryKey: true}})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = New([]FieldSpec{{Name: "a", Type: FieldInt, PrimaryKey: true}, {Name: "b", Type: FieldInt, PrimaryKey: true}})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = New([]FieldSpec{{Name: "kind", Type: FieldEnum}})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestBounds_Contains(t *testing.T) {
	b := Bounds{Min: &Bound{Value: 0}, Max: &Bound{Value: 10, Exclusive: true}}
	assert.True(t, b.Contains(0))
	assert.True(t, b.Contains(9.5))
	assert.False(t, b.Contains(10))
	assert.False(t, b.Contains(-1))
	assert.Equal(t, ">= 0, < 10", b.Describe())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, "2024-03-01", d.AddDays(1).String())

	d, err = ParseDate("2024-05-06T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, Date{2024, 5, 6}, d)

	_, err = ParseDate("06/05/2024")
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	s, err := Jig()
	require.NoError(t, err)

	made, _ := s.Field("Makedate")
	v, err := Coerce(made, "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, Date{2024, 1, 2}, v)

	typ, _ := s.Field("type")
	v, err = Coerce(typ, "pc")
	require.NoError(t, err)
	assert.Equal(t, EnumMember{Domain: DomainJigType, Value: "pc"}, v)

	count, _ := s.Field("count")
	v, err = Coerce(count, int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = Coerce(count, "three")
	assert.Error(t, err)

	assert.Equal(t, "2024-01-02", StorageValue(Date{2024, 1, 2}))
	assert.Equal(t, "pc", StorageValue(EnumMember{Value: "pc"}))
}

type fakeDomains struct {
	values map[string][]string
	loads  int
	fail   int
}

func (f *fakeDomains) LoadDomain(_ context.Context, name string) ([]string, error) {
	f.loads++
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("no such table: " + name)
	}
	return f.values[name], nil
}

type fakeBoot struct {
	calls int
	src   *fakeDomains
}

func (b *fakeBoot) Bootstrap(_ context.Context, names []string) error {
	b.calls++
	for _, n := range names {
		b.src.values[n] = DefaultDomains[n]
	}
	return nil
}

func TestResolve_LoadsDomains(t *testing.T) {
	static, err := Jig()
	require.NoError(t, err)
	src := &fakeDomains{values: map[string][]string{
		DomainJigType:      {"pc"},
		DomainJigUseStatus: {StatusUnused, StatusInUse},
	}}
	boot := &fakeBoot{src: src}

	s, err := Resolve(context.Background(), static, src, boot)
	require.NoError(t, err)
	assert.Equal(t, 0, boot.calls)

	d, err := s.Enum(DomainJigUseStatus)
	require.NoError(t, err)
	assert.Equal(t, []string{StatusUnused, StatusInUse}, d.Values)

	_, err = static.Enum(DomainJigType)
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestResolve_BootstrapsOnce(t *testing.T) {
	static, err := Jig()
	require.NoError(t, err)
	src := &fakeDomains{values: map[string][]string{}, fail: 1}
	boot := &fakeBoot{src: src}

	s, err := Resolve(context.Background(), static, src, boot)
	require.NoError(t, err)
	assert.Equal(t, 1, boot.calls)

	d, err := s.Enum(DomainJigType)
	require.NoError(t, err)
	assert.Equal(t, DefaultDomains[DomainJigType], d.Values)
}

func TestResolve_SecondFailureIsConfigurationError(t *testing.T) {
	static, err := Jig()
	require.NoError(t, err)
	src := &fakeDomains{values: map[string][]string{}, fail: 100}
	boot := &fakeBoot{src: src}

	_, err = Resolve(context.Background(), static, src, boot)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 1, boot.calls)
	assert.Equal(t, 2, src.loads)
}
