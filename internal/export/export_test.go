package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/style"
)

type fakeView struct {
	headers []string
	rows    []schema.Record
	states  map[string]style.State
}

func (v fakeView) Headers() []string { return v.headers }

func (v fakeView) Titles() []string {
	out := make([]string, len(v.headers))
	for i, h := range v.headers {
		out[i] = "T " + h
	}
	return out
}

func (v fakeView) Rows() []schema.Record { return v.rows }

func (v fakeView) Cell(d int, column string, _ style.Thresholds, _ time.Time) (string, style.State) {
	return schema.Display(v.rows[d][column]), v.states[column]
}

func sample() fakeView {
	return fakeView{
		headers: []string{"name", "Usedcount", "Checkdate"},
		rows: []schema.Record{
			{"name": "probe, long", "Usedcount": int64(9990), "Checkdate": schema.Date{Year: 2024, Month: 1, Day: 2}},
			{"name": "clamp", "Usedcount": int64(3), "Checkdate": nil},
		},
		states: map[string]style.State{"Usedcount": style.Critical, "Checkdate": style.Warning},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sample()))

	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"T name", "T Usedcount", "T Checkdate"},
		{"probe, long", "9990", "2024-01-02"},
		{"clamp", "3", ""},
	}, lines)
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	th := style.DefaultThresholds()
	require.NoError(t, XLSX(&buf, sample(), th, time.Now()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"T name", "T Usedcount", "T Checkdate"}, rows[0])
	assert.Equal(t, []string{"probe, long", "9990", "2024-01-02"}, rows[1])

	critical, err := f.GetCellStyle(SheetName, "B2")
	require.NoError(t, err)
	warning, err := f.GetCellStyle(SheetName, "C2")
	require.NoError(t, err)
	plain, err := f.GetCellStyle(SheetName, "A2")
	require.NoError(t, err)
	assert.NotZero(t, critical)
	assert.NotZero(t, warning)
	assert.NotEqual(t, critical, warning)
	assert.Zero(t, plain)
}

func TestFillColor(t *testing.T) {
	for in, want := range map[string]string{"red": "#FF0000", "Orange": "#FFA500", "#00ff00": "#00FF00", "abcdef": "#ABCDEF"} {
		got, ok := fillColor(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := fillColor("chartreuse")
	assert.False(t, ok)
}
