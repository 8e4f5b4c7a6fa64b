// Package export writes the rows currently shown in the record table to a
// spreadsheet or CSV file, with column titles and the warning colors of the
// style engine.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/style"
)

// SheetName is the worksheet holding the exported rows.
const SheetName = "Jigs"

// View is the filtered, sorted table being exported.
type View interface {
	Headers() []string
	Titles() []string
	Rows() []schema.Record
	Cell(display int, column string, t style.Thresholds, now time.Time) (string, style.State)
}

// CSV writes the title row and the displayed cell text.
func CSV(w io.Writer, v View) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(v.Titles()); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	headers := v.Headers()
	for d := range v.Rows() {
		line := make([]string, len(headers))
		for i, h := range headers {
			line[i], _ = v.Cell(d, h, style.Thresholds{}, time.Time{})
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("writing csv row %d: %w", d+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes an xlsx workbook. Cells in a warning or critical state are
// filled with the configured color when it can be expressed as RGB.
func XLSX(w io.Writer, v View, t style.Thresholds, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	states, err := stateStyles(f, t)
	if err != nil {
		return err
	}

	for col, title := range v.Titles() {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, title); err != nil {
			return fmt.Errorf("writing header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("styling header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, float64(max(10, len(title)+2))); err != nil {
			return fmt.Errorf("sizing column %s: %w", name, err)
		}
	}

	headers := v.Headers()
	for d, r := range v.Rows() {
		for col, h := range headers {
			cell, err := excelize.CoordinatesToCellName(col+1, d+2)
			if err != nil {
				return err
			}
			text, state := v.Cell(d, h, t, now)
			if err := f.SetCellValue(SheetName, cell, cellValue(r[h], text)); err != nil {
				return fmt.Errorf("writing cell %s: %w", cell, err)
			}
			if id, ok := states[state]; ok {
				if err := f.SetCellStyle(SheetName, cell, cell, id); err != nil {
					return fmt.Errorf("styling cell %s: %w", cell, err)
				}
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func stateStyles(f *excelize.File, t style.Thresholds) (map[style.State]int, error) {
	out := map[style.State]int{}
	for _, s := range []style.State{style.Warning, style.Critical} {
		rgb, ok := fillColor(t.Color(s))
		if !ok {
			continue
		}
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{rgb}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s style: %w", s, err)
		}
		out[s] = id
	}
	return out, nil
}

// Numbers stay numeric in the sheet; everything else is written as shown.
func cellValue(v any, text string) any {
	switch x := v.(type) {
	case int64, float64, bool:
		return x
	default:
		return text
	}
}

var hexColor = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)

var namedColors = map[string]string{
	"red":    "#FF0000",
	"orange": "#FFA500",
	"yellow": "#FFFF00",
	"green":  "#008000",
	"blue":   "#0000FF",
	"purple": "#800080",
	"pink":   "#FFC0CB",
	"gray":   "#808080",
	"grey":   "#808080",
}

func fillColor(name string) (string, bool) {
	if hexColor.MatchString(name) {
		return "#" + strings.ToUpper(strings.TrimPrefix(name, "#")), true
	}
	rgb, ok := namedColors[strings.ToLower(name)]
	return rgb, ok
}
