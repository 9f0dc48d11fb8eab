// Package xlsx renders a report.Document as an Excel workbook with a single
// "Financial Report" sheet.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"billtrack/internal/core"
	"billtrack/internal/report"
)

const (
	SheetName   = "Financial Report"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	colorTitle    = "2F5496"
	colorPositive = "00B050"
	colorNegative = "C00000"
	colorHeader   = "D9E1F2"
)

type Renderer struct {
	CurrencySymbol string
}

func New(currencySymbol string) *Renderer {
	if currencySymbol == "" {
		currencySymbol = core.DefaultCurrencySymbol
	}
	return &Renderer{CurrencySymbol: currencySymbol}
}

func (r *Renderer) ContentType() string { return ContentType }
func (r *Renderer) Extension() string   { return "xlsx" }

func (r *Renderer) Render(w io.Writer, doc report.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	s, err := newStyles(f, r.CurrencySymbol)
	if err != nil {
		return err
	}

	sw := &sheetWriter{f: f, styles: s, width: doc.Width(), row: 1}
	if err := sw.header(doc); err != nil {
		return err
	}
	for _, section := range doc.Sections {
		if err := sw.section(section); err != nil {
			return fmt.Errorf("write %s section: %w", section.Kind, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type styles struct {
	title, period, sectionTitle   int
	label, columnHeader, cellText int
	currency, positive, negative  int
	plainCurrency                 int
}

func newStyles(f *excelize.File, symbol string) (styles, error) {
	numFmt := symbol + "#,##0.00"
	center := &excelize.Alignment{Horizontal: "center"}
	right := &excelize.Alignment{Horizontal: "right"}
	thin := func(sides ...string) []excelize.Border {
		out := make([]excelize.Border, 0, len(sides))
		for _, side := range sides {
			out = append(out, excelize.Border{Type: side, Color: "000000", Style: 1})
		}
		return out
	}
	rowBorder := thin("left", "right", "bottom")

	var s styles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 18, Color: colorTitle}, Alignment: center}},
		{&s.period, &excelize.Style{Font: &excelize.Font{Italic: true, Size: 14}, Alignment: center}},
		{&s.sectionTitle, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14, Color: colorTitle}, Alignment: center}},
		{&s.label, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&s.plainCurrency, &excelize.Style{CustomNumFmt: &numFmt, Alignment: right}},
		{&s.columnHeader, &excelize.Style{
			Font:   &excelize.Font{Bold: true},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorHeader}},
			Border: thin("top", "left", "bottom", "right"),
		}},
		{&s.cellText, &excelize.Style{Border: rowBorder}},
		{&s.currency, &excelize.Style{CustomNumFmt: &numFmt, Border: rowBorder}},
		{&s.positive, &excelize.Style{CustomNumFmt: &numFmt, Border: rowBorder, Font: &excelize.Font{Color: colorPositive}}},
		{&s.negative, &excelize.Style{CustomNumFmt: &numFmt, Border: rowBorder, Font: &excelize.Font{Color: colorNegative}}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, fmt.Errorf("create style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

type sheetWriter struct {
	f      *excelize.File
	styles styles
	width  int
	row    int
}

func (sw *sheetWriter) header(doc report.Document) error {
	if err := sw.banner(doc.Title, sw.styles.title); err != nil {
		return err
	}
	if err := sw.f.SetRowHeight(SheetName, 1, 30); err != nil {
		return err
	}
	if err := sw.banner(doc.Period, sw.styles.period); err != nil {
		return err
	}
	sw.row++ // blank line
	return nil
}

// banner writes text merged across the sheet width on the current row.
func (sw *sheetWriter) banner(text string, style int) error {
	first := cell(1, sw.row)
	last := cell(sw.width, sw.row)
	if err := sw.f.SetCellValue(SheetName, first, text); err != nil {
		return err
	}
	if err := sw.f.MergeCell(SheetName, first, last); err != nil {
		return err
	}
	if err := sw.f.SetCellStyle(SheetName, first, last, style); err != nil {
		return err
	}
	sw.row++
	return nil
}

func (sw *sheetWriter) section(s report.Section) error {
	if err := sw.banner(s.Title, sw.styles.sectionTitle); err != nil {
		return err
	}

	if s.Kind == report.SectionSummary {
		for _, row := range s.Rows {
			if err := sw.summaryRow(row); err != nil {
				return err
			}
		}
		sw.row++
		return sw.widths(20, 20)
	}

	headerRow := sw.row
	for i, name := range s.Columns {
		if err := sw.set(cell(i+1, sw.row), name, sw.styles.columnHeader); err != nil {
			return err
		}
	}
	sw.row++

	for _, row := range s.Rows {
		for i, c := range row {
			if err := sw.write(cell(i+1, sw.row), c); err != nil {
				return err
			}
		}
		sw.row++
	}

	if s.Kind != report.SectionDetails {
		sw.row++
		return sw.widths(15, 15, 15, 15)
	}

	if err := sw.widths(25, 12, 10, 15, 15); err != nil {
		return err
	}
	if len(s.Rows) == 0 {
		return nil
	}
	ref := fmt.Sprintf("%s:%s", cell(1, headerRow), cell(len(s.Columns), sw.row-1))
	return sw.f.AutoFilter(SheetName, ref, []excelize.AutoFilterOptions{})
}

func (sw *sheetWriter) summaryRow(row []report.Cell) error {
	if len(row) < 2 {
		return nil
	}
	if err := sw.set(cell(1, sw.row), row[0].Text, sw.styles.label); err != nil {
		return err
	}
	style := sw.styles.plainCurrency
	switch row[1].Sign {
	case report.SignPositive:
		style = sw.styles.positive
	case report.SignNegative:
		style = sw.styles.negative
	}
	if err := sw.set(cell(2, sw.row), row[1].Value.InexactFloat64(), style); err != nil {
		return err
	}
	sw.row++
	return nil
}

func (sw *sheetWriter) write(ref string, c report.Cell) error {
	if c.Kind != report.CellCurrency {
		return sw.set(ref, c.Text, sw.styles.cellText)
	}
	style := sw.styles.currency
	switch c.Sign {
	case report.SignPositive:
		style = sw.styles.positive
	case report.SignNegative:
		style = sw.styles.negative
	}
	return sw.set(ref, c.Value.InexactFloat64(), style)
}

func (sw *sheetWriter) set(ref string, v any, style int) error {
	if err := sw.f.SetCellValue(SheetName, ref, v); err != nil {
		return err
	}
	return sw.f.SetCellStyle(SheetName, ref, ref, style)
}

func (sw *sheetWriter) widths(widths ...float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := sw.f.SetColWidth(SheetName, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
