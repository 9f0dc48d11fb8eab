// Package csv renders a report.Document as CSV and reads transaction imports
// in the same column layout as the details section.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"billtrack/internal/core"
	"billtrack/internal/report"
)

const ContentType = "text/csv; charset=utf-8"

// ImportHeader is the header of a transaction import file.
const ImportHeader = "title,date,type,amount,due,note,attachment"

const (
	numImportFields = 7
	colTitle        = 0
	colDate         = 1
	colType         = 2
	colAmount       = 3
	colDue          = 4
	colNote         = 5
	colAttachment   = 6
)

type Renderer struct{}

func New() *Renderer { return &Renderer{} }

func (r *Renderer) ContentType() string { return ContentType }
func (r *Renderer) Extension() string   { return "csv" }

// Render writes the header rows, then each section as a title row, an
// optional column row and its data, separated by blank rows. Currency values
// use plain two-decimal numbers.
func (r *Renderer) Render(w io.Writer, doc report.Document) error {
	cw := csv.NewWriter(w)

	rows := [][]string{{doc.Title}, {doc.Period}}
	for _, s := range doc.Sections {
		rows = append(rows, []string{}, []string{s.Title})
		if len(s.Columns) > 0 {
			rows = append(rows, s.Columns)
		}
		for _, row := range s.Rows {
			rows = append(rows, marshalRow(row))
		}
	}

	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func marshalRow(row []report.Cell) []string {
	out := make([]string, len(row))
	for i, c := range row {
		if c.Kind == report.CellCurrency {
			out[i] = c.Value.StringFixed(2)
		} else {
			out[i] = c.Text
		}
	}
	return out
}

// ReadTransactions parses an import file. Dates are YYYY-MM-DD in loc; IDs and
// owners are left for the caller to assign.
func ReadTransactions(r io.Reader, loc *time.Location) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading import CSV: %w", core.ErrValidation, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if strings.Join(records[0], ",") == ImportHeader {
		records = records[1:]
	}

	out := make([]core.Transaction, 0, len(records))
	for i, rec := range records {
		t, err := unmarshalTransaction(rec, loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func unmarshalTransaction(rec []string, loc *time.Location) (core.Transaction, error) {
	if len(rec) < colAmount+1 {
		return core.Transaction{}, fmt.Errorf("%w: expected at least %d fields, got %d", core.ErrValidation, colAmount+1, len(rec))
	}
	if len(rec) > numImportFields {
		return core.Transaction{}, fmt.Errorf("%w: expected at most %d fields, got %d", core.ErrValidation, numImportFields, len(rec))
	}
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	date, err := time.ParseInLocation(time.DateOnly, field(colDate), loc)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: invalid date %q", core.ErrValidation, field(colDate))
	}
	kind, err := core.ParseKind(field(colType))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(field(colAmount))
	if err != nil {
		return core.Transaction{}, err
	}
	due := decimal.Zero
	if s := field(colDue); s != "" {
		if due, err = core.ParseDue(s); err != nil {
			return core.Transaction{}, err
		}
	}

	return core.Transaction{
		Title:         field(colTitle),
		OccurredAt:    date,
		Kind:          kind,
		Amount:        amount,
		Due:           due,
		Note:          field(colNote),
		AttachmentRef: field(colAttachment),
	}, nil
}
