// Package sheets pushes a report.Document into a tab of a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"billtrack/internal/log"
	"billtrack/internal/report"
)

// Credentials selects the service account; JSON wins over File. When
// OAuthTokenFile is set the saved user token is used instead.
type Credentials struct {
	JSON string
	File string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// New creates an exporter authenticated with a service account.
func New(ctx context.Context, spreadsheetID string, creds Credentials) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// NewWithOptions creates an exporter from raw client options, e.g. a custom
// endpoint and HTTP client.
func NewWithOptions(ctx context.Context, spreadsheetID string, opts ...goption.ClientOption) (*Exporter, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	if strings.TrimSpace(creds.OAuthTokenFile) != "" {
		return newOAuthService(ctx, creds)
	}

	credentialsJSON := []byte(strings.TrimSpace(creds.JSON))
	if len(credentialsJSON) == 0 {
		file := strings.TrimSpace(creds.File)
		if file == "" {
			file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		}
		if file == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
		}
		var err error
		if credentialsJSON, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// TabName derives the destination tab from the document period.
func TabName(doc report.Document) string {
	name := doc.Title + " - " + doc.Period
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

// Export replaces the content of tab with doc, creating the tab if needed.
// It returns the updated A1 range.
func (e *Exporter) Export(ctx context.Context, doc report.Document, tab string) (string, error) {
	if err := e.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	target := quote(tab)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, target, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear tab %q: %w", tab, err)
	}

	vr := &gsheet.ValueRange{Values: Values(doc)}
	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, target+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write tab %q: %w", tab, err)
	}

	slog.InfoContext(ctx, "Report exported to Google Sheets",
		log.FieldComponent, log.ComponentReport,
		log.FieldOperation, log.OpExport,
		log.FieldPeriod, doc.Period,
		"range", resp.UpdatedRange,
		"rows", resp.UpdatedRows)
	return resp.UpdatedRange, nil
}

func (e *Exporter) ensureTab(ctx context.Context, tab string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %q: %w", tab, err)
	}
	return nil
}

// Values flattens doc into rows, with the same layout as the CSV export.
func Values(doc report.Document) [][]interface{} {
	rows := [][]interface{}{{doc.Title}, {doc.Period}}
	for _, s := range doc.Sections {
		rows = append(rows, []interface{}{}, []interface{}{s.Title})
		if len(s.Columns) > 0 {
			header := make([]interface{}, len(s.Columns))
			for i, c := range s.Columns {
				header[i] = c
			}
			rows = append(rows, header)
		}
		for _, row := range s.Rows {
			out := make([]interface{}, len(row))
			for i, c := range row {
				if c.Kind == report.CellCurrency {
					out[i] = c.Value.InexactFloat64()
				} else {
					out[i] = c.Text
				}
			}
			rows = append(rows, out)
		}
	}
	return rows
}

func quote(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
