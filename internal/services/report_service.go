package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/report"
	"billtrack/internal/report/sheets"
)

// SheetExporter pushes a document to a spreadsheet tab and returns the
// updated range.
type SheetExporter interface {
	Export(ctx context.Context, doc report.Document, tab string) (string, error)
}

// ErrExportDisabled is returned by Export when no spreadsheet is configured.
var ErrExportDisabled = errors.New("spreadsheet export is not configured")

// Artifact is a rendered report ready for download.
type Artifact struct {
	Filename    string
	ContentType string
}

// ReportService turns records into documents and documents into files.
type ReportService struct {
	builder   *report.Builder
	renderers map[string]report.Renderer
	exporter  SheetExporter
}

// NewReportService registers renderers by extension. exporter may be nil.
func NewReportService(now func() time.Time, exporter SheetExporter, renderers ...report.Renderer) *ReportService {
	byExt := make(map[string]report.Renderer, len(renderers))
	for _, r := range renderers {
		byExt[r.Extension()] = r
	}
	return &ReportService{
		builder:   report.NewBuilder(now),
		renderers: byExt,
		exporter:  exporter,
	}
}

// Build filters records to period and lays them out.
func (s *ReportService) Build(records []core.Transaction, period report.Period, opts report.Options) report.Document {
	inPeriod, label := period.Resolve(records, s.builder.Now())
	return s.builder.Build(inPeriod, label, opts)
}

// Formats lists the registered file extensions.
func (s *ReportService) Formats() []string {
	out := make([]string, 0, len(s.renderers))
	for ext := range s.renderers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Render writes doc to w in the given format.
func (s *ReportService) Render(w io.Writer, doc report.Document, format string) (Artifact, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	r, ok := s.renderers[format]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: unsupported report format %q (want one of %s)",
			core.ErrValidation, format, strings.Join(s.Formats(), ", "))
	}
	if err := r.Render(w, doc); err != nil {
		return Artifact{}, fmt.Errorf("render %s report: %w", format, err)
	}
	return Artifact{
		Filename:    report.Filename(doc.GeneratedAt, r.Extension()),
		ContentType: r.ContentType(),
	}, nil
}

// CanExport reports whether a spreadsheet exporter is configured.
func (s *ReportService) CanExport() bool {
	return s.exporter != nil
}

// Export pushes doc to the configured spreadsheet. An empty tab is named
// after the document.
func (s *ReportService) Export(ctx context.Context, doc report.Document, tab string) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}
	if strings.TrimSpace(tab) == "" {
		tab = sheets.TabName(doc)
	}
	updated, err := s.exporter.Export(ctx, doc, tab)
	if err != nil {
		return "", fmt.Errorf("%w: export report: %w", core.ErrSyncFailure, err)
	}
	slog.InfoContext(ctx, "Report exported to spreadsheet",
		log.FieldComponent, log.ComponentReport,
		log.FieldOperation, log.OpExport,
		log.FieldPeriod, doc.Period,
		"range", updated)
	return updated, nil
}
