package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	apphttp "billtrack/internal/http"
	"billtrack/internal/report/csv"
	"billtrack/internal/report/xlsx"
	"billtrack/internal/services"
)

func newReportCommand(a *app) *cobra.Command {
	var (
		period, format, out, tab  string
		rng                       rangeFlags
		summary, monthly, details bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a financial report as xlsx, csv or a Google Sheets tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := rng.values()
			q.Set("period", period)
			q.Set("format", format)
			q.Set("summary", strconv.FormatBool(summary))
			q.Set("monthly", strconv.FormatBool(monthly))
			q.Set("details", strconv.FormatBool(details))
			rq, err := apphttp.ParseReportQuery(q, a.cfg.Location())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var exporter services.SheetExporter
			if rq.Format == "sheets" {
				if exporter, err = SheetExporter(ctx, a.cfg); err != nil {
					return err
				}
			}

			store, res, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer res.Close()
			defer store.Close()

			reports := services.NewReportService(a.now, exporter, xlsx.New(a.cfg.CurrencySymbol), csv.New())
			doc := reports.Build(store.Snapshot().Records(), rq.Period, rq.Options)

			if rq.Format == "sheets" {
				updated, err := reports.Export(ctx, doc, tab)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", doc.Period, updated)
				return err
			}

			var buf bytes.Buffer
			art, err := reports.Render(&buf, doc, rq.Format)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}

			path := out
			if path == "" {
				path = art.Filename
			} else if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				path = filepath.Join(path, art.Filename)
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", path, doc.Period)
			return err
		},
	}

	cmd.Flags().StringVarP(&period, "period", "p", "all", "period: all, year, month, day or custom")
	rng.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "xlsx, csv or sheets")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory, - for stdout (default: generated name)")
	cmd.Flags().StringVar(&tab, "tab", "", "sheet tab for --format sheets (default: derived from the period)")
	cmd.Flags().BoolVar(&summary, "summary", true, "include the financial summary")
	cmd.Flags().BoolVar(&monthly, "monthly", true, "include the monthly overview")
	cmd.Flags().BoolVar(&details, "details", true, "include transaction details")
	return cmd
}
