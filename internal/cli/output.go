package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/services"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDashboard(w io.Writer, d services.Dashboard, symbol string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Window:\t%s\t(%d transactions)\n", d.Window, d.Count)
	fmt.Fprintf(tw, "Income:\t%s\n", core.FormatCurrency(symbol, d.Totals.Income))
	fmt.Fprintf(tw, "Expense:\t%s\n", core.FormatCurrency(symbol, d.Totals.Expense))
	fmt.Fprintf(tw, "Profit:\t%s\n", core.FormatCurrency(symbol, d.Totals.Profit))
	fmt.Fprintf(tw, "Due:\t%s\n", core.FormatCurrency(symbol, d.Totals.Due))
	fmt.Fprintf(tw, "Today:\t%s in, %s out\n",
		core.FormatCurrency(symbol, d.Today.Income),
		core.FormatCurrency(symbol, d.Today.Expense))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "MONTH\tINCOME\tEXPENSE\tPROFIT")
	for _, m := range d.Monthly {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Label,
			core.FormatCurrency(symbol, m.Income),
			core.FormatCurrency(symbol, m.Expense),
			core.FormatCurrency(symbol, m.Profit))
	}
	return tw.Flush()
}

// printTransactions dates records in loc so a row agrees with the scope that selected it.
func printTransactions(w io.Writer, records []core.Transaction, symbol string, loc *time.Location) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No transactions")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tDUE\tTITLE")
	for _, t := range records {
		due := "-"
		if t.HasDue() {
			due = core.FormatCurrency(symbol, t.Due)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.OccurredAt.In(loc).Format(time.DateOnly),
			t.Kind,
			core.FormatCurrency(symbol, t.Amount),
			due,
			t.DisplayTitle())
	}
	return tw.Flush()
}
