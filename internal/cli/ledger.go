package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"billtrack/internal/cache"
	"billtrack/internal/core"
	"billtrack/internal/filter"
	apphttp "billtrack/internal/http"
	"billtrack/internal/log"
	"billtrack/internal/report/csv"
	"billtrack/internal/services"
)

// rangeFlags are the --from/--to pair shared by the read commands.
type rangeFlags struct {
	from, to string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "start date, YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringVar(&r.to, "to", "", "end date, inclusive")
}

func (r *rangeFlags) values() url.Values {
	return url.Values{"from": {r.from}, "to": {r.to}}
}

func newSummaryCommand(a *app) *cobra.Command {
	var (
		window string
		rng    rangeFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show totals, today's figures and the monthly overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := rng.values()
			q.Set("window", window)
			w, err := apphttp.ParseWindow(q, a.cfg.Location())
			if err != nil {
				return err
			}

			store, res, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()
			defer store.Close()

			dashboards := services.NewDashboardService(cache.NewLRUCache[services.Dashboard](1, 0), a.now)
			d := dashboards.Summary(store.Snapshot(), w)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			return printDashboard(cmd.OutOrStdout(), d, a.cfg.CurrencySymbol)
		},
	}

	cmd.Flags().StringVarP(&window, "window", "w", "all", "time window: all, year, month or custom")
	rng.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var (
		window, scope, month, sort string
		rng                        rangeFlags
		asJSON                     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := rng.values()
			q.Set("window", window)
			q.Set("scope", scope)
			q.Set("month", month)
			q.Set("sort", sort)
			lq, err := apphttp.ParseListQuery(q, a.cfg.Location(), a.cfg.FirstWeekday())
			if err != nil {
				return err
			}

			store, res, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()
			defer store.Close()

			records := filter.Apply(store.Snapshot().Records(), a.now(), lq.Window, lq.Scope, lq.Sort)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), apphttp.TransactionViews(records))
			}
			return printTransactions(cmd.OutOrStdout(), records, a.cfg.CurrencySymbol, a.cfg.Location())
		},
	}

	cmd.Flags().StringVarP(&window, "window", "w", "all", "time window: all, year, month or custom")
	cmd.Flags().StringVarP(&scope, "scope", "s", "all", "list filter: all, today, week, month or custom")
	cmd.Flags().StringVar(&month, "month", "", "month for --scope month, YYYY-MM")
	cmd.Flags().StringVar(&sort, "sort", "newest", "order: newest, oldest, high or low")
	rng.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newAddCommand(a *app) *cobra.Command {
	var title, amount, kind, note, date, due, attachment string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			principal, err := a.principal()
			if err != nil {
				return err
			}
			t, err := a.parseTransaction(title, amount, kind, note, date, due, attachment)
			if err != nil {
				return err
			}

			res, err := OpenBackend(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer res.Close()

			created, err := res.Ingest.Create(cmd.Context(), principal, t)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n",
				created.Kind, core.FormatCurrency(a.cfg.CurrencySymbol, created.Amount), created.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount (required)")
	cmd.Flags().StringVar(&kind, "type", "expense", "income or expense")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	cmd.Flags().StringVar(&date, "date", "", "date, YYYY-MM-DD or RFC 3339 (default now)")
	cmd.Flags().StringVar(&due, "due", "0", "outstanding amount")
	cmd.Flags().StringVar(&attachment, "attachment", "", "attachment URL")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) parseTransaction(title, amount, kind, note, date, due, attachment string) (core.Transaction, error) {
	amt, err := core.ParseAmount(amount)
	if err != nil {
		return core.Transaction{}, err
	}
	k, err := core.ParseKind(kind)
	if err != nil {
		return core.Transaction{}, err
	}
	d := decimal.Zero
	if strings.TrimSpace(due) != "" {
		if d, err = core.ParseDue(due); err != nil {
			return core.Transaction{}, err
		}
	}
	at := a.now()
	if strings.TrimSpace(date) != "" {
		if at, err = filter.ParseBound(date, a.cfg.Location(), false); err != nil {
			return core.Transaction{}, err
		}
	}
	return core.Transaction{
		Title:         title,
		Amount:        amt,
		Kind:          k,
		Note:          note,
		OccurredAt:    at,
		AttachmentRef: attachment,
		Due:           d,
	}, nil
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, err := a.principal()
			if err != nil {
				return err
			}
			res, err := OpenBackend(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer res.Close()

			if err := res.Ingest.Delete(cmd.Context(), principal, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return err
		},
	}
}

func newSetDueCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-due <id> <amount>",
		Short: "Set the outstanding amount of a transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := core.ParseDue(args[1])
			if err != nil {
				return err
			}

			store, res, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Close()
			defer store.Close()

			if err := store.UpdateDue(cmd.Context(), args[0], due); err != nil {
				return err
			}
			t, ok := store.Snapshot().Find(args[0])
			if !ok {
				return fmt.Errorf("%w: transaction %s", core.ErrNotFound, args[0])
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s due %s\n", t.DisplayTitle(), core.FormatCurrency(a.cfg.CurrencySymbol, t.Due))
			return err
		},
	}
}

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import transactions from CSV (" + csv.ImportHeader + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, err := a.principal()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			records, err := csv.ReadTransactions(f, a.cfg.Location())
			if err != nil {
				return err
			}

			res, err := OpenBackend(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer res.Close()

			for i, t := range records {
				if _, err := res.Ingest.Create(cmd.Context(), principal, t); err != nil {
					return fmt.Errorf("import row %d: %w", i+1, err)
				}
			}
			a.logger.Info("Transactions imported",
				log.FieldOperation, log.OpImport,
				log.FieldPrincipal, principal,
				log.FieldCount, len(records))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions\n", len(records))
			return err
		},
	}
}
