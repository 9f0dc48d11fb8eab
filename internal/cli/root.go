package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"billtrack/internal/backend"
	"billtrack/internal/config"
	"billtrack/internal/core"
	"billtrack/internal/ledger"
	"billtrack/internal/log"
)

// EnvUser supplies the default for --user.
const EnvUser = "BILLTRACK_USER"

// app carries what every command needs once the root has initialized.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	user   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "billtrack",
		Short: "Ledger aggregation and financial reporting",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			LoadEnvFile()
			cfg, err := LoadAndValidateConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = SetupLogger(cfg, cmd.ErrOrStderr())
			if a.user == "" {
				a.user = os.Getenv(EnvUser)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.user, "user", "u", "", "principal whose ledger is used (default $"+EnvUser+")")

	rootCmd.AddCommand(
		newServeCommand(a),
		newSummaryCommand(a),
		newListCommand(a),
		newReportCommand(a),
		newAddCommand(a),
		newDeleteCommand(a),
		newSetDueCommand(a),
		newImportCommand(a),
		newMigrateCommand(a),
		newSheetsAuthCommand(a),
	)

	return rootCmd
}

func (a *app) principal() (string, error) {
	if err := core.ValidatePrincipal(a.user); err != nil {
		return "", fmt.Errorf("%w: pass --user or set %s", err, EnvUser)
	}
	return strings.TrimSpace(a.user), nil
}

func (a *app) now() time.Time {
	return time.Now().In(a.cfg.Location())
}

// openLedger opens the backend and loads the principal's ledger once. The
// store has no change feed; commands are one-shot.
func (a *app) openLedger(ctx context.Context) (*ledger.Store, *backend.Result, error) {
	principal, err := a.principal()
	if err != nil {
		return nil, nil, err
	}
	res, err := OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}

	store := ledger.NewStore(res.Source, res.Writer, nil, ledger.Options{Now: a.now})
	if err := store.Initialize(principal); err != nil {
		_ = res.Close()
		return nil, nil, err
	}
	if err := store.Refresh(ctx); err != nil {
		_ = res.Close()
		return nil, nil, err
	}
	return store, res, nil
}
