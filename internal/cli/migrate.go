package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"billtrack/internal/backend"
	"billtrack/internal/log"
	"billtrack/internal/storage"
	"billtrack/internal/storage/postgres"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			switch backend.BackendType(a.cfg.DataBackend) {
			case backend.SQLiteBackend:
				err = storage.RunMigrations(a.cfg.SQLiteDBPath)
			case backend.PostgresBackend:
				err = postgres.RunMigrations(a.cfg.PostgresURL)
			default:
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Backend %s has no schema\n", a.cfg.DataBackend)
				return err
			}
			if err != nil {
				return err
			}

			a.logger.Info("Migrations applied",
				log.FieldOperation, log.OpMigrate,
				log.FieldBackend, a.cfg.DataBackend)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied to %s\n", a.cfg.DataBackend)
			return err
		},
	}
}
