package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"billtrack/internal/cache"
	apphttp "billtrack/internal/http"
	"billtrack/internal/ledger"
	"billtrack/internal/log"
	"billtrack/internal/report/csv"
	"billtrack/internal/report/xlsx"
	"billtrack/internal/services"
)

// cacheSweepInterval is how often expired dashboards are dropped.
const cacheSweepInterval = time.Minute

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(parent context.Context, a *app) error {
	ctx, stop := GracefulShutdown(parent, a.logger)
	defer stop()

	cfg := a.cfg
	res, err := OpenBackend(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			a.logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	exporter, err := SheetExporter(ctx, cfg)
	if err != nil {
		return err
	}

	sessions := services.NewSessions(res.Source, res.Writer, res.Feed, ledger.Options{Now: a.now})
	defer sessions.Close()

	dashboards := cache.NewLRUCache[services.Dashboard](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	manager := cache.NewManager()
	manager.Register(dashboards)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sessions:   sessions,
		Dashboards: services.NewDashboardService(dashboards, a.now),
		Reports:    services.NewReportService(a.now, exporter, xlsx.New(cfg.CurrencySymbol), csv.New()),
		Location:   cfg.Location(),
		WeekStart:  cfg.FirstWeekday(),
		Now:        a.now,
	}, apphttp.Options{
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             a.logger.WithComponent(log.ComponentHTTP),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting billtrack server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"feed", res.FeedKind,
			"sheets_export", exporter != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		manager.StartCleanup(cacheSweepInterval)
		<-gctx.Done()
		manager.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("Server stopped gracefully")
	return nil
}
