package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/craftboard/platform/internal/api"
	"github.com/craftboard/platform/internal/api/admin"
	"github.com/craftboard/platform/internal/api/associations"
	"github.com/craftboard/platform/internal/api/audit"
	"github.com/craftboard/platform/internal/api/lists"
	"github.com/craftboard/platform/internal/api/pipelines"
	"github.com/craftboard/platform/internal/api/records"
	"github.com/craftboard/platform/internal/api/schemas"
	"github.com/craftboard/platform/internal/config"
	"github.com/craftboard/platform/internal/database"
	"github.com/craftboard/platform/internal/maintenance"
	"github.com/craftboard/platform/internal/seed"
	"github.com/craftboard/platform/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "platformd",
		Short:         "Multi-tenant object platform server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), sweepCmd(), partitionsCmd())

	if err := root.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// openDatabase opens the configured database and brings the schema current.
func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := database.OpenWith(cfg.DBPath, database.Options{BusyTimeout: cfg.DBBusyTimeout})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := seed.Seed(ctx, db); err != nil {
				return fmt.Errorf("seed data: %w", err)
			}

			s := store.New(db)

			go maintenance.NewRunner(db, s.Counters, cfg.SweepInterval, cfg.AuditRetentionMonths).Run(ctx)

			mux := http.NewServeMux()
			records.RegisterRoutes(mux, s)
			schemas.RegisterRoutes(mux, s.Registry)
			associations.RegisterRoutes(mux, s)
			pipelines.RegisterRoutes(mux, s)
			lists.RegisterRoutes(mux, s)
			audit.RegisterRoutes(mux, s)
			admin.RegisterRoutes(mux, s, cfg.AuditRetentionMonths)

			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
					fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
					api.CorrelationID(r.Context()),
				))
			})

			handler := api.Chain(mux,
				api.Recovery(),
				api.RequestID(),
				api.Auth(cfg.AuthToken),
				api.TenantContext(),
				api.JSONContentType(),
				api.Logging(),
			)

			srv := &http.Server{
				Addr:         cfg.Addr,
				Handler:      handler,
				ReadTimeout:  cfg.RequestTimeout,
				WriteTimeout: cfg.BulkTimeout,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				slog.Info("shutting down server")
				cancel()
				if err := srv.Shutdown(context.Background()); err != nil {
					slog.Error("server shutdown error", "error", err)
				}
			}()

			slog.Info("starting platform server", "addr", cfg.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			slog.Info("migrations applied", "db", cfg.DBPath)
			return nil
		},
	}
}

func partitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "partitions",
		Short: "Rotate audit partitions (create current and next, drop expired) and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := database.MaintainAuditPartitions(cmd.Context(), db, time.Now().UTC(), cfg.AuditRetentionMonths); err != nil {
				return err
			}
			slog.Info("audit partitions maintained", "retention_months", cfg.AuditRetentionMonths)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance pass (counters and audit partitions) and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			s := store.New(db)
			r := maintenance.NewRunner(db, s.Counters, cfg.SweepInterval, cfg.AuditRetentionMonths)
			if err := r.RunOnce(cmd.Context()); err != nil {
				return err
			}
			slog.Info("maintenance pass complete")
			return nil
		},
	}
}
