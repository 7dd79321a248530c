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

	"github.com/KareemA-Saad/Meem-Market/internal/api"
	"github.com/KareemA-Saad/Meem-Market/internal/authz"
	"github.com/KareemA-Saad/Meem-Market/internal/config"
	"github.com/KareemA-Saad/Meem-Market/internal/db"
	"github.com/KareemA-Saad/Meem-Market/internal/media"
	"github.com/KareemA-Saad/Meem-Market/internal/observability"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

// services is everything built on top of an open database.
type services struct {
	db      *sql.DB
	options *options.Service
	metrics *observability.Metrics
	authz   *authz.Engine
}

// openServices opens and migrates the database and wires the core services.
func openServices(path string) (*services, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	opts := options.New(database)
	metrics := observability.NewMetrics()
	return &services{
		db:      database,
		options: opts,
		metrics: metrics,
		authz:   authz.NewEngine(authz.NewSQLStore(database, opts), metrics),
	}, nil
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr, adminUser string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closeLog, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer closeLog()
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg, adminUser)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides MEEM_ADDR)")
	cmd.Flags().StringVarP(&adminUser, "user", "u", "admin", "admin login created on first run")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, adminUser string) error {
	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		password, err := initDatabase(ctx, cfg.DB, adminUser, "")
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		printInitResult(cfg.DB, adminUser, password)
		fmt.Println()
	}

	svc, err := openServices(cfg.DB)
	if err != nil {
		return err
	}
	defer svc.db.Close()
	slog.Info("database ready", "path", cfg.DB)

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, svc.db)
	if err != nil {
		return err
	}
	if n, err := store.PurgeRevokedTokens(ctx, svc.db, time.Now()); err != nil {
		slog.Warn("purging revoked tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged expired revoked tokens", "count", n)
	}

	storage, err := media.NewLocalStorage(cfg.UploadsDir, cfg.PublicURL)
	if err != nil {
		return err
	}
	manager := media.NewManager(svc.db, storage, svc.options, svc.metrics, slog.Default())

	handler := api.NewRouter(api.Deps{
		DB:             svc.db,
		JWTSecret:      jwtSecret,
		Authz:          svc.authz,
		Options:        svc.options,
		Media:          manager,
		Metrics:        svc.metrics,
		UploadsDir:     cfg.UploadsDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		LoginRate:      cfg.LoginRate,
		RequestTimeout: cfg.RequestTimeout,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}

	slog.Info("server stopped, closing database")
	return nil
}
