package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ringer-im/server/internal/config"
	"github.com/ringer-im/server/internal/server"
	"github.com/ringer-im/server/internal/store"
	"github.com/ringer-im/server/shared/backoff"
	"github.com/ringer-im/server/shared/db"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the messaging server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg := config.Load()

	var pool *pgxpool.Pool
	err := backoff.Retry(ctx, backoff.Quick, func(ctx context.Context, attempt int) error {
		var err error
		pool, err = db.Connect(ctx, db.Config{URL: cfg.Database.URL})
		if err != nil {
			slog.Warn("db: connect failed, retrying", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}

	st := store.New(pool)
	defer st.Close()

	srv := server.New(cfg, st, version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("server: shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server: stopped")
	return nil
}
