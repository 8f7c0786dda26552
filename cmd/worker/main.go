// Worker deletes expired sessions and revoked-token entries on a fixed interval.
// Set DATABASE_URL and optionally SWEEP_INTERVAL (default 1h).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"blog-platform/backend/internal/config"
	"blog-platform/backend/internal/db"
	"blog-platform/backend/internal/logging"
	revocationrepo "blog-platform/backend/internal/revocation/repository"
	sessionrepo "blog-platform/backend/internal/session/repository"
	"blog-platform/backend/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.Format(), os.Stderr).With("service", "worker")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("worker: database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	s := sweeper.New(
		sessionrepo.NewPostgresRepository(conn),
		revocationrepo.NewPostgresRepository(conn),
		sweeper.WithLogger(log),
	)
	log.Info("worker: sweeping expired sessions", "interval", cfg.SweepEvery())
	s.Run(ctx, cfg.SweepEvery())
}
