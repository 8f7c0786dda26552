// migrate applies or rolls back the embedded schema migrations.
//
//	go run ./cmd/migrate -direction up
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"blog-platform/backend/internal/config"
	"blog-platform/backend/internal/db/migrate"
	"blog-platform/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "up or down")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.Format(), os.Stderr).With("service", "migrate")

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		log.Error("migration failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
	latest, err := migrate.LatestVersion()
	if err != nil {
		log.Warn("read embedded versions", "error", err)
	}
	log.Info("migrations applied", "direction", *direction, "latest_embedded", latest)
}
