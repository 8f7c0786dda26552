// seed inserts a development user for local testing.
// Idempotent: skips the insert if the dev user already exists.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"blog-platform/backend/internal/config"
	"blog-platform/backend/internal/db"
	identityservice "blog-platform/backend/internal/identity/service"
	"blog-platform/backend/internal/logging"
	"blog-platform/backend/internal/security"
	userrepo "blog-platform/backend/internal/user/repository"
)

const (
	devLogin    = "dev"
	devEmail    = "dev@example.com"
	devPassword = "password123"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.Format(), os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("seed: database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Registration does not open sessions, so no session manager is needed.
	auth := identityservice.NewAuthService(userrepo.NewPostgresRepository(conn), nil, security.NewPasswordHasher(cfg.BcryptCost), nil, log)
	id, err := auth.Register(ctx, devLogin, devEmail, devPassword)
	switch {
	case errors.Is(err, identityservice.ErrAlreadyRegistered):
		log.Info("seed: dev user already exists; skipping", "login", devLogin)
	case err != nil:
		log.Error("seed: register dev user", "error", err)
		os.Exit(1)
	default:
		log.Info("seed: created dev user", "user_id", id, "login", devLogin, "password", devPassword)
	}
}
