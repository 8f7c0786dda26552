// server runs the session gRPC API: credential login, refresh-token rotation, logout and admin bans.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	adminhandler "blog-platform/backend/internal/admin/handler"
	"blog-platform/backend/internal/audit"
	auditrepo "blog-platform/backend/internal/audit/repository"
	"blog-platform/backend/internal/config"
	"blog-platform/backend/internal/db"
	healthhandler "blog-platform/backend/internal/health/handler"
	identityservice "blog-platform/backend/internal/identity/service"
	"blog-platform/backend/internal/logging"
	revocationrepo "blog-platform/backend/internal/revocation/repository"
	"blog-platform/backend/internal/security"
	"blog-platform/backend/internal/server"
	"blog-platform/backend/internal/server/interceptors"
	sessionhandler "blog-platform/backend/internal/session/handler"
	sessionrepo "blog-platform/backend/internal/session/repository"
	sessionservice "blog-platform/backend/internal/session/service"
	"blog-platform/backend/internal/telemetry"
	telemetryotel "blog-platform/backend/internal/telemetry/otel"
	userrepo "blog-platform/backend/internal/user/repository"
	userservice "blog-platform/backend/internal/user/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.Format(), os.Stderr)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	if err := server.CheckContracts(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	codec, err := security.NewTokenCodec([]byte(cfg.JWTAccessSecret), []byte(cfg.JWTRefreshSecret), cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return err
	}

	users := userrepo.NewPostgresRepository(conn)
	audits := auditrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(audits, interceptors.ClientIP, log)

	manager := sessionservice.NewManager(
		sessionrepo.NewPostgresRepository(conn),
		revocationrepo.NewPostgresRepository(conn),
		codec,
		sessionservice.WithLogger(log),
		sessionservice.WithAuditLogger(auditLogger),
		sessionservice.WithEventEmitter(telemetryotel.NewEventEmitter(providers.LoggerProvider)),
	)
	authSvc := identityservice.NewAuthService(users, manager, security.NewPasswordHasher(cfg.BcryptCost), auditLogger, log)
	banSvc := userservice.NewBanService(users, manager, auditLogger, log)

	hs := health.NewServer()
	go healthhandler.NewChecker(hs, conn, log, sessionhandler.ServiceName, adminhandler.ServiceName).Run(ctx, 15*time.Second)

	s := server.NewGRPCServer(server.Options{
		Verifier:      codec,
		AuditLogger:   auditLogger,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		Log:           log,
	})
	server.RegisterServices(s, server.Deps{
		Auth:        authSvc,
		Sessions:    manager,
		Bans:        banSvc,
		AuditReader: audits,
		Health:      hs,
		Log:         log,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down gRPC server...")
	hs.Shutdown()
	s.GracefulStop()
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", "error", err)
	}
	log.Info("gRPC server stopped")
	return nil
}
