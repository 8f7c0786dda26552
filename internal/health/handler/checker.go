package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether a dependency is reachable (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker drives the standard grpc.health.v1 service from a readiness probe of the database.
type Checker struct {
	srv      *health.Server
	pinger   Pinger
	services []string
	log      *slog.Logger
}

// NewChecker returns a Checker that reports status for the overall server and the named services.
// If pinger is nil every check reports SERVING.
func NewChecker(srv *health.Server, pinger Pinger, log *slog.Logger, services ...string) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{srv: srv, pinger: pinger, services: services, log: log.With("component", "health")}
}

// Check pings the database once and publishes the result.
func (c *Checker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if c.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			c.log.WarnContext(ctx, "database ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	c.srv.SetServingStatus("", st)
	for _, name := range c.services {
		c.srv.SetServingStatus(name, st)
	}
	return st
}

// Run checks immediately and then every interval until ctx is done.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}
