package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	adminhandler "blog-platform/backend/internal/admin/handler"
	"blog-platform/backend/internal/audit"
	"blog-platform/backend/internal/platform/rpc"
	"blog-platform/backend/internal/server/interceptors"
	sessionhandler "blog-platform/backend/internal/session/handler"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps holds service dependencies for gRPC handlers.
type Deps struct {
	// Auth handles credential login. If nil, Login returns Unimplemented.
	Auth sessionhandler.CredentialAuthenticator
	// Sessions is the session manager. If nil, the other SessionService RPCs return Unimplemented.
	Sessions sessionhandler.Sessions
	// Bans is the ban service behind AdminService.BanUser.
	Bans adminhandler.Banner
	// AuditReader backs AdminService.ListAuditEvents.
	AuditReader adminhandler.AuditReader
	// Health is the grpc.health.v1 server. If nil, it is not registered.
	Health *health.Server
	Log    *slog.Logger
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - blog.session.v1.SessionService → internal/session/handler
//   - blog.admin.v1.AdminService     → internal/admin/handler
//   - grpc.health.v1.Health          → google.golang.org/grpc/health, driven by internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	s.RegisterService(&sessionhandler.ServiceDesc, sessionhandler.NewServer(deps.Auth, deps.Sessions, deps.Log))
	s.RegisterService(&adminhandler.ServiceDesc, adminhandler.NewServer(deps.Bans, deps.AuditReader, deps.Log))
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}

// CheckContracts verifies that every registered service matches its definition under api/proto.
func CheckContracts() error {
	for _, desc := range []*grpc.ServiceDesc{&sessionhandler.ServiceDesc, &adminhandler.ServiceDesc} {
		if err := rpc.CheckContract(desc); err != nil {
			return err
		}
	}
	return nil
}

// Options configures the interceptor chain of the gRPC server.
type Options struct {
	Verifier      interceptors.AccessVerifier
	AuditLogger   audit.AuditLogger
	AdminUsername string
	AdminPassword string
	Log           *slog.Logger
}

// PublicMethods returns the full method names that skip bearer authentication.
// Admin methods are listed because they authenticate with basic credentials instead.
func PublicMethods() map[string]bool {
	m := map[string]bool{healthCheckMethod: true}
	for _, name := range sessionhandler.PublicMethods {
		m[name] = true
	}
	for _, md := range adminhandler.ServiceDesc.Methods {
		m[rpc.FullMethod(adminhandler.ServiceName, md.MethodName)] = true
	}
	return m
}

// auditSkipMethods are the RPCs whose services record their own audit events.
func auditSkipMethods() map[string]bool {
	m := PublicMethods()
	m[rpc.FullMethod(sessionhandler.ServiceName, "LogoutSession")] = true
	m[rpc.FullMethod(sessionhandler.ServiceName, "LogoutOtherSessions")] = true
	return m
}

// NewGRPCServer returns a gRPC server instrumented with OpenTelemetry and the interceptor chain:
// request logging, admin basic auth, bearer auth, audit.
func NewGRPCServer(opts Options, extra ...grpc.ServerOption) *grpc.Server {
	auditLogger := opts.AuditLogger
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	serverOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(opts.Log, map[string]bool{healthCheckMethod: true}),
			interceptors.AdminUnary(opts.AdminUsername, opts.AdminPassword, "/"+adminhandler.ServiceName+"/"),
			interceptors.AuthUnary(opts.Verifier, PublicMethods()),
			interceptors.AuditUnary(auditLogger, auditSkipMethods()),
		),
	}
	return grpc.NewServer(append(serverOpts, extra...)...)
}
