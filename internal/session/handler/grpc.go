package handler

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	identityservice "blog-platform/backend/internal/identity/service"
	"blog-platform/backend/internal/platform/rpc"
	"blog-platform/backend/internal/server/interceptors"
	"blog-platform/backend/internal/session/domain"
	"blog-platform/backend/internal/session/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "blog.session.v1.SessionService"

// PublicMethods are the SessionService methods that authenticate with credentials or a refresh token instead of a bearer token.
var PublicMethods = []string{
	rpc.FullMethod(ServiceName, "Login"),
	rpc.FullMethod(ServiceName, "Refresh"),
	rpc.FullMethod(ServiceName, "Logout"),
}

// SessionServiceServer is the server API for SessionService.
type SessionServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogoutSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogoutOtherSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes SessionService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "Login", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(SessionServiceServer).Login(ctx, in)
		}),
		rpc.Unary(ServiceName, "Refresh", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(SessionServiceServer).Refresh(ctx, in)
		}),
		rpc.Unary(ServiceName, "Logout", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(SessionServiceServer).Logout(ctx, in)
		}),
		rpc.Unary(ServiceName, "LogoutSession", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(SessionServiceServer).LogoutSession(ctx, in)
		}),
		rpc.Unary(ServiceName, "LogoutOtherSessions", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(SessionServiceServer).LogoutOtherSessions(ctx, in)
		}),
		rpc.Unary(ServiceName, "ListSessions", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(SessionServiceServer).ListSessions(ctx, in)
		}),
	},
	Metadata: "blog/session/v1/session.proto",
}

// CredentialAuthenticator logs a user in with a login or email and password.
type CredentialAuthenticator interface {
	Login(ctx context.Context, loginOrEmail, password, ip, deviceLabel string) (*domain.TokenPair, error)
}

// Sessions is the session lifecycle used by the handler.
type Sessions interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Authenticate(ctx context.Context, refreshToken string) (userID, sessionID string, err error)
	Logout(ctx context.Context, sessionID, userID string) error
	LogoutAllOtherSessions(ctx context.Context, userID, keepSessionID string) (int64, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]domain.SessionView, error)
}

// Server implements SessionService.
type Server struct {
	auth     CredentialAuthenticator
	sessions Sessions
	log      *slog.Logger
}

// NewServer returns a new Session gRPC server. If auth or sessions is nil, the RPCs needing it return Unimplemented.
func NewServer(auth CredentialAuthenticator, sessions Sessions, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{auth: auth, sessions: sessions, log: log.With("component", "session_handler")}
}

// Login authenticates {login, password, device_label} and opens a session.
func (s *Server) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Login not implemented")
	}
	login, password := rpc.String(req, "login"), rpc.String(req, "password")
	if login == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "login and password are required")
	}
	pair, err := s.auth.Login(ctx, login, password, interceptors.ClientIP(ctx), rpc.String(req, "device_label"))
	if err != nil {
		return nil, s.toStatus(ctx, "Login", err)
	}
	return pairToStruct(pair)
}

// Refresh rotates {refresh_token} and returns the new pair.
func (s *Server) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
	}
	token := rpc.String(req, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token required")
	}
	pair, err := s.sessions.Refresh(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, "Refresh", err)
	}
	return pairToStruct(pair)
}

// Logout ends the session identified by {refresh_token}.
func (s *Server) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
	}
	token := rpc.String(req, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token required")
	}
	userID, sessionID, err := s.sessions.Authenticate(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, "Logout", err)
	}
	if err := s.sessions.Logout(ctx, sessionID, userID); err != nil {
		return nil, s.toStatus(ctx, "Logout", err)
	}
	return rpc.Empty(), nil
}

// LogoutSession ends {session_id}, which must belong to the caller.
func (s *Server) LogoutSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method LogoutSession not implemented")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	sessionID := rpc.String(req, "session_id")
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	if err := s.sessions.Logout(ctx, sessionID, userID); err != nil {
		return nil, s.toStatus(ctx, "LogoutSession", err)
	}
	return rpc.Empty(), nil
}

// LogoutOtherSessions ends every session of the caller except the one {refresh_token} belongs to.
func (s *Server) LogoutOtherSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method LogoutOtherSessions not implemented")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	token := rpc.String(req, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token required")
	}
	owner, keepID, err := s.sessions.Authenticate(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, "LogoutOtherSessions", err)
	}
	if owner != userID {
		return nil, status.Error(codes.PermissionDenied, "refresh token belongs to another user")
	}
	n, err := s.sessions.LogoutAllOtherSessions(ctx, userID, keepID)
	if err != nil {
		return nil, s.toStatus(ctx, "LogoutOtherSessions", err)
	}
	return structpb.NewStruct(map[string]interface{}{"deleted": float64(n)})
}

// ListSessions returns the caller's active sessions.
func (s *Server) ListSessions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	list, err := s.sessions.ListSessionsForUser(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, "ListSessions", err)
	}
	items := make([]interface{}, len(list))
	for i, v := range list {
		items[i] = map[string]interface{}{
			"session_id":     v.ID,
			"ip":             v.IP,
			"device_label":   v.DeviceLabel,
			"last_active_at": rpc.Timestamp(v.LastActiveAt),
			"expires_at":     rpc.Timestamp(v.ExpiresAt),
		}
	}
	return structpb.NewStruct(map[string]interface{}{"sessions": items})
}

// toStatus maps service errors to gRPC status. Causes of internal errors are logged, never returned.
func (s *Server) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, identityservice.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials or token")
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, "session belongs to another user")
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, "session not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		s.log.ErrorContext(ctx, "session rpc failed", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func pairToStruct(p *domain.TokenPair) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"session_id":         p.SessionID,
		"access_token":       p.AccessToken,
		"refresh_token":      p.RefreshToken,
		"refresh_expires_at": rpc.Timestamp(p.Refresh.ExpiresAt),
	})
}
