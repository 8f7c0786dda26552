package handler

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	auditdomain "blog-platform/backend/internal/audit/domain"
	"blog-platform/backend/internal/platform/rpc"
	"blog-platform/backend/internal/server/interceptors"
	userservice "blog-platform/backend/internal/user/service"
)

// ServiceName is the fully qualified gRPC service name. Every method requires admin credentials.
const ServiceName = "blog.admin.v1.AdminService"

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AdminServiceServer is the server API for AdminService.
type AdminServiceServer interface {
	BanUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAuditEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes AdminService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "BanUser", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AdminServiceServer).BanUser(ctx, in)
		}),
		rpc.Unary(ServiceName, "ListAuditEvents", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AdminServiceServer).ListAuditEvents(ctx, in)
		}),
	},
	Metadata: "blog/admin/v1/admin.proto",
}

// Banner sets or clears a user's ban.
type Banner interface {
	SetBan(ctx context.Context, userID string, isBanned bool, reason string) (int64, error)
}

// AuditReader lists audit events of a user.
type AuditReader interface {
	ListByUser(ctx context.Context, userID string, limit int32) ([]*auditdomain.AuditLog, error)
}

// Server implements AdminService for platform administrators.
type Server struct {
	bans  Banner
	audit AuditReader
	log   *slog.Logger
}

// NewServer returns a new Admin gRPC server. If a dependency is nil, the RPCs needing it return Unimplemented.
func NewServer(bans Banner, audit AuditReader, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{bans: bans, audit: audit, log: log.With("component", "admin_handler")}
}

// BanUser sets {user_id, is_banned, ban_reason}. Banning ends all of the user's sessions.
func (s *Server) BanUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.bans == nil {
		return nil, status.Error(codes.Unimplemented, "method BanUser not implemented")
	}
	if _, ok := interceptors.GetAdmin(ctx); !ok {
		return nil, status.Error(codes.PermissionDenied, "admin credentials required")
	}
	userID := rpc.String(req, "user_id")
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	banned := rpc.Bool(req, "is_banned")
	n, err := s.bans.SetBan(ctx, userID, banned, rpc.String(req, "ban_reason"))
	if err != nil {
		if errors.Is(err, userservice.ErrUserNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		s.log.ErrorContext(ctx, "ban user failed", "user_id", userID, "is_banned", banned, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return structpb.NewStruct(map[string]interface{}{"revoked_sessions": float64(n)})
}

// ListAuditEvents returns the latest audit events of {user_id}, at most {limit}.
func (s *Server) ListAuditEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.audit == nil {
		return nil, status.Error(codes.Unimplemented, "method ListAuditEvents not implemented")
	}
	if _, ok := interceptors.GetAdmin(ctx); !ok {
		return nil, status.Error(codes.PermissionDenied, "admin credentials required")
	}
	userID := rpc.String(req, "user_id")
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	limit := rpc.Int(req, "limit")
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	list, err := s.audit.ListByUser(ctx, userID, int32(limit))
	if err != nil {
		s.log.ErrorContext(ctx, "list audit events failed", "user_id", userID, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	events := make([]interface{}, len(list))
	for i, a := range list {
		events[i] = map[string]interface{}{
			"id":         a.ID,
			"action":     a.Action,
			"resource":   a.Resource,
			"ip":         a.IP,
			"metadata":   a.Metadata,
			"created_at": rpc.Timestamp(a.CreatedAt),
		}
	}
	return structpb.NewStruct(map[string]interface{}{"events": events})
}
