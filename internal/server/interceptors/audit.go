package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"blog-platform/backend/internal/audit"
)

// AuditUnary records an audit event for each authenticated RPC after it completes.
// Methods in skipMethods are not recorded; services that audit their own mutations list them there.
// A failed call is recorded with its gRPC code as metadata.
func AuditUnary(auditLogger audit.AuditLogger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		if userID, ok := GetUserID(ctx); ok {
			ev := audit.FromFullMethod(info.FullMethod)
			var meta string
			if err != nil {
				meta = "code=" + status.Code(err).String()
			}
			auditLogger.LogEvent(ctx, userID, ev.Action, ev.Resource, meta)
		}
		return resp, err
	}
}

// ClientIP returns the caller's address. The first x-forwarded-for hop wins, then x-real-ip,
// then the transport peer. It returns "unknown" when none is available.
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
