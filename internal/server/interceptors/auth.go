package interceptors

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"blog-platform/backend/internal/security"
)

const (
	bearerPrefix = "bearer "
	basicPrefix  = "basic "
)

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	Verify(token string, kind security.TokenKind) (*security.Claims, bool)
}

// AuthUnary returns a unary server interceptor that validates the Bearer (access) token
// from gRPC metadata and sets user_id in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. SessionService Login, Refresh, Logout; AdminService methods, which use AdminUnary).
func AuthUnary(verifier AccessVerifier, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		token := extractCredential(ctx, bearerPrefix)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		claims, ok := verifier.Verify(token, security.KindAccess)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		return handler(WithIdentity(ctx, claims.UserID()), req)
	}
}

// AdminUnary returns a unary server interceptor that requires HTTP basic credentials matching
// username and password on every method whose full name starts with servicePrefix.
// An empty password disables the admin surface entirely.
func AdminUnary(username, password, servicePrefix string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !strings.HasPrefix(info.FullMethod, servicePrefix) {
			return handler(ctx, req)
		}
		if password == "" {
			return nil, status.Error(codes.PermissionDenied, "admin access is disabled")
		}
		user, pass, ok := parseBasic(extractCredential(ctx, basicPrefix))
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid admin credentials")
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !userOK || !passOK {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid admin credentials")
		}
		return handler(WithAdmin(ctx, user), req)
	}
}

// extractCredential returns the authorization value after prefix (case-insensitive), or "" if missing or malformed.
func extractCredential(ctx context.Context, prefix string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}

func parseBasic(encoded string) (user, pass string, ok bool) {
	if encoded == "" {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(raw), ":")
}
