package interceptors

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary returns a unary server interceptor that writes one structured log line per RPC.
// Calls ending in Internal or Unknown are logged at error level, other failures at warn.
// skipMethods is the set of full method names to not log (e.g. health checks).
func LoggingUnary(log *slog.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "grpc")
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown:
			level = slog.LevelError
		default:
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ClientIP(ctx),
		}
		if userID, ok := GetUserID(ctx); ok {
			attrs = append(attrs, "user_id", userID)
		}
		log.Log(ctx, level, "grpc request", attrs...)
		return resp, err
	}
}
