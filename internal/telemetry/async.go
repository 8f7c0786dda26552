package telemetry

import (
	"context"
	"log/slog"
	"time"

	"blog-platform/backend/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after gRPC GracefulStop before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with its own timeout so the caller is not blocked.
// The request context is not used for the emit: a cancelled request must still report its security events.
func EmitAsync(emitter EventEmitter, event *domain.SecurityEvent) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(ctx, event); err != nil {
			slog.Warn("telemetry: async emit failed", "event", event.Type, "error", err)
		}
	}()
}
