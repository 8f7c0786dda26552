package telemetry

import (
	"context"

	"blog-platform/backend/internal/telemetry/domain"
)

// EventEmitter exports security events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.SecurityEvent) error
}
