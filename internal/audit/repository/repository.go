package repository

import (
	"context"

	"blog-platform/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int32) ([]*domain.AuditLog, error)
}
