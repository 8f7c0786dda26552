package repository

import (
	"context"
	"time"

	"blog-platform/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Every mutation is a single statement.
// Lookups and mutations of a missing row return storage.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// UpdateRotation replaces the rotating fields only while the row still holds prevFingerprint.
	// It returns storage.ErrStale when the row exists with a different fingerprint.
	UpdateRotation(ctx context.Context, id, prevFingerprint string, meta domain.RefreshMeta) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteAllExceptCurrent(ctx context.Context, userID, keepID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
