package repository

import (
	"context"
	"time"

	"blog-platform/backend/internal/revocation/domain"
)

// Repository is the persistent set of revoked refresh-token fingerprints.
// It knows nothing about sessions; callers supply the fingerprints to revoke.
type Repository interface {
	// Revoke records e; revoking an already revoked fingerprint succeeds.
	Revoke(ctx context.Context, e *domain.Entry) error
	IsRevoked(ctx context.Context, fingerprint string) (bool, error)
	// RevokeAllForUser records every entry in one statement and returns how many were new.
	RevokeAllForUser(ctx context.Context, userID string, entries []*domain.Entry) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
