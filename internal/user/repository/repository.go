package repository

import (
	"context"

	"blog-platform/backend/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) when no user matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByLoginOrEmail matches loginOrEmail against either column.
	GetByLoginOrEmail(ctx context.Context, loginOrEmail string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateBan(ctx context.Context, userID string, ban domain.BanInfo) error
}
