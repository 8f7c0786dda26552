package repository

import (
	"context"
	"database/sql"
	"errors"

	"blog-platform/backend/internal/platform/storage"
	"blog-platform/backend/internal/user/domain"
)

const userColumns = `id, login, email, password_hash, created_at, is_banned, ban_date, ban_reason`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "users.GetByID", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByLoginOrEmail returns the user whose login or email equals loginOrEmail, or nil if not found.
func (r *PostgresRepository) GetByLoginOrEmail(ctx context.Context, loginOrEmail string) (*domain.User, error) {
	return r.getOne(ctx, "users.GetByLoginOrEmail",
		`SELECT `+userColumns+` FROM users WHERE login = $1 OR lower(email) = lower($1) LIMIT 1`, loginOrEmail)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Login, u.Email, u.PasswordHash, u.CreatedAt,
		u.Ban.IsBanned, nullTime(u.Ban), sql.NullString{String: u.Ban.BanReason, Valid: u.Ban.BanReason != ""},
	)
	return storage.Wrap("users.Create", err)
}

// UpdateBan overwrites the ban columns of userID. Returns storage.ErrNotFound when no row matched.
func (r *PostgresRepository) UpdateBan(ctx context.Context, userID string, ban domain.BanInfo) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_banned = $2, ban_date = $3, ban_reason = $4 WHERE id = $1`,
		userID, ban.IsBanned, nullTime(ban), sql.NullString{String: ban.BanReason, Valid: ban.BanReason != ""},
	)
	if err != nil {
		return storage.Wrap("users.UpdateBan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Wrap("users.UpdateBan", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, op, query string, arg string) (*domain.User, error) {
	var (
		u       domain.User
		banDate sql.NullTime
		reason  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Login, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.Ban.IsBanned, &banDate, &reason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Wrap(op, err)
	}
	if banDate.Valid {
		t := banDate.Time
		u.Ban.BanDate = &t
	}
	u.Ban.BanReason = reason.String
	return &u, nil
}

func nullTime(b domain.BanInfo) sql.NullTime {
	if b.BanDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *b.BanDate, Valid: true}
}
