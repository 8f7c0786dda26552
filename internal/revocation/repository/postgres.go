package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"blog-platform/backend/internal/platform/storage"
	"blog-platform/backend/internal/revocation/domain"
)

// PostgresRepository stores revocation entries in the revoked_tokens table, keyed by fingerprint.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a revocation repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertRevoked = `INSERT INTO revoked_tokens (fingerprint, user_id, reason, expires_at, revoked_at) VALUES `

// Revoke inserts e unless its fingerprint is already present.
func (r *PostgresRepository) Revoke(ctx context.Context, e *domain.Entry) error {
	_, err := r.db.ExecContext(ctx,
		insertRevoked+`($1, $2, $3, $4, $5) ON CONFLICT (fingerprint) DO NOTHING`,
		e.Fingerprint, e.UserID, string(e.Reason), e.ExpiresAt, e.RevokedAt,
	)
	return storage.Wrap("revocations.Revoke", err)
}

// IsRevoked reports whether fingerprint has been revoked.
func (r *PostgresRepository) IsRevoked(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE fingerprint = $1)`, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, storage.Wrap("revocations.IsRevoked", err)
	}
	return exists, nil
}

// RevokeAllForUser inserts entries for userID as one multi-row statement.
// Entries whose UserID differs from userID are rejected.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, entries []*domain.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	var (
		b    strings.Builder
		args = make([]any, 0, len(entries)*5)
	)
	b.WriteString(insertRevoked)
	for i, e := range entries {
		if e.UserID != userID {
			return 0, fmt.Errorf("revocations.RevokeAllForUser: entry for user %q in batch for %q", e.UserID, userID)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 5
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, e.Fingerprint, e.UserID, string(e.Reason), e.ExpiresAt, e.RevokedAt)
	}
	b.WriteString(` ON CONFLICT (fingerprint) DO NOTHING`)

	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, storage.Wrap("revocations.RevokeAllForUser", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storage.Wrap("revocations.RevokeAllForUser", err)
	}
	return int(n), nil
}

// DeleteExpired removes entries whose token expired before the given instant.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, storage.Wrap("revocations.DeleteExpired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storage.Wrap("revocations.DeleteExpired", err)
	}
	return n, nil
}
