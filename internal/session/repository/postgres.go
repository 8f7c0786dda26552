package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"blog-platform/backend/internal/platform/storage"
	"blog-platform/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, ip_address, device_label, issued_at, expires_at, token_fingerprint`

// PostgresRepository stores sessions in the sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts s. A duplicate id is reported as storage.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID,
		sql.NullString{String: s.IP, Valid: s.IP != ""},
		sql.NullString{String: s.DeviceLabel, Valid: s.DeviceLabel != ""},
		s.IssuedAt, s.ExpiresAt, s.TokenFingerprint,
	)
	return storage.Wrap("sessions.Create", err)
}

// GetByID returns the session for id, or storage.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.Wrap("sessions.GetByID", err)
	}
	return s, nil
}

// ListByUser returns every session of userID, most recently issued first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, storage.Wrap("sessions.ListByUser", err)
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, storage.Wrap("sessions.ListByUser", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("sessions.ListByUser", err)
	}
	return out, nil
}

// UpdateRotation swaps the fingerprint and validity window in one conditional update.
func (r *PostgresRepository) UpdateRotation(ctx context.Context, id, prevFingerprint string, meta domain.RefreshMeta) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET token_fingerprint = $3, issued_at = $4, expires_at = $5 WHERE id = $1 AND token_fingerprint = $2`,
		id, prevFingerprint, meta.Fingerprint, meta.IssuedAt, meta.ExpiresAt,
	)
	if err != nil {
		return storage.Wrap("sessions.UpdateRotation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Wrap("sessions.UpdateRotation", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return storage.Wrap("sessions.UpdateRotation", err)
	}
	if exists {
		return storage.ErrStale
	}
	return storage.ErrNotFound
}

// Delete removes the session with the given id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	n, err := r.exec(ctx, "sessions.Delete", `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteAllForUser removes every session of userID and returns how many were removed.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, "sessions.DeleteAllForUser", `DELETE FROM sessions WHERE user_id = $1`, userID)
}

// DeleteAllExceptCurrent removes every session of userID other than keepID.
func (r *PostgresRepository) DeleteAllExceptCurrent(ctx context.Context, userID, keepID string) (int64, error) {
	return r.exec(ctx, "sessions.DeleteAllExceptCurrent", `DELETE FROM sessions WHERE user_id = $1 AND id <> $2`, userID, keepID)
}

// DeleteExpired removes sessions whose refresh token expired before the given instant.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return r.exec(ctx, "sessions.DeleteExpired", `DELETE FROM sessions WHERE expires_at < $1`, before)
}

func (r *PostgresRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storage.Wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storage.Wrap(op, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		s          domain.Session
		ip, device sql.NullString
	)
	if err := row.Scan(&s.ID, &s.UserID, &ip, &device, &s.IssuedAt, &s.ExpiresAt, &s.TokenFingerprint); err != nil {
		return nil, err
	}
	s.IP = ip.String
	s.DeviceLabel = device.String
	return &s, nil
}
