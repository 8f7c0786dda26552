package repository

import (
	"context"
	"database/sql"

	"blog-platform/backend/internal/audit/domain"
	"blog-platform/backend/internal/platform/storage"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID,
		sql.NullString{String: a.UserID, Valid: a.UserID != ""},
		a.Action, a.Resource, a.IP,
		sql.NullString{String: a.Metadata, Valid: a.Metadata != ""},
		a.CreatedAt,
	)
	return storage.Wrap("audit.Create", err)
}

// ListByUser returns the newest audit logs for userID, at most limit entries.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int32) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, resource, ip, metadata, created_at FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, storage.Wrap("audit.ListByUser", err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a         domain.AuditLog
			uid, meta sql.NullString
		)
		if err := rows.Scan(&a.ID, &uid, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, storage.Wrap("audit.ListByUser", err)
		}
		a.UserID = uid.String
		a.Metadata = meta.String
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("audit.ListByUser", err)
	}
	return out, nil
}
