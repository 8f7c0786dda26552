// Package service implements account administration that crosses into the session lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"blog-platform/backend/internal/audit"
	auditdomain "blog-platform/backend/internal/audit/domain"
	"blog-platform/backend/internal/user/domain"
	"blog-platform/backend/internal/user/repository"
)

// ErrUserNotFound is returned when the target of a ban does not exist.
var ErrUserNotFound = errors.New("user not found")

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// BanService sets and clears account bans.
type BanService struct {
	users   repository.Repository
	revoker SessionRevoker
	audit   audit.AuditLogger
	log     *slog.Logger
	now     func() time.Time
}

// NewBanService returns a BanService. A nil auditLogger disables audit records.
func NewBanService(users repository.Repository, revoker SessionRevoker, auditLogger audit.AuditLogger, log *slog.Logger) *BanService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &BanService{
		users:   users,
		revoker: revoker,
		audit:   auditLogger,
		log:     log.With("component", "ban"),
		now:     time.Now,
	}
}

// SetBan records the ban state of userID and returns the number of sessions revoked.
// Unbanning an unbanned user is a no-op. Banning writes the flag first, so a concurrent
// credential login is refused, then ends every session of the user before returning.
// Banning an already banned user stores nothing but still revokes, so a retry after a
// failed revocation completes the ban.
func (s *BanService) SetBan(ctx context.Context, userID string, isBanned bool, reason string) (int64, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, ErrUserNotFound
	}

	if !isBanned {
		if !u.Ban.IsBanned {
			return 0, nil
		}
		if err := s.users.UpdateBan(ctx, userID, domain.BanInfo{}); err != nil {
			return 0, err
		}
		s.audit.LogEvent(ctx, userID, auditdomain.ActionUserUnbanned, "user", "")
		return 0, nil
	}

	if !u.Ban.IsBanned {
		now := s.now().UTC()
		if err := s.users.UpdateBan(ctx, userID, domain.BanInfo{IsBanned: true, BanDate: &now, BanReason: reason}); err != nil {
			return 0, err
		}
		s.audit.LogEvent(ctx, userID, auditdomain.ActionUserBanned, "user", reason)
	}
	n, err := s.revoker.RevokeAllForUser(ctx, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "revoke sessions after ban failed", "user_id", userID, "error", err)
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}
