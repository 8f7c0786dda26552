package domain

import "time"

// Actions recorded by the session subsystem.
const (
	ActionLogin          = "login"
	ActionLoginFailure   = "login_failure"
	ActionLogout         = "logout"
	ActionLogoutOthers   = "logout_others"
	ActionRefreshReuse   = "refresh_reuse"
	ActionSessionsRevoke = "sessions_revoked"
	ActionUserBanned     = "user_banned"
	ActionUserUnbanned   = "user_unbanned"
)

// AuditLog represents an audit event.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
