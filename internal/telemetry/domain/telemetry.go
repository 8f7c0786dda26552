package domain

import "time"

// Event types emitted by the session subsystem.
const (
	EventRefreshReuse  = "refresh_reuse_detected"
	EventUserRevoked   = "user_sessions_revoked"
	EventReconcileNeed = "session_reconcile_required"
)

// SecurityEvent is a security-relevant occurrence exported as an OTel log record.
type SecurityEvent struct {
	Type      string
	UserID    string
	SessionID string
	Detail    string
	Count     int
	At        time.Time
}
