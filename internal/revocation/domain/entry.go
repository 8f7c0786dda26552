package domain

import "time"

// Reason records why a refresh-token fingerprint was revoked.
type Reason string

const (
	ReasonRotated      Reason = "rotated"
	ReasonLogout       Reason = "logout"
	ReasonLogoutOthers Reason = "logout_others"
	ReasonReuse        Reason = "reuse"
	ReasonBan          Reason = "ban"
)

// Entry is one revoked refresh-token fingerprint. Entries are never updated; they may be
// deleted once ExpiresAt has passed, since the token no longer verifies by then.
type Entry struct {
	Fingerprint string
	UserID      string
	Reason      Reason
	ExpiresAt   time.Time
	RevokedAt   time.Time
}
