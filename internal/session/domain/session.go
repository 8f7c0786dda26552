package domain

import "time"

// Session is the server-side record binding one device to its current refresh token.
type Session struct {
	ID               string
	UserID           string
	IP               string
	DeviceLabel      string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	TokenFingerprint string // SHA-256 of the current refresh token; never the raw token
}

// RefreshMeta is the part of an issued refresh token that a Session persists.
type RefreshMeta struct {
	Fingerprint string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Apply copies the rotating fields from m onto the session.
func (s *Session) Apply(m RefreshMeta) {
	s.TokenFingerprint = m.Fingerprint
	s.IssuedAt = m.IssuedAt
	s.ExpiresAt = m.ExpiresAt
}

// View returns the listing projection of the session.
func (s *Session) View() SessionView {
	return SessionView{
		ID:           s.ID,
		IP:           s.IP,
		DeviceLabel:  s.DeviceLabel,
		LastActiveAt: s.IssuedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

// SessionView is the read-only projection of a Session returned to its owner. It omits the fingerprint.
type SessionView struct {
	ID           string
	IP           string
	DeviceLabel  string
	LastActiveAt time.Time
	ExpiresAt    time.Time
}

// TokenPair is returned by login and refresh. It is never persisted.
type TokenPair struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	Refresh      RefreshMeta
}
