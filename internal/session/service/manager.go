// Package service implements the session lifecycle: login, refresh-token rotation with
// reuse detection, logout of one or all other devices, and mass revocation of a user's sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"blog-platform/backend/internal/audit"
	auditdomain "blog-platform/backend/internal/audit/domain"
	"blog-platform/backend/internal/platform/storage"
	revdomain "blog-platform/backend/internal/revocation/domain"
	"blog-platform/backend/internal/security"
	"blog-platform/backend/internal/session/domain"
	"blog-platform/backend/internal/telemetry"
	teldomain "blog-platform/backend/internal/telemetry/domain"
)

// Sentinel errors; the handler maps them to gRPC codes. Every refresh-token failure
// (bad signature, expiry, revoked, stale) is reported as ErrUnauthorized.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("session belongs to another user")
	ErrNotFound     = errors.New("session not found")
)

const tracerName = "blog-platform/backend/internal/session/service"

// SessionStore is the session persistence the manager needs.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	UpdateRotation(ctx context.Context, id, prevFingerprint string, meta domain.RefreshMeta) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteAllExceptCurrent(ctx context.Context, userID, keepID string) (int64, error)
}

// RevocationList is the revoked-fingerprint persistence the manager needs.
type RevocationList interface {
	Revoke(ctx context.Context, e *revdomain.Entry) error
	IsRevoked(ctx context.Context, fingerprint string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, entries []*revdomain.Entry) (int, error)
}

// TokenCodec issues and verifies the access/refresh pair.
type TokenCodec interface {
	IssueAccess(userID string) (string, error)
	IssueRefresh(userID, sessionID string) (string, security.RefreshMeta, error)
	Verify(token string, kind security.TokenKind) (*security.Claims, bool)
}

// LoginInput describes the device a new session is opened for.
type LoginInput struct {
	UserID      string
	IP          string
	DeviceLabel string
}

// Manager coordinates the token codec, the session store and the revocation list.
// It holds no state of its own and is safe for concurrent use.
type Manager struct {
	sessions    SessionStore
	revocations RevocationList
	codec       TokenCodec
	audit       audit.AuditLogger
	events      telemetry.EventEmitter
	log         *slog.Logger
	now         func() time.Time
	newID       func() string
	tracer      trace.Tracer
	metrics     *metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

// WithAuditLogger sets the audit sink for login, logout and revocation events.
func WithAuditLogger(a audit.AuditLogger) Option { return func(m *Manager) { m.audit = a } }

// WithEventEmitter sets the exporter for security events such as detected token reuse.
func WithEventEmitter(e telemetry.EventEmitter) Option { return func(m *Manager) { m.events = e } }

// WithClock overrides the time source used for revocation timestamps and listing.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithIDGenerator overrides session id generation.
func WithIDGenerator(f func() string) Option { return func(m *Manager) { m.newID = f } }

// NewManager returns a Manager. Tracing and metrics use the global OTel providers.
func NewManager(sessions SessionStore, revocations RevocationList, codec TokenCodec, opts ...Option) *Manager {
	m := &Manager{
		sessions:    sessions,
		revocations: revocations,
		codec:       codec,
		audit:       audit.Nop{},
		log:         slog.Default(),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		tracer:      otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("component", "session")
	m.metrics = newMetrics(otel.Meter(tracerName), m.log)
	return m
}

// Login opens a session for an already authenticated user and returns its first token pair.
func (m *Manager) Login(ctx context.Context, in LoginInput) (*domain.TokenPair, error) {
	ctx, span := m.tracer.Start(ctx, "session.Login", trace.WithAttributes(attribute.String("user.id", in.UserID)))
	defer span.End()

	sessionID := m.newID()
	pair, err := m.issue(in.UserID, sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	s := &domain.Session{
		ID:          sessionID,
		UserID:      in.UserID,
		IP:          in.IP,
		DeviceLabel: in.DeviceLabel,
	}
	s.Apply(pair.Refresh)
	if err := m.sessions.Create(ctx, s); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			m.log.ErrorContext(ctx, "session id collision", "session_id", sessionID, "user_id", in.UserID)
		}
		return nil, fail(span, err)
	}
	m.metrics.logins.Add(ctx, 1)
	m.audit.LogEvent(ctx, in.UserID, auditdomain.ActionLogin, "session", "session_id="+sessionID)
	m.log.InfoContext(ctx, "session opened", "session_id", sessionID, "user_id", in.UserID)
	return pair, nil
}

// Refresh rotates a refresh token. The presented token's fingerprint is revoked before the
// session is moved to the new fingerprint, so a crash between the two leaves the old token unusable.
// Presenting a revoked or superseded token revokes every session of the token's user.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	ctx, span := m.tracer.Start(ctx, "session.Refresh")
	defer span.End()

	claims, sess, err := m.authenticate(ctx, refreshToken)
	if err != nil {
		m.metrics.refreshes.Add(ctx, 1, outcome("rejected"))
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("user.id", sess.UserID), attribute.String("session.id", sess.ID))

	pair, err := m.issue(claims.UserID(), sess.ID)
	if err != nil {
		return nil, fail(span, err)
	}
	old := sess.TokenFingerprint
	if err := m.revocations.Revoke(ctx, m.entry(sess, revdomain.ReasonRotated)); err != nil {
		return nil, fail(span, err)
	}
	err = m.sessions.UpdateRotation(ctx, sess.ID, old, pair.Refresh)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrStale):
		// Another refresh with the same token committed first.
		m.onReuse(ctx, sess.UserID, sess.ID, "concurrent rotation of the same refresh token")
		m.metrics.refreshes.Add(ctx, 1, outcome("rejected"))
		return nil, fail(span, ErrUnauthorized)
	case errors.Is(err, storage.ErrNotFound):
		m.metrics.refreshes.Add(ctx, 1, outcome("rejected"))
		return nil, fail(span, ErrUnauthorized)
	default:
		m.log.ErrorContext(ctx, "refresh: old token revoked but rotation not stored; session requires re-login",
			"session_id", sess.ID, "user_id", sess.UserID, "error", err)
		return nil, fail(span, err)
	}
	m.metrics.refreshes.Add(ctx, 1, outcome("rotated"))
	return pair, nil
}

// Authenticate checks a refresh token without rotating it and returns the owning user and session.
// It applies the same revocation and reuse rules as Refresh.
func (m *Manager) Authenticate(ctx context.Context, refreshToken string) (userID, sessionID string, err error) {
	ctx, span := m.tracer.Start(ctx, "session.Authenticate")
	defer span.End()

	_, sess, err := m.authenticate(ctx, refreshToken)
	if err != nil {
		return "", "", fail(span, err)
	}
	return sess.UserID, sess.ID, nil
}

// Logout ends sessionID on behalf of userID. The session's current fingerprint is revoked
// before the row is deleted so a racing refresh fails its revocation check.
func (m *Manager) Logout(ctx context.Context, sessionID, userID string) error {
	ctx, span := m.tracer.Start(ctx, "session.Logout", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	sess, err := m.owned(ctx, sessionID, userID)
	if err != nil {
		return fail(span, err)
	}
	if err := m.revocations.Revoke(ctx, m.entry(sess, revdomain.ReasonLogout)); err != nil {
		return fail(span, err)
	}
	if err := m.sessions.Delete(ctx, sess.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.reconcile(ctx, "logout", sess.UserID, sess.ID, err)
		return fail(span, err)
	}
	m.metrics.revoked.Add(ctx, 1, reason(revdomain.ReasonLogout))
	m.audit.LogEvent(ctx, userID, auditdomain.ActionLogout, "session", "session_id="+sess.ID)
	return nil
}

// LogoutAllOtherSessions ends every session of userID except keepSessionID and returns how many were ended.
func (m *Manager) LogoutAllOtherSessions(ctx context.Context, userID, keepSessionID string) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "session.LogoutAllOtherSessions", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := m.owned(ctx, keepSessionID, userID); err != nil {
		return 0, fail(span, err)
	}
	list, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return 0, fail(span, err)
	}
	entries := make([]*revdomain.Entry, 0, len(list))
	for _, s := range list {
		if s.ID != keepSessionID {
			entries = append(entries, m.entry(s, revdomain.ReasonLogoutOthers))
		}
	}
	if _, err := m.revocations.RevokeAllForUser(ctx, userID, entries); err != nil {
		return 0, fail(span, err)
	}
	n, err := m.sessions.DeleteAllExceptCurrent(ctx, userID, keepSessionID)
	if err != nil {
		m.reconcile(ctx, "logout_others", userID, keepSessionID, err)
		return 0, fail(span, err)
	}
	m.metrics.revoked.Add(ctx, n, reason(revdomain.ReasonLogoutOthers))
	m.audit.LogEvent(ctx, userID, auditdomain.ActionLogoutOthers, "session", fmt.Sprintf("kept=%s deleted=%d", keepSessionID, n))
	return n, nil
}

// RevokeAllForUser revokes every live refresh token of userID and deletes all of its sessions.
// It is idempotent and returns the number of sessions deleted. Once it returns, no session of
// userID can be refreshed.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "session.RevokeAllForUser", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	n, err := m.revokeAll(ctx, userID, revdomain.ReasonBan)
	if err != nil {
		return 0, fail(span, err)
	}
	m.audit.LogEvent(ctx, userID, auditdomain.ActionSessionsRevoke, "session", fmt.Sprintf("deleted=%d", n))
	telemetry.EmitAsync(m.events, &teldomain.SecurityEvent{
		Type: teldomain.EventUserRevoked, UserID: userID, Count: int(n), At: m.now().UTC(),
	})
	return n, nil
}

// ListSessionsForUser returns the unexpired sessions of userID without their fingerprints.
func (m *Manager) ListSessionsForUser(ctx context.Context, userID string) ([]domain.SessionView, error) {
	ctx, span := m.tracer.Start(ctx, "session.ListSessionsForUser")
	defer span.End()

	list, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fail(span, err)
	}
	now := m.now()
	out := make([]domain.SessionView, 0, len(list))
	for _, s := range list {
		if !s.ExpiresAt.After(now) {
			continue
		}
		out = append(out, s.View())
	}
	return out, nil
}

// authenticate verifies refreshToken and matches it against its live session.
// Any failure is ErrUnauthorized unless storage failed.
func (m *Manager) authenticate(ctx context.Context, refreshToken string) (*security.Claims, *domain.Session, error) {
	claims, ok := m.codec.Verify(refreshToken, security.KindRefresh)
	if !ok {
		m.log.DebugContext(ctx, "refresh token rejected by codec")
		return nil, nil, ErrUnauthorized
	}
	fp := security.Fingerprint(refreshToken)
	revoked, err := m.revocations.IsRevoked(ctx, fp)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		m.onReuse(ctx, claims.UserID(), claims.SessionID, "revoked refresh token presented")
		return nil, nil, ErrUnauthorized
	}
	sess, err := m.sessions.GetByID(ctx, claims.SessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrUnauthorized
	}
	if err != nil {
		return nil, nil, err
	}
	if sess.UserID != claims.UserID() {
		m.log.ErrorContext(ctx, "refresh token subject does not own its session",
			"session_id", sess.ID, "token_user_id", claims.UserID(), "session_user_id", sess.UserID)
		return nil, nil, ErrUnauthorized
	}
	if !security.FingerprintEqual(sess.TokenFingerprint, fp) {
		m.onReuse(ctx, claims.UserID(), sess.ID, "superseded refresh token presented")
		return nil, nil, ErrUnauthorized
	}
	return claims, sess, nil
}

// onReuse applies the revoke-on-reuse policy. The caller already decided to answer ErrUnauthorized,
// so a failure here is logged rather than returned.
func (m *Manager) onReuse(ctx context.Context, userID, sessionID, detail string) {
	m.metrics.reuse.Add(ctx, 1)
	m.log.WarnContext(ctx, "refresh token reuse detected; revoking all sessions",
		"user_id", userID, "session_id", sessionID, "detail", detail)
	n, err := m.revokeAll(ctx, userID, revdomain.ReasonReuse)
	if err != nil {
		m.log.ErrorContext(ctx, "reuse revocation failed", "user_id", userID, "error", err, "reconcile", true)
	}
	m.audit.LogEvent(ctx, userID, auditdomain.ActionRefreshReuse, "session", "session_id="+sessionID)
	telemetry.EmitAsync(m.events, &teldomain.SecurityEvent{
		Type: teldomain.EventRefreshReuse, UserID: userID, SessionID: sessionID, Detail: detail, Count: int(n), At: m.now().UTC(),
	})
}

func (m *Manager) revokeAll(ctx context.Context, userID string, r revdomain.Reason) (int64, error) {
	list, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	entries := make([]*revdomain.Entry, 0, len(list))
	for _, s := range list {
		entries = append(entries, m.entry(s, r))
	}
	if _, err := m.revocations.RevokeAllForUser(ctx, userID, entries); err != nil {
		return 0, err
	}
	n, err := m.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		m.reconcile(ctx, "revoke_all", userID, "", err)
		return 0, err
	}
	m.metrics.revoked.Add(ctx, n, reason(r))
	return n, nil
}

func (m *Manager) owned(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	sess, err := m.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrForbidden
	}
	return sess, nil
}

func (m *Manager) issue(userID, sessionID string) (*domain.TokenPair, error) {
	refresh, meta, err := m.codec.IssueRefresh(userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	access, err := m.codec.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &domain.TokenPair{
		SessionID:    sessionID,
		AccessToken:  access,
		RefreshToken: refresh,
		Refresh: domain.RefreshMeta{
			Fingerprint: meta.Fingerprint,
			IssuedAt:    meta.IssuedAt,
			ExpiresAt:   meta.ExpiresAt,
		},
	}, nil
}

func (m *Manager) entry(s *domain.Session, r revdomain.Reason) *revdomain.Entry {
	return &revdomain.Entry{
		Fingerprint: s.TokenFingerprint,
		UserID:      s.UserID,
		Reason:      r,
		ExpiresAt:   s.ExpiresAt,
		RevokedAt:   m.now().UTC(),
	}
}

// reconcile records a multi-step operation whose revocation committed but whose delete did not.
// The leftover rows are unusable because their fingerprints are revoked.
func (m *Manager) reconcile(ctx context.Context, op, userID, sessionID string, err error) {
	m.log.ErrorContext(ctx, "session cleanup incomplete after revocation",
		"op", op, "user_id", userID, "session_id", sessionID, "error", err, "reconcile", true)
	telemetry.EmitAsync(m.events, &teldomain.SecurityEvent{
		Type: teldomain.EventReconcileNeed, UserID: userID, SessionID: sessionID, Detail: op, At: m.now().UTC(),
	})
}

func fail(span trace.Span, err error) error {
	if !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
