package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"blog-platform/backend/internal/audit/domain"
	auditrepo "blog-platform/backend/internal/audit/repository"
)

// maxMetadataLen caps the free-form metadata stored per event.
const maxMetadataLen = 1024

// IPExtractor returns the client IP for the request in ctx.
type IPExtractor func(context.Context) string

// AuditLogger records one audit event. Implementations never fail the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger persists audit events through an audit repository.
type Logger struct {
	store    auditrepo.Repository
	clientIP IPExtractor
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithLoggerClock overrides the event timestamp source.
func WithLoggerClock(now func() time.Time) LoggerOption { return func(l *Logger) { l.now = now } }

// WithLoggerIDs overrides event id generation.
func WithLoggerIDs(f func() string) LoggerOption { return func(l *Logger) { l.newID = f } }

// NewLogger returns a Logger writing to store. clientIP may be nil, in which case the IP is "unknown".
func NewLogger(store auditrepo.Repository, clientIP IPExtractor, log *slog.Logger, opts ...LoggerOption) *Logger {
	if log == nil {
		log = slog.Default()
	}
	l := &Logger{
		store:    store,
		clientIP: clientIP,
		log:      log.With("component", "audit"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent stores the event. A store failure is logged and dropped.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l.store == nil {
		return
	}
	ip := ""
	if l.clientIP != nil {
		ip = l.clientIP(ctx)
	}
	if ip == "" {
		ip = "unknown"
	}
	if len(metadata) > maxMetadataLen {
		metadata = metadata[:maxMetadataLen]
	}
	err := l.store.Create(ctx, &domain.AuditLog{
		ID:        l.newID(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	})
	if err != nil {
		l.log.WarnContext(ctx, "audit event dropped", "action", action, "resource", resource, "user_id", userID, "error", err)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
