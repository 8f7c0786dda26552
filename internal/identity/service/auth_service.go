// Package service implements credential authentication in front of the session manager.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"blog-platform/backend/internal/audit"
	auditdomain "blog-platform/backend/internal/audit/domain"
	"blog-platform/backend/internal/security"
	sessiondomain "blog-platform/backend/internal/session/domain"
	sessionservice "blog-platform/backend/internal/session/service"
	userdomain "blog-platform/backend/internal/user/domain"
)

// Sentinel errors for auth service; handler maps them to gRPC codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyRegistered  = errors.New("login or email already registered")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByLoginOrEmail(ctx context.Context, loginOrEmail string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionOpener opens a session for an authenticated user and can end all of them.
type SessionOpener interface {
	Login(ctx context.Context, in sessionservice.LoginInput) (*sessiondomain.TokenPair, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// AuthService checks credentials and hands authenticated users to the session manager.
type AuthService struct {
	users    UserRepo
	sessions SessionOpener
	hasher   *security.PasswordHasher
	audit    audit.AuditLogger
	log      *slog.Logger
}

// NewAuthService returns an AuthService with the given dependencies. A nil auditLogger disables audit records.
func NewAuthService(users UserRepo, sessions SessionOpener, hasher *security.PasswordHasher, auditLogger audit.AuditLogger, log *slog.Logger) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		audit:    auditLogger,
		log:      log.With("component", "auth"),
	}
}

// Register creates a user with the given login, email and password and returns its id.
func (s *AuthService) Register(ctx context.Context, login, email, password string) (string, error) {
	login = strings.TrimSpace(login)
	email = strings.TrimSpace(strings.ToLower(email))
	if login == "" {
		return "", fmt.Errorf("%w: login is required", ErrInvalidArgument)
	}
	if err := validateEmail(email); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := validatePassword(password); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	for _, key := range []string{login, email} {
		existing, err := s.users.GetByLoginOrEmail(ctx, key)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return "", ErrAlreadyRegistered
		}
	}
	hashed, err := s.hasher.HashPassword(password)
	if err != nil {
		return "", err
	}
	u := &userdomain.User{
		ID:           uuid.New().String(),
		Login:        login,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return u.ID, nil
}

// Login authenticates by login or email and password, then opens a session for the device.
// Unknown users, wrong passwords and banned users all yield ErrInvalidCredentials.
// The user is read again once the session exists; a ban stored in between revokes the
// user's sessions and the tokens are withheld.
func (s *AuthService) Login(ctx context.Context, loginOrEmail, password, ip, deviceLabel string) (*sessiondomain.TokenPair, error) {
	loginOrEmail = strings.TrimSpace(loginOrEmail)
	if loginOrEmail == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByLoginOrEmail(ctx, loginOrEmail)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.audit.LogEvent(ctx, "", auditdomain.ActionLoginFailure, "user", "unknown user")
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.CheckPassword(u.PasswordHash, password); err != nil {
		s.audit.LogEvent(ctx, u.ID, auditdomain.ActionLoginFailure, "user", "bad password")
		return nil, ErrInvalidCredentials
	}
	if u.Ban.IsBanned {
		s.audit.LogEvent(ctx, u.ID, auditdomain.ActionLoginFailure, "user", "banned")
		s.log.InfoContext(ctx, "login refused for banned user", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	pair, err := s.sessions.Login(ctx, sessionservice.LoginInput{UserID: u.ID, IP: ip, DeviceLabel: strings.TrimSpace(deviceLabel)})
	if err != nil {
		return nil, err
	}
	cur, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if cur == nil || cur.Ban.IsBanned {
		s.log.WarnContext(ctx, "user banned during login; revoking sessions", "user_id", u.ID)
		if _, err := s.sessions.RevokeAllForUser(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
		s.audit.LogEvent(ctx, u.ID, auditdomain.ActionLoginFailure, "user", "banned during login")
		return nil, ErrInvalidCredentials
	}
	return pair, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasNumber = true
		}
	}
	if !hasLetter || !hasNumber {
		return errors.New("password must contain letters and numbers")
	}
	return nil
}
