package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"blog-platform/backend/internal/security"
	sessiondomain "blog-platform/backend/internal/session/domain"
	sessionservice "blog-platform/backend/internal/session/service"
	userdomain "blog-platform/backend/internal/user/domain"
)

type memUserRepo struct {
	mu    sync.Mutex
	users []*userdomain.User
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByLoginOrEmail(_ context.Context, key string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Login == key || strings.EqualFold(u.Email, key) {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, u)
	return nil
}

type fakeOpener struct {
	inputs    []sessionservice.LoginInput
	revoked   []string
	revokeErr error
	onLogin   func()
}

func (f *fakeOpener) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	f.revoked = append(f.revoked, userID)
	return 1, f.revokeErr
}

func (f *fakeOpener) Login(_ context.Context, in sessionservice.LoginInput) (*sessiondomain.TokenPair, error) {
	f.inputs = append(f.inputs, in)
	if f.onLogin != nil {
		f.onLogin()
	}
	return &sessiondomain.TokenPair{SessionID: "s1", AccessToken: "a", RefreshToken: "r"}, nil
}

type recAudit struct{ actions []string }

func (r *recAudit) LogEvent(_ context.Context, _, action, _, _ string) {
	r.actions = append(r.actions, action)
}

func newTestAuthService(t *testing.T) (*AuthService, *memUserRepo, *fakeOpener, *recAudit) {
	t.Helper()
	users := &memUserRepo{}
	opener := &fakeOpener{}
	rec := &recAudit{}
	svc := NewAuthService(users, opener, security.NewPasswordHasher(bcrypt.MinCost), rec, nil)
	if _, err := svc.Register(context.Background(), "alice", "Alice@Example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return svc, users, opener, rec
}

func TestRegister(t *testing.T) {
	svc, users, _, _ := newTestAuthService(t)
	u := users.users[0]
	if u.Email != "alice@example.com" || u.PasswordHash == "password123" || u.ID == "" {
		t.Errorf("unexpected stored user: %+v", u)
	}
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "other@example.com", "password123"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate login: want ErrAlreadyRegistered, got %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "alice@example.com", "password123"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate email: want ErrAlreadyRegistered, got %v", err)
	}
	for _, tc := range []struct{ login, email, password string }{
		{"", "b@example.com", "password123"},
		{"bob", "not-an-email", "password123"},
		{"bob", "b@example.com", "short1"},
		{"bob", "b@example.com", "onlyletters"},
	} {
		if _, err := svc.Register(ctx, tc.login, tc.email, tc.password); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Register(%q, %q): want ErrInvalidArgument, got %v", tc.login, tc.email, err)
		}
	}
}

func TestLogin_Success(t *testing.T) {
	svc, users, opener, _ := newTestAuthService(t)
	for _, key := range []string{"alice", "ALICE@example.com"} {
		pair, err := svc.Login(context.Background(), key, "password123", "10.0.0.1", " Firefox ")
		if err != nil {
			t.Fatalf("Login(%q): %v", key, err)
		}
		if pair.SessionID != "s1" {
			t.Errorf("SessionID = %q", pair.SessionID)
		}
	}
	in := opener.inputs[0]
	if in.UserID != users.users[0].ID || in.IP != "10.0.0.1" || in.DeviceLabel != "Firefox" {
		t.Errorf("LoginInput = %+v", in)
	}
}

func TestLogin_Rejected(t *testing.T) {
	svc, users, opener, rec := newTestAuthService(t)
	users.users[0].Ban.IsBanned = true
	ctx := context.Background()

	tests := []struct{ name, login, password string }{
		{"empty", "", ""},
		{"unknown", "bob", "password123"},
		{"wrong password", "alice", "password124"},
		{"banned", "alice", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(ctx, tt.login, tt.password, "", ""); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("want ErrInvalidCredentials, got %v", err)
			}
		})
	}
	if len(opener.inputs) != 0 {
		t.Errorf("session opened for rejected login: %+v", opener.inputs)
	}
	if len(rec.actions) != 3 {
		t.Errorf("want 3 login_failure audit records, got %v", rec.actions)
	}
}

func TestLogin_BannedWhileSessionOpened(t *testing.T) {
	svc, users, opener, rec := newTestAuthService(t)
	opener.onLogin = func() {
		users.mu.Lock()
		users.users[0].Ban.IsBanned = true
		users.mu.Unlock()
	}

	pair, err := svc.Login(context.Background(), "alice", "password123", "10.0.0.1", "phone")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if pair != nil {
		t.Error("tokens returned for a banned user")
	}
	if len(opener.revoked) != 1 || opener.revoked[0] != users.users[0].ID {
		t.Errorf("revoked = %v, want the user's sessions revoked", opener.revoked)
	}
	if got := rec.actions[len(rec.actions)-1]; got != "login_failure" {
		t.Errorf("last audit action = %q, want login_failure", got)
	}
}

func TestLogin_BannedWhileSessionOpened_RevokeFails(t *testing.T) {
	svc, users, opener, _ := newTestAuthService(t)
	opener.revokeErr = errors.New("db down")
	opener.onLogin = func() {
		users.mu.Lock()
		users.users[0].Ban.IsBanned = true
		users.mu.Unlock()
	}
	if _, err := svc.Login(context.Background(), "alice", "password123", "", ""); !errors.Is(err, opener.revokeErr) {
		t.Fatalf("want wrapped revocation error, got %v", err)
	}
}
