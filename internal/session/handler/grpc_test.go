package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	identityservice "blog-platform/backend/internal/identity/service"
	"blog-platform/backend/internal/platform/rpc"
	"blog-platform/backend/internal/platform/storage"
	"blog-platform/backend/internal/server/interceptors"
	"blog-platform/backend/internal/session/domain"
	"blog-platform/backend/internal/session/service"
)

type fakeAuth struct {
	err    error
	gotIP  string
	gotDev string
}

func (f *fakeAuth) Login(_ context.Context, login, password, ip, device string) (*domain.TokenPair, error) {
	f.gotIP, f.gotDev = ip, device
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TokenPair{
		SessionID: "s1", AccessToken: "access", RefreshToken: "refresh",
		Refresh: domain.RefreshMeta{ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

type fakeSessions struct {
	owner, sessionID string
	authErr          error
	err              error
	loggedOut        []string
	keptSession      string
	views            []domain.SessionView
}

func (f *fakeSessions) Refresh(_ context.Context, token string) (*domain.TokenPair, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TokenPair{SessionID: f.sessionID, AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (f *fakeSessions) Authenticate(context.Context, string) (string, string, error) {
	if f.authErr != nil {
		return "", "", f.authErr
	}
	return f.owner, f.sessionID, nil
}

func (f *fakeSessions) Logout(_ context.Context, sessionID, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.loggedOut = append(f.loggedOut, userID+"/"+sessionID)
	return nil
}

func (f *fakeSessions) LogoutAllOtherSessions(_ context.Context, userID, keep string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.keptSession = keep
	return 2, nil
}

func (f *fakeSessions) ListSessionsForUser(context.Context, string) ([]domain.SessionView, error) {
	return f.views, f.err
}

func req(t *testing.T, kv map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(kv)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Errorf("status code = %v, want %v (err %v)", got, want, err)
	}
}

func TestLogin(t *testing.T) {
	auth := &fakeAuth{}
	srv := NewServer(auth, &fakeSessions{}, nil)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-forwarded-for", "203.0.113.9"))

	resp, err := srv.Login(ctx, req(t, map[string]interface{}{"login": "alice", "password": "pw", "device_label": "Firefox"}))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rpc.String(resp, "refresh_token") != "refresh" || rpc.String(resp, "session_id") != "s1" {
		t.Errorf("unexpected response %v", resp)
	}
	if rpc.String(resp, "refresh_expires_at") != "2030-01-01T00:00:00Z" {
		t.Errorf("refresh_expires_at = %q", rpc.String(resp, "refresh_expires_at"))
	}
	if auth.gotIP != "203.0.113.9" || auth.gotDev != "Firefox" {
		t.Errorf("ip/device = %q/%q", auth.gotIP, auth.gotDev)
	}

	_, err = srv.Login(ctx, req(t, map[string]interface{}{"login": "alice"}))
	assertCode(t, err, codes.InvalidArgument)

	auth.err = identityservice.ErrInvalidCredentials
	_, err = srv.Login(ctx, req(t, map[string]interface{}{"login": "alice", "password": "bad"}))
	assertCode(t, err, codes.Unauthenticated)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{service.ErrUnauthorized, codes.Unauthenticated},
		{service.ErrForbidden, codes.PermissionDenied},
		{service.ErrNotFound, codes.NotFound},
		{&storage.StorageError{Op: "sessions.Delete", Err: errors.New("connection reset")}, codes.Internal},
	}
	for _, tt := range tests {
		srv := NewServer(nil, &fakeSessions{err: tt.err}, nil)
		_, err := srv.Refresh(context.Background(), req(t, map[string]interface{}{"refresh_token": "r"}))
		assertCode(t, err, tt.want)
		if tt.want == codes.Internal && status.Convert(err).Message() != "internal error" {
			t.Errorf("internal error leaked cause: %v", err)
		}
	}
}

func TestRefresh_MissingToken(t *testing.T) {
	srv := NewServer(nil, &fakeSessions{}, nil)
	_, err := srv.Refresh(context.Background(), req(t, nil))
	assertCode(t, err, codes.InvalidArgument)
}

func TestLogout_UsesRefreshTokenIdentity(t *testing.T) {
	sessions := &fakeSessions{owner: "u1", sessionID: "s1"}
	srv := NewServer(nil, sessions, nil)
	if _, err := srv.Logout(context.Background(), req(t, map[string]interface{}{"refresh_token": "r"})); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.loggedOut) != 1 || sessions.loggedOut[0] != "u1/s1" {
		t.Errorf("loggedOut = %v", sessions.loggedOut)
	}

	sessions.authErr = service.ErrUnauthorized
	_, err := srv.Logout(context.Background(), req(t, map[string]interface{}{"refresh_token": "r"}))
	assertCode(t, err, codes.Unauthenticated)
}

func TestLogoutSession(t *testing.T) {
	sessions := &fakeSessions{}
	srv := NewServer(nil, sessions, nil)

	_, err := srv.LogoutSession(context.Background(), req(t, map[string]interface{}{"session_id": "s9"}))
	assertCode(t, err, codes.Unauthenticated)

	ctx := interceptors.WithIdentity(context.Background(), "u1")
	_, err = srv.LogoutSession(ctx, req(t, nil))
	assertCode(t, err, codes.InvalidArgument)

	if _, err := srv.LogoutSession(ctx, req(t, map[string]interface{}{"session_id": "s9"})); err != nil {
		t.Fatalf("LogoutSession: %v", err)
	}
	if sessions.loggedOut[0] != "u1/s9" {
		t.Errorf("loggedOut = %v", sessions.loggedOut)
	}
}

func TestLogoutOtherSessions(t *testing.T) {
	sessions := &fakeSessions{owner: "u1", sessionID: "keep"}
	srv := NewServer(nil, sessions, nil)
	ctx := interceptors.WithIdentity(context.Background(), "u1")

	resp, err := srv.LogoutOtherSessions(ctx, req(t, map[string]interface{}{"refresh_token": "r"}))
	if err != nil {
		t.Fatalf("LogoutOtherSessions: %v", err)
	}
	if rpc.Int(resp, "deleted") != 2 || sessions.keptSession != "keep" {
		t.Errorf("deleted = %d kept = %q", rpc.Int(resp, "deleted"), sessions.keptSession)
	}

	other := interceptors.WithIdentity(context.Background(), "u2")
	_, err = srv.LogoutOtherSessions(other, req(t, map[string]interface{}{"refresh_token": "r"}))
	assertCode(t, err, codes.PermissionDenied)
}

func TestListSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions := &fakeSessions{views: []domain.SessionView{
		{ID: "s1", IP: "10.0.0.1", DeviceLabel: "Firefox", LastActiveAt: now, ExpiresAt: now.Add(time.Hour)},
		{ID: "s2"},
	}}
	srv := NewServer(nil, sessions, nil)
	resp, err := srv.ListSessions(interceptors.WithIdentity(context.Background(), "u1"), req(t, nil))
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	list := resp.GetFields()["sessions"].GetListValue().GetValues()
	if len(list) != 2 {
		t.Fatalf("sessions = %d, want 2", len(list))
	}
	first := list[0].GetStructValue()
	if rpc.String(first, "session_id") != "s1" || rpc.String(first, "expires_at") != "2024-01-01T01:00:00Z" {
		t.Errorf("first session = %v", first)
	}
	if _, ok := first.GetFields()["token_fingerprint"]; ok {
		t.Error("fingerprint exposed in listing")
	}
}

func TestNilDependencies(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	ctx := interceptors.WithIdentity(context.Background(), "u1")
	_, err := srv.Login(ctx, req(t, nil))
	assertCode(t, err, codes.Unimplemented)
	_, err = srv.ListSessions(ctx, req(t, nil))
	assertCode(t, err, codes.Unimplemented)
}
