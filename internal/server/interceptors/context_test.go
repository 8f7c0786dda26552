package interceptors

import (
	"context"
	"testing"
)

func TestWithIdentity_SetsUserID(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1")
	userID, ok := GetUserID(ctx)
	if !ok || userID != "user-1" {
		t.Errorf("GetUserID = %q, %v; want user-1, true", userID, ok)
	}
}

func TestGetUserID_ReturnsFalseWhenNotSet(t *testing.T) {
	if userID, ok := GetUserID(context.Background()); ok || userID != "" {
		t.Errorf("GetUserID = %q, %v; want \"\", false", userID, ok)
	}
}

func TestWithIdentity_EmptyValue(t *testing.T) {
	if _, ok := GetUserID(WithIdentity(context.Background(), "")); ok {
		t.Error("empty user_id reported as set")
	}
}

func TestContext_Isolation(t *testing.T) {
	base := context.Background()
	ctx1 := WithIdentity(base, "user-1")
	ctx2 := WithIdentity(base, "user-2")
	if id, _ := GetUserID(ctx1); id != "user-1" {
		t.Errorf("ctx1 user_id = %q", id)
	}
	if id, _ := GetUserID(ctx2); id != "user-2" {
		t.Errorf("ctx2 user_id = %q", id)
	}
	if _, ok := GetUserID(base); ok {
		t.Error("base context modified")
	}
}

func TestWithAdmin(t *testing.T) {
	ctx := WithAdmin(context.Background(), "root")
	if name, ok := GetAdmin(ctx); !ok || name != "root" {
		t.Errorf("GetAdmin = %q, %v", name, ok)
	}
	if _, ok := GetUserID(ctx); ok {
		t.Error("admin context carries a user_id")
	}
	if _, ok := GetAdmin(context.Background()); ok {
		t.Error("GetAdmin on empty context: want false")
	}
}
