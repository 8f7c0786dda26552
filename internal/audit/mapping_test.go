package audit

import "testing"

func TestFromFullMethod(t *testing.T) {
	tests := []struct {
		fullMethod string
		want       Event
	}{
		{"/blog.session.v1.SessionService/ListSessions", Event{"list_sessions", "session"}},
		{"/blog.session.v1.SessionService/LogoutOtherSessions", Event{"logout_other_sessions", "session"}},
		{"/blog.session.v1.SessionService/Refresh", Event{"refresh", "session"}},
		{"/blog.admin.v1.AdminService/BanUser", Event{"ban_user", "admin"}},
		{"/blog.admin.v1.AdminService/ListAuditEvents", Event{"list_audit_events", "admin"}},
		{"/NoPackage/Do", Event{"do", "no_package"}},
		{"/blog.v1.Service/Do", Event{"do", "unknown"}},
		{"/blog.v1.Service/", Event{"unknown", "unknown"}},
		{"garbage", Event{"unknown", "unknown"}},
	}
	for _, tt := range tests {
		if got := FromFullMethod(tt.fullMethod); got != tt.want {
			t.Errorf("FromFullMethod(%q) = %+v, want %+v", tt.fullMethod, got, tt.want)
		}
	}
}
