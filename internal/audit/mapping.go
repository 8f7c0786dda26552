package audit

import (
	"strings"
	"unicode"
)

// Event names a gRPC call in the audit trail.
type Event struct {
	Action   string
	Resource string
}

// FromFullMethod derives an audit event from a gRPC full method name.
// "/blog.session.v1.SessionService/ListSessions" becomes {list_sessions, session}.
func FromFullMethod(fullMethod string) Event {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || method == "" {
		return Event{Action: "unknown", Resource: "unknown"}
	}
	if i := strings.LastIndexByte(service, '.'); i >= 0 {
		service = service[i+1:]
	}
	resource := snake(strings.TrimSuffix(service, "Service"))
	if resource == "" {
		resource = "unknown"
	}
	return Event{Action: snake(method), Resource: resource}
}

// snake converts a CamelCase identifier to snake_case.
func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
