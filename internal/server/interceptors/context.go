package interceptors

import "context"

type contextKey struct{ name string }

var (
	userIDKey = contextKey{"user_id"}
	adminKey  = contextKey{"admin"}
)

// WithIdentity returns a context carrying the authenticated user_id.
// Handlers read it via GetUserID.
func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok && v != ""
}

// WithAdmin marks ctx as authenticated with the administrator credentials.
func WithAdmin(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, adminKey, username)
}

// GetAdmin returns the administrator name from context and true if set.
func GetAdmin(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(adminKey).(string)
	return v, ok && v != ""
}
