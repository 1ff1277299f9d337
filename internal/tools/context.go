package tools

import "context"

type contextKey string

const userKey contextKey = "user"

// WithUser adds the requesting user's identity to the context so tool
// handlers (notably save_memory) can address per-user storage.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the user identity from the context. Returns
// "" if not set; handlers that require a user must treat that as an
// error rather than writing to a shared bucket.
func UserFromContext(ctx context.Context) string {
	if u, ok := ctx.Value(userKey).(string); ok {
		return u
	}
	return ""
}
