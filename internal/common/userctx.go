package common

import (
	"context"

	"github.com/hbarro/lares/internal/models"
)

// Session identifies the authenticated user behind a request. There is no
// ambient current-user state anywhere; every core operation resolves its
// owner from the context.
type Session struct {
	Owner string
	Email string
}

type contextKey int

const sessionKey contextKey = iota

// WithSession stores a Session in the request context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext retrieves the Session from context, or nil if absent.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// ResolveOwner returns the owner handle from context, or a ValidationError
// when no authenticated session is present. Every entity the core touches
// is keyed by this handle.
func ResolveOwner(ctx context.Context) (string, error) {
	if s := SessionFromContext(ctx); s != nil && s.Owner != "" {
		return s.Owner, nil
	}
	return "", models.Validationf("no authenticated session in context")
}
