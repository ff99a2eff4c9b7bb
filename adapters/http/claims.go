package authhttp

import (
	"context"

	core "github.com/PaulFidika/dialogkit/core"
)

// SessionClaims is the typed view of a verified session token.
type SessionClaims struct {
	Subject   string
	AuthLevel string
	SessionID string
}

type claimsCtxKey struct{}

func setClaims(ctx context.Context, cl SessionClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, cl)
}

func ClaimsFromContext(ctx context.Context) (SessionClaims, bool) {
	v := ctx.Value(claimsCtxKey{})
	if v == nil {
		return SessionClaims{}, false
	}
	cl, ok := v.(SessionClaims)
	return cl, ok
}

// coreSession combines the dialog session id with whatever the token proved.
func coreSession(ctx context.Context, dialogSessionID string) core.Session {
	sess := core.Session{ID: dialogSessionID}
	if cl, ok := ClaimsFromContext(ctx); ok {
		sess.Authenticated = true
		sess.AuthLevel = cl.AuthLevel
	}
	return sess
}
