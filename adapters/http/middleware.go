package authhttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// SessionVerifier checks bearer tokens minted by the identity backend.
type SessionVerifier struct {
	// Issuer, when set, must match the iss claim.
	Issuer  string
	Keyfunc jwt.Keyfunc
	// Skew tolerated on exp/nbf/iat; defaults to one second.
	Skew time.Duration
}

// OptionalSession attaches SessionClaims to the request context when a valid
// Bearer token is present. Requests without a token pass through anonymous;
// a token that is present but invalid is rejected.
func OptionalSession(v *SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r.Header.Get("Authorization"))
			if tokenStr == "" || v == nil || v.Keyfunc == nil {
				next.ServeHTTP(w, r)
				return
			}
			cl, code := v.parse(tokenStr)
			if code != "" {
				unauthorized(w, code)
				return
			}
			next.ServeHTTP(w, r.WithContext(setClaims(r.Context(), cl)))
		})
	}
}

func (v *SessionVerifier) parse(tokenStr string) (SessionClaims, string) {
	skew := v.Skew
	if skew == 0 {
		skew = time.Second
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithLeeway(skew),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, v.Keyfunc)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, "token_expired"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return SessionClaims{}, "missing_exp"
	case err != nil || !token.Valid:
		return SessionClaims{}, "invalid_token"
	}
	iss, _ := claims["iss"].(string)
	if v.Issuer != "" && iss != v.Issuer {
		return SessionClaims{}, "bad_issuer"
	}
	sub, _ := claims["sub"].(string)
	level, _ := claims["auth_level"].(string)
	sid, _ := claims["sid"].(string)
	return SessionClaims{
		Subject:   sub,
		AuthLevel: strings.TrimSpace(level),
		SessionID: sid,
	}, ""
}
