// Package session guards the end-user decision endpoints. The tenant's
// login and consent frontend authenticates users and carries the resulting
// session JWT on decision calls; this middleware verifies it and exposes the
// authenticated subject.
package session

import (
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

type Guard struct {
	auth *jwtauth.JWTAuth
}

// NewGuard creates a session guard verifying HS256 session tokens signed
// with the shared frontend secret
func NewGuard(secret []byte) *Guard {
	return &Guard{auth: jwtauth.New("HS256", secret, nil)}
}

// Middleware verifies the session token and rejects unauthenticated calls
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return jwtauth.Verifier(g.auth)(jwtauth.Authenticator(g.auth)(next))
}

// UserID returns the authenticated subject of the session
func UserID(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// AuthTime returns the time the end-user authenticated, falling back to now
// when the session does not carry an auth_time claim
func AuthTime(r *http.Request) time.Time {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return time.Now()
	}
	if raw, ok := claims["auth_time"].(float64); ok {
		return time.Unix(int64(raw), 0)
	}
	return time.Now()
}
