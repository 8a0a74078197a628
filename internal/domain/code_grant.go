package domain

import (
	"context"
	"time"
)

// AuthorizationCodeGrant binds an issued authorization code to the
// originating authorization request and the granted scopes and claims.
// A code is single-use: it is looked up and invalidated on first exchange.
type AuthorizationCodeGrant struct {
	Code                 string
	TenantID             string
	AuthorizationID      string
	ClientID             string
	UserID               string
	Scopes               []string
	IDTokenClaims        []string
	UserinfoClaims       []string
	AuthorizationDetails []AuthorizationDetail
	RedirectURI          string
	Nonce                string
	CodeChallenge        string
	CodeChallengeMethod  string
	AuthTime             time.Time
	ExpiresAt            time.Time
	CreatedAt            time.Time
}

// Expired reports whether the code can no longer be exchanged
func (g *AuthorizationCodeGrant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// AuthorizationCodeGrantRepository defines persistence for authorization codes
type AuthorizationCodeGrantRepository interface {
	// Create persists a new authorization code grant
	Create(ctx context.Context, grant *AuthorizationCodeGrant) error

	// ConsumeOnce atomically looks up and invalidates a code. Two concurrent
	// redemptions of the same code result in exactly one success; the loser
	// gets ErrAuthorizationCodeNotFound.
	ConsumeOnce(ctx context.Context, tenantID, code string) (*AuthorizationCodeGrant, error)
}
