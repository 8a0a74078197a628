package domain

import (
	"context"
	"time"
)

// OAuthToken is the aggregate of an access token, optional refresh token and
// optional ID token issued by a grant service. It is deleted as a whole on
// revocation and read, never mutated, on introspection.
type OAuthToken struct {
	ID                    string
	TenantID              string
	Issuer                string
	Subject               string
	ClientID              string
	Scopes                []string
	GrantedClaims         []string
	AccessToken           string
	RefreshToken          string
	IDToken               string
	TokenType             string
	CertificateThumbprint string
	AuthorizationDetails  []AuthorizationDetail
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	CreatedAt             time.Time
}

// AccessTokenExpired reports whether the access token has expired
func (t *OAuthToken) AccessTokenExpired(now time.Time) bool {
	return now.After(t.AccessTokenExpiresAt)
}

// RefreshTokenExpired reports whether the refresh token has expired
func (t *OAuthToken) RefreshTokenExpired(now time.Time) bool {
	if t.RefreshToken == "" {
		return true
	}
	return now.After(t.RefreshTokenExpiresAt)
}

// SenderConstrained reports whether the token was bound to a client
// certificate thumbprint at issuance
func (t *OAuthToken) SenderConstrained() bool {
	return t.CertificateThumbprint != ""
}

// OAuthTokenRepository defines persistence for issued token aggregates
type OAuthTokenRepository interface {
	// Create persists a new token aggregate
	Create(ctx context.Context, token *OAuthToken) error

	// FindByAccessToken finds a token aggregate by access token value
	FindByAccessToken(ctx context.Context, tenantID, accessToken string) (*OAuthToken, error)

	// FindByRefreshToken finds a token aggregate by refresh token value
	FindByRefreshToken(ctx context.Context, tenantID, refreshToken string) (*OAuthToken, error)

	// Delete removes the whole aggregate, invalidating both token values
	Delete(ctx context.Context, tenantID, id string) error
}
