package domain

import (
	"context"
	"time"
)

// AuthorizationGranted is the per tenant, client and user record of
// cumulative consent. It is created on first successful authorization and
// updated on every subsequent authorization by the same client and user pair.
type AuthorizationGranted struct {
	ID             string
	TenantID       string
	ClientID       string
	UserID         string
	Scopes         []string
	IDTokenClaims  []string
	UserinfoClaims []string
	ConsentClaims  map[string]interface{}
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Merge unions the scope and claim sets of the existing and new grant into a
// new value, leaving the receiver untouched. Merging the same grant twice is
// idempotent.
func (g AuthorizationGranted) Merge(other AuthorizationGranted) AuthorizationGranted {
	merged := g
	merged.Scopes = unionStrings(g.Scopes, other.Scopes)
	merged.IDTokenClaims = unionStrings(g.IDTokenClaims, other.IDTokenClaims)
	merged.UserinfoClaims = unionStrings(g.UserinfoClaims, other.UserinfoClaims)
	merged.ConsentClaims = make(map[string]interface{}, len(g.ConsentClaims)+len(other.ConsentClaims))
	for k, v := range g.ConsentClaims {
		merged.ConsentClaims[k] = v
	}
	for k, v := range other.ConsentClaims {
		merged.ConsentClaims[k] = v
	}
	return merged
}

// Replace discards the existing grant in favor of the new one, keeping the
// record identity. Used for a full re-consent.
func (g AuthorizationGranted) Replace(other AuthorizationGranted) AuthorizationGranted {
	replaced := other
	replaced.ID = g.ID
	replaced.TenantID = g.TenantID
	replaced.ClientID = g.ClientID
	replaced.UserID = g.UserID
	replaced.CreatedAt = g.CreatedAt
	return replaced
}

// UnauthorizedScopes returns the subset of the requested scopes not covered
// by the stored grant
func (g AuthorizationGranted) UnauthorizedScopes(requested []string) []string {
	return difference(requested, g.Scopes)
}

// UnauthorizedIDTokenClaims returns the requested ID token claims not covered
// by the stored grant
func (g AuthorizationGranted) UnauthorizedIDTokenClaims(requested []string) []string {
	return difference(requested, g.IDTokenClaims)
}

// UnauthorizedUserinfoClaims returns the requested userinfo claims not
// covered by the stored grant
func (g AuthorizationGranted) UnauthorizedUserinfoClaims(requested []string) []string {
	return difference(requested, g.UserinfoClaims)
}

// AuthorizationGrantedRepository defines persistence for consent grants.
// Updates must be read-modify-write safe per tenant, client and user key.
type AuthorizationGrantedRepository interface {
	// Find finds the consent grant for a tenant, client and user
	Find(ctx context.Context, tenantID, clientID, userID string) (*AuthorizationGranted, error)

	// Upsert persists the grant, merging scopes and claims into any grant
	// already stored under the same key in a single atomic operation, so
	// concurrent authorizations never lose each other's consent
	Upsert(ctx context.Context, granted *AuthorizationGranted) error
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func difference(requested, granted []string) []string {
	var out []string
	for _, v := range requested {
		if !contains(granted, v) {
			out = append(out, v)
		}
	}
	return out
}
