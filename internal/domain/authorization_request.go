package domain

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// RequestPattern identifies how the authorization request parameters were
// conveyed
type RequestPattern string

const (
	PatternNormal        RequestPattern = "NORMAL"
	PatternRequestObject RequestPattern = "REQUEST_OBJECT"
	PatternRequestURI    RequestPattern = "REQUEST_URI"
)

// PushedRequestURIPrefix is the urn prefix of request URIs issued by the
// pushed authorization request endpoint
const PushedRequestURIPrefix = "urn:ietf:params:oauth:request_uri:"

// AuthorizationDetail is a single entry of a Rich Authorization Request
// authorization_details array
type AuthorizationDetail map[string]interface{}

// Type returns the mandatory type member of the detail
func (d AuthorizationDetail) Type() string {
	if v, ok := d["type"].(string); ok {
		return v
	}
	return ""
}

// ParseAuthorizationDetails parses a raw authorization_details parameter value
func ParseAuthorizationDetails(raw string) ([]AuthorizationDetail, error) {
	var details []AuthorizationDetail
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, err
	}
	return details, nil
}

// AuthorizationRequest is the immutable record of a validated authorization
// request. It is persisted until consumed by authorize or deny.
type AuthorizationRequest struct {
	ID                   string
	TenantID             string
	Profile              AuthorizationProfile
	ClientID             string
	Scopes               []string
	ResponseType         string
	ResponseMode         string
	RedirectURI          string
	State                string
	Nonce                string
	CodeChallenge        string
	CodeChallengeMethod  string
	Claims               string
	AuthorizationDetails []AuthorizationDetail
	RequestObject        string
	CreatedAt            time.Time
	ExpiresAt            time.Time
}

// Expired reports whether the request can no longer be consumed
func (r *AuthorizationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// AuthorizationRequestRepository defines persistence for authorization requests
type AuthorizationRequestRepository interface {
	// Create persists a new authorization request
	Create(ctx context.Context, request *AuthorizationRequest) error

	// Get finds an authorization request by identifier
	Get(ctx context.Context, tenantID, id string) (*AuthorizationRequest, error)

	// Delete removes a consumed authorization request
	Delete(ctx context.Context, tenantID, id string) error
}

// OAuthRequestContext is the working unit passed through the verifier
// pipeline. It is transient and lives for the duration of one request
// evaluation.
type OAuthRequestContext struct {
	TenantID   string
	Pattern    RequestPattern
	Parameters url.Values
	JoseClaims map[string]interface{}
	Server     *ServerConfiguration
	Client     *ClientConfiguration
	Profile    AuthorizationProfile
	Scopes     []string

	// Pushed marks a context built at the pushed authorization endpoint,
	// where the request_uri mandate cannot apply yet
	Pushed bool
}

// JarAuthoritative reports whether the decoded request object claims, not the
// outer query parameters, are authoritative for this context
func (c *OAuthRequestContext) JarAuthoritative() bool {
	if c.Pattern == PatternNormal {
		return false
	}
	return c.Profile == ProfileFapiAdvance || c.Client.RequireRequestObject
}

// Param returns a request parameter, preferring the decoded request object
// claims when they are authoritative or when the outer parameter is absent
func (c *OAuthRequestContext) Param(name string) string {
	if c.Pattern != PatternNormal {
		if v, ok := c.JoseClaims[name].(string); ok && v != "" {
			return v
		}
		if c.JarAuthoritative() {
			return ""
		}
	}
	return c.Parameters.Get(name)
}

// RequestedScopes returns the raw scope values before client filtering
func (c *OAuthRequestContext) RequestedScopes() []string {
	return strings.Fields(c.Param("scope"))
}

// ResponseType returns the requested response_type
func (c *OAuthRequestContext) ResponseType() string {
	return c.Param("response_type")
}

// ResponseMode returns the requested response_mode
func (c *OAuthRequestContext) ResponseMode() string {
	return c.Param("response_mode")
}

// RedirectURI returns the requested redirect_uri
func (c *OAuthRequestContext) RedirectURI() string {
	return c.Param("redirect_uri")
}

// State returns the requested state
func (c *OAuthRequestContext) State() string {
	return c.Param("state")
}

// ResolvedRedirectURI returns the redirect URI usable for redirectable
// errors: the requested one when registered, or the single registered URI
// when the request omits it
func (c *OAuthRequestContext) ResolvedRedirectURI() string {
	uri := c.RedirectURI()
	if uri != "" && c.Client.HasRedirectURI(uri) {
		return uri
	}
	if uri == "" && len(c.Client.RedirectURIs) == 1 {
		return c.Client.RedirectURIs[0]
	}
	return ""
}
