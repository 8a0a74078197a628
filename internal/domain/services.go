package domain

import (
	"context"
	"net/url"
	"time"
)

// AuthorizationResponse is the outcome of consuming an authorization request
// via authorize or deny: the redirect the transport adapter sends the
// user agent to.
type AuthorizationResponse struct {
	RedirectURI string
	Code        string
	State       string
}

// Location assembles the full redirect location
func (r *AuthorizationResponse) Location() string {
	u, err := url.Parse(r.RedirectURI)
	if err != nil {
		return r.RedirectURI
	}
	q := u.Query()
	if r.Code != "" {
		q.Set("code", r.Code)
	}
	if r.State != "" {
		q.Set("state", r.State)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// BackchannelAuthenticationResponse is the successful outcome of a CIBA
// backchannel authentication request
type BackchannelAuthenticationResponse struct {
	AuthReqID string `json:"auth_req_id"`
	ExpiresIn int64  `json:"expires_in"`
	Interval  int64  `json:"interval,omitempty"`
}

// PushedAuthorizationResponse is the successful outcome of a pushed
// authorization request per RFC 9126
type PushedAuthorizationResponse struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int64  `json:"expires_in"`
}

// AuthorizationService drives the authorization request lifecycle
type AuthorizationService interface {
	// Request builds, verifies and persists an authorization request.
	// A request_uri carrying the pushed urn prefix resumes a previously
	// pushed request instead of dereferencing anything.
	Request(ctx context.Context, tenantID string, parameters url.Values) (*AuthorizationRequest, error)

	// Push authenticates the client, verifies the pushed parameters and
	// stores them for later reference by request_uri
	Push(ctx context.Context, tenantID string, parameters url.Values, auth *ClientAuthenticationRequest) (*PushedAuthorizationResponse, error)

	// Authorize consumes a pending request after end-user approval and
	// issues an authorization code
	Authorize(ctx context.Context, tenantID, requestID, userID string, authTime time.Time) (*AuthorizationResponse, error)

	// Deny consumes a pending request after end-user refusal
	Deny(ctx context.Context, tenantID, requestID, reason string) (*AuthorizationResponse, error)
}

// TokenService dispatches token endpoint calls by grant type
type TokenService interface {
	// Token authenticates the client, selects a grant service and issues a token
	Token(ctx context.Context, tenantID string, parameters url.Values, auth *ClientAuthenticationRequest) (*OAuthToken, error)
}

// CibaService drives the backchannel authentication transaction lifecycle
type CibaService interface {
	// Request builds, verifies and persists a backchannel transaction
	Request(ctx context.Context, tenantID string, parameters url.Values, auth *ClientAuthenticationRequest) (*BackchannelAuthenticationResponse, error)

	// Authorize transitions a transaction to AUTHORIZED after the
	// authentication device completes interaction
	Authorize(ctx context.Context, tenantID, authReqID string) error

	// Deny transitions a transaction to DENIED
	Deny(ctx context.Context, tenantID, authReqID string) error
}

// IntrospectionService reports and mutates issued token state
type IntrospectionService interface {
	// Introspect resolves a token value and reports its state per RFC 7662
	Introspect(ctx context.Context, tenantID, token, clientCertificate string) (map[string]interface{}, error)

	// Revoke authenticates the client and deletes the token if it exists,
	// per RFC 7009
	Revoke(ctx context.Context, tenantID, token string, auth *ClientAuthenticationRequest) error
}

// TokenSigner signs access and ID tokens and exposes the verification keys
type TokenSigner interface {
	// SignAccessToken signs a JWT access token for the aggregate
	SignAccessToken(server *ServerConfiguration, token *OAuthToken) (string, error)

	// SignIDToken signs an ID token for the subject and audience
	SignIDToken(server *ServerConfiguration, clientID, subject, nonce string, authTime time.Time, claims map[string]interface{}, duration time.Duration) (string, error)

	// JWKS returns the public signing keys in JWK Set form
	JWKS(ctx context.Context) (map[string]interface{}, error)
}
