package domain

import (
	"context"
	"time"
)

// ServerConfiguration is the tenant-scoped authorization server configuration.
// It is a read-only snapshot loaded once per call and never mutated by the
// protocol engine.
type ServerConfiguration struct {
	TenantID                       string
	Issuer                         string
	AuthorizationEndpoint          string
	TokenEndpoint                  string
	IntrospectionEndpoint          string
	RevocationEndpoint             string
	UserinfoEndpoint               string
	JwksURI                        string
	BackchannelAuthEndpoint        string
	ScopesSupported                []string
	ResponseTypesSupported         []string
	GrantTypesSupported            []string
	FapiBaselineScopes             []string
	FapiAdvanceScopes              []string
	AuthorizationCodeDuration      time.Duration
	AuthorizationRequestDuration   time.Duration
	AccessTokenDuration            time.Duration
	RefreshTokenDuration           time.Duration
	IDTokenDuration                time.Duration
	RefreshTokenRotationEnabled    bool
	BackchannelAuthRequestDuration time.Duration
	BackchannelPollingInterval     time.Duration
	CreatedAt                      time.Time
	UpdatedAt                      time.Time
}

// SupportsGrantType reports whether the server has the grant type enabled
func (s *ServerConfiguration) SupportsGrantType(grantType string) bool {
	return contains(s.GrantTypesSupported, grantType)
}

// SupportsResponseType reports whether the server has the response type enabled
func (s *ServerConfiguration) SupportsResponseType(responseType string) bool {
	return contains(s.ResponseTypesSupported, responseType)
}

// ClientConfiguration is the tenant-scoped registration of an OAuth2 client.
type ClientConfiguration struct {
	TenantID                   string
	ClientID                   string
	ClientSecret               string
	ClientName                 string
	RedirectURIs               []string
	ResponseTypes              []string
	GrantTypes                 []string
	Scopes                     []string
	AuthenticationMethod       ClientAuthenticationType
	Jwks                       string
	JwksURI                    string
	RequestURIs                []string
	RequireRequestObject       bool
	RequirePushedAuthorization bool
	TLSSubjectDN               string
	TLSClientCertificate       string
	AuthorizationSignedAlg     string
	BackchannelDeliveryMode    BackchannelTokenDeliveryMode
	BackchannelNotificationURI string
	BackchannelUserCodeEnabled bool
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// SupportsGrantType reports whether the client has the grant type registered
func (c *ClientConfiguration) SupportsGrantType(grantType string) bool {
	return contains(c.GrantTypes, grantType)
}

// SupportsResponseType reports whether the client has the response type registered
func (c *ClientConfiguration) SupportsResponseType(responseType string) bool {
	return contains(c.ResponseTypes, responseType)
}

// HasRedirectURI reports whether the redirect URI is registered for the client
func (c *ClientConfiguration) HasRedirectURI(uri string) bool {
	return contains(c.RedirectURIs, uri)
}

// HasRequestURI reports whether the request URI is pre-registered for the client
func (c *ClientConfiguration) HasRequestURI(uri string) bool {
	return contains(c.RequestURIs, uri)
}

// FilterScopes returns the subset of the requested scopes the client is
// allowed to use, preserving request order
func (c *ClientConfiguration) FilterScopes(requested []string) []string {
	var filtered []string
	for _, scope := range requested {
		if contains(c.Scopes, scope) {
			filtered = append(filtered, scope)
		}
	}
	return filtered
}

// ServerConfigurationRepository defines lookup of tenant server configuration
type ServerConfigurationRepository interface {
	// Get finds the server configuration for a tenant
	Get(ctx context.Context, tenantID string) (*ServerConfiguration, error)
}

// ClientConfigurationRepository defines lookup of tenant client configuration
type ClientConfigurationRepository interface {
	// Get finds a client registered under the tenant
	Get(ctx context.Context, tenantID, clientID string) (*ClientConfiguration, error)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
