package domain

import "context"

// ClientAuthenticationType is the authentication method declared in the
// client's configuration. A client uses exactly one configured method.
type ClientAuthenticationType string

const (
	ClientSecretBasic       ClientAuthenticationType = "client_secret_basic"
	ClientSecretPost        ClientAuthenticationType = "client_secret_post"
	ClientSecretJwt         ClientAuthenticationType = "client_secret_jwt"
	PrivateKeyJwt           ClientAuthenticationType = "private_key_jwt"
	TLSClientAuth           ClientAuthenticationType = "tls_client_auth"
	SelfSignedTLSClientAuth ClientAuthenticationType = "self_signed_tls_client_auth"
	ClientAuthNone          ClientAuthenticationType = "none"
)

// ClientAssertionType is the only client_assertion_type value accepted at the
// token endpoint
const ClientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// ClientAuthenticationRequest bundles the credentials a client presented on a
// token, revocation or introspection call.
type ClientAuthenticationRequest struct {
	BasicClientID       string
	BasicClientSecret   string
	ClientID            string
	ClientSecret        string
	ClientAssertion     string
	ClientAssertionType string
	ClientCertificate   string
}

// ResolveClientID returns the client identifier claimed by the request,
// preferring Basic credentials over body parameters
func (r *ClientAuthenticationRequest) ResolveClientID() string {
	if r.BasicClientID != "" {
		return r.BasicClientID
	}
	return r.ClientID
}

// HasSecret reports whether any shared secret was presented
func (r *ClientAuthenticationRequest) HasSecret() bool {
	return r.BasicClientSecret != "" || r.ClientSecret != ""
}

// ClientCredentials is the authenticated identity of a client for a single
// call. It is produced by the client authenticator and never persisted.
type ClientCredentials struct {
	ClientID              string
	AuthMethod            ClientAuthenticationType
	CertificateThumbprint string
}

// ClientAssertionVerifier verifies a client-assertion JWT against the
// client's registered key material or shared secret. Resolution of remote
// JWKS may block on network I/O and must be bounded by the context deadline.
type ClientAssertionVerifier interface {
	// Verify checks signature, issuer, subject, audience and expiry of the
	// assertion and returns the asserted client id
	Verify(ctx context.Context, assertion string, client *ClientConfiguration, tokenEndpoint string) (string, error)
}
