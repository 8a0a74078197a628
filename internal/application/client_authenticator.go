package application

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"strings"

	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ClientAuthenticator validates client identity for token, revocation and
// introspection calls. Dispatch is by the authentication method declared in
// the client's configuration; presenting credentials for a different method
// fails.
type ClientAuthenticator struct {
	serverRepo        domain.ServerConfigurationRepository
	clientRepo        domain.ClientConfigurationRepository
	assertionVerifier domain.ClientAssertionVerifier
	logger            *zap.Logger
}

// NewClientAuthenticator creates a new ClientAuthenticator
func NewClientAuthenticator(
	serverRepo domain.ServerConfigurationRepository,
	clientRepo domain.ClientConfigurationRepository,
	assertionVerifier domain.ClientAssertionVerifier,
	logger *zap.Logger,
) *ClientAuthenticator {
	return &ClientAuthenticator{
		serverRepo:        serverRepo,
		clientRepo:        clientRepo,
		assertionVerifier: assertionVerifier,
		logger:            logger,
	}
}

// Authenticate confirms the client's identity and returns its credentials
// for the call, including the certificate thumbprint when mTLS was used
func (a *ClientAuthenticator) Authenticate(ctx context.Context, tenantID string, req *domain.ClientAuthenticationRequest) (*domain.ClientCredentials, error) {
	clientID := req.ResolveClientID()
	if clientID == "" && req.ClientAssertion != "" {
		// private_key_jwt clients identify themselves only in the assertion
		var err error
		clientID, err = unverifiedAssertionIssuer(req.ClientAssertion)
		if err != nil {
			return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client_assertion is malformed")
		}
	}
	if clientID == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client identification is missing")
	}

	client, err := a.clientRepo.Get(ctx, tenantID, clientID)
	if err != nil {
		a.logger.Warn("Client authentication for unknown client",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", clientID))
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client is not registered")
	}

	switch client.AuthenticationMethod {
	case domain.ClientSecretBasic:
		return a.authenticateSecretBasic(client, req)
	case domain.ClientSecretPost:
		return a.authenticateSecretPost(client, req)
	case domain.ClientSecretJwt, domain.PrivateKeyJwt:
		return a.authenticateAssertion(ctx, tenantID, client, req)
	case domain.TLSClientAuth:
		return a.authenticateTLS(client, req, false)
	case domain.SelfSignedTLSClientAuth:
		return a.authenticateTLS(client, req, true)
	case domain.ClientAuthNone:
		if req.HasSecret() || req.ClientAssertion != "" {
			return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "public client must not present credentials")
		}
		return &domain.ClientCredentials{ClientID: client.ClientID, AuthMethod: domain.ClientAuthNone}, nil
	default:
		a.logger.Error("Client has no valid authentication method configured",
			zap.String("client_id", client.ClientID),
			zap.String("method", string(client.AuthenticationMethod)))
		return nil, domain.ErrInternal
	}
}

func (a *ClientAuthenticator) authenticateSecretBasic(client *domain.ClientConfiguration, req *domain.ClientAuthenticationRequest) (*domain.ClientCredentials, error) {
	if req.BasicClientID == "" || req.BasicClientSecret == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client_secret_basic credentials are required")
	}
	if !secretMatches(client.ClientSecret, req.BasicClientSecret) {
		a.logger.Warn("Client secret mismatch",
			zap.String("client_id", client.ClientID),
			zap.String("method", string(domain.ClientSecretBasic)))
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client authentication failed")
	}
	return &domain.ClientCredentials{ClientID: client.ClientID, AuthMethod: domain.ClientSecretBasic}, nil
}

func (a *ClientAuthenticator) authenticateSecretPost(client *domain.ClientConfiguration, req *domain.ClientAuthenticationRequest) (*domain.ClientCredentials, error) {
	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client_secret_post credentials are required")
	}
	if !secretMatches(client.ClientSecret, req.ClientSecret) {
		a.logger.Warn("Client secret mismatch",
			zap.String("client_id", client.ClientID),
			zap.String("method", string(domain.ClientSecretPost)))
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client authentication failed")
	}
	return &domain.ClientCredentials{ClientID: client.ClientID, AuthMethod: domain.ClientSecretPost}, nil
}

func (a *ClientAuthenticator) authenticateAssertion(ctx context.Context, tenantID string, client *domain.ClientConfiguration, req *domain.ClientAuthenticationRequest) (*domain.ClientCredentials, error) {
	if req.ClientAssertion == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client_assertion is required")
	}
	if req.ClientAssertionType != domain.ClientAssertionType {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client_assertion_type is not supported")
	}

	server, err := a.serverRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, domain.ErrServerConfigurationNotFound
	}

	assertedID, err := a.assertionVerifier.Verify(ctx, req.ClientAssertion, client, server.TokenEndpoint)
	if err != nil {
		a.logger.Warn("Client assertion verification failed",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client assertion verification failed")
	}
	if assertedID != client.ClientID {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client assertion subject does not match the client")
	}
	return &domain.ClientCredentials{ClientID: client.ClientID, AuthMethod: client.AuthenticationMethod}, nil
}

func (a *ClientAuthenticator) authenticateTLS(client *domain.ClientConfiguration, req *domain.ClientAuthenticationRequest, selfSigned bool) (*domain.ClientCredentials, error) {
	if req.ClientCertificate == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client certificate is required")
	}

	cert, err := parseCertificate(req.ClientCertificate)
	if err != nil {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client certificate could not be parsed")
	}
	thumbprint := certThumbprint(cert)

	if selfSigned {
		registered, err := parseCertificate(client.TLSClientCertificate)
		if err != nil {
			a.logger.Error("Registered client certificate could not be parsed",
				zap.String("client_id", client.ClientID),
				zap.Error(err))
			return nil, domain.ErrInternal
		}
		if certThumbprint(registered) != thumbprint {
			return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client certificate does not match the registered certificate")
		}
	} else {
		if !subjectDNMatches(client.TLSSubjectDN, cert) {
			return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client certificate subject does not match the registered DN")
		}
	}

	return &domain.ClientCredentials{
		ClientID:              client.ClientID,
		AuthMethod:            client.AuthenticationMethod,
		CertificateThumbprint: thumbprint,
	}, nil
}

// secretMatches compares a presented secret against the registered one.
// Secrets stored as bcrypt hashes are compared with bcrypt; otherwise a
// constant-time byte comparison is used.
func secretMatches(registered, presented string) bool {
	if strings.HasPrefix(registered, "$2a$") || strings.HasPrefix(registered, "$2b$") {
		return bcrypt.CompareHashAndPassword([]byte(registered), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(registered), []byte(presented)) == 1
}

// parseCertificate decodes a PEM or URL-encoded PEM certificate as forwarded
// by the TLS-terminating proxy
func parseCertificate(raw string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, domain.ErrInternal
	}
	return x509.ParseCertificate(block.Bytes)
}

// certThumbprint computes the base64url SHA-256 thumbprint used for
// sender-constrained token binding (RFC 8705)
func certThumbprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func subjectDNMatches(registeredDN string, cert *x509.Certificate) bool {
	return registeredDN != "" && cert.Subject.String() == registeredDN
}

// unverifiedAssertionIssuer extracts the issuer claim from an unverified
// assertion so the client configuration can be loaded before verification
func unverifiedAssertionIssuer(assertion string) (string, error) {
	parts := strings.Split(assertion, ".")
	if len(parts) != 3 {
		return "", domain.ErrInternal
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	var claims struct {
		Issuer string `json:"iss"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", err
	}
	return claims.Issuer, nil
}
