package application

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

// TokenService selects a grant service by grant_type and issues tokens
type TokenService struct {
	serverRepo     domain.ServerConfigurationRepository
	clientRepo     domain.ClientConfigurationRepository
	codeRepo       domain.AuthorizationCodeGrantRepository
	tokenRepo      domain.OAuthTokenRepository
	grantedRepo    domain.AuthorizationGrantedRepository
	cibaRepo       domain.BackchannelTransactionRepository
	authenticator  *ClientAuthenticator
	bearerVerifier domain.JwtBearerVerifier
	issuer         *tokenIssuer
	logger         *zap.Logger

	grantServices map[string]grantService
}

type grantService func(ctx context.Context, server *domain.ServerConfiguration, client *domain.ClientConfiguration, credentials *domain.ClientCredentials, parameters url.Values) (*domain.OAuthToken, error)

// NewTokenService creates a new TokenService with the built-in grant
// services registered
func NewTokenService(
	serverRepo domain.ServerConfigurationRepository,
	clientRepo domain.ClientConfigurationRepository,
	codeRepo domain.AuthorizationCodeGrantRepository,
	tokenRepo domain.OAuthTokenRepository,
	grantedRepo domain.AuthorizationGrantedRepository,
	cibaRepo domain.BackchannelTransactionRepository,
	userRepo domain.UserRepository,
	authenticator *ClientAuthenticator,
	bearerVerifier domain.JwtBearerVerifier,
	signer domain.TokenSigner,
	logger *zap.Logger,
) domain.TokenService {
	s := &TokenService{
		serverRepo:     serverRepo,
		clientRepo:     clientRepo,
		codeRepo:       codeRepo,
		tokenRepo:      tokenRepo,
		grantedRepo:    grantedRepo,
		cibaRepo:       cibaRepo,
		authenticator:  authenticator,
		bearerVerifier: bearerVerifier,
		issuer:         newTokenIssuer(userRepo, signer, logger),
		logger:         logger,
	}
	s.grantServices = map[string]grantService{
		"authorization_code": s.authorizationCodeGrant,
		"refresh_token":      s.refreshTokenGrant,
		"client_credentials": s.clientCredentialsGrant,
		domain.GrantTypeCiba: s.cibaGrant,
		"urn:ietf:params:oauth:grant-type:jwt-bearer": s.jwtBearerGrant,
	}
	return s
}

// Token authenticates the client, validates the grant preconditions and
// dispatches to the grant service
func (s *TokenService) Token(ctx context.Context, tenantID string, parameters url.Values, auth *domain.ClientAuthenticationRequest) (*domain.OAuthToken, error) {
	grantType := parameters.Get("grant_type")
	s.logger.Debug("Token request",
		zap.String("tenant_id", tenantID),
		zap.String("grant_type", grantType))

	if grantType == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "grant_type is required")
	}

	service, ok := s.grantServices[grantType]
	if !ok {
		return nil, domain.NewOAuthError(domain.ErrorUnsupportedGrantType, "grant_type is not supported")
	}

	server, err := s.serverRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, domain.ErrServerConfigurationNotFound
	}

	credentials, err := s.authenticator.Authenticate(ctx, tenantID, auth)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.Get(ctx, tenantID, credentials.ClientID)
	if err != nil {
		return nil, domain.NewOAuthError(domain.ErrorInvalidClient, "client is not registered")
	}

	if !server.SupportsGrantType(grantType) {
		return nil, domain.NewOAuthError(domain.ErrorUnsupportedGrantType, "grant_type is not enabled for the server")
	}
	if !client.SupportsGrantType(grantType) {
		return nil, domain.NewOAuthError(domain.ErrorUnauthorizedClient, "client is not registered for the grant_type")
	}

	token, err := service(ctx, server, client, credentials, parameters)
	if err != nil {
		return nil, err
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		s.logger.Error("Failed to store issued token", zap.Error(err))
		return nil, domain.ErrInternal
	}

	return token, nil
}

// authorizationCodeGrant exchanges a single-use authorization code, checking
// the PKCE verifier against the stored challenge
func (s *TokenService) authorizationCodeGrant(ctx context.Context, server *domain.ServerConfiguration, client *domain.ClientConfiguration, credentials *domain.ClientCredentials, parameters url.Values) (*domain.OAuthToken, error) {
	code := parameters.Get("code")
	if code == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "code is required")
	}

	grant, err := s.codeRepo.ConsumeOnce(ctx, server.TenantID, code)
	if err != nil {
		s.logger.Warn("Authorization code did not resolve",
			zap.String("client_id", credentials.ClientID))
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "authorization code is invalid")
	}
	if grant.ClientID != credentials.ClientID {
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "authorization code was issued to another client")
	}
	if grant.Expired(time.Now()) {
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "authorization code has expired")
	}
	if redirectURI := parameters.Get("redirect_uri"); redirectURI != "" && redirectURI != grant.RedirectURI {
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "redirect_uri does not match the authorization request")
	}

	if grant.CodeChallenge != "" {
		verifier := parameters.Get("code_verifier")
		if verifier == "" {
			return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "code_verifier is required")
		}
		if !pkceMatches(grant.CodeChallenge, grant.CodeChallengeMethod, verifier) {
			return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "code_verifier does not match the code_challenge")
		}
	}

	return s.issuer.issue(ctx, server, client, issuance{
		subject:              grant.UserID,
		scopes:               grant.Scopes,
		idTokenClaims:        grant.IDTokenClaims,
		authorizationDetails: grant.AuthorizationDetails,
		nonce:                grant.Nonce,
		authTime:             grant.AuthTime,
		thumbprint:           credentials.CertificateThumbprint,
		withRefreshToken:     client.SupportsGrantType("refresh_token"),
	})
}

// refreshTokenGrant exchanges a refresh token, rotating it when the server
// is configured to do so
func (s *TokenService) refreshTokenGrant(ctx context.Context, server *domain.ServerConfiguration, client *domain.ClientConfiguration, credentials *domain.ClientCredentials, parameters url.Values) (*domain.OAuthToken, error) {
	refreshToken := parameters.Get("refresh_token")
	if refreshToken == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "refresh_token is required")
	}

	stored, err := s.tokenRepo.FindByRefreshToken(ctx, server.TenantID, refreshToken)
	if err != nil {
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "refresh token is invalid")
	}
	if stored.ClientID != credentials.ClientID {
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "refresh token was issued to another client")
	}
	if stored.RefreshTokenExpired(time.Now()) {
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "refresh token has expired")
	}

	scopes := stored.Scopes
	if requested := strings.Fields(parameters.Get("scope")); len(requested) > 0 {
		// Narrowing only; a refresh must never widen the granted scopes
		var narrowed []string
		for _, scope := range requested {
			for _, granted := range stored.Scopes {
				if scope == granted {
					narrowed = append(narrowed, scope)
					break
				}
			}
		}
		if len(narrowed) == 0 {
			return nil, domain.NewOAuthError(domain.ErrorInvalidScope, "requested scope exceeds the original grant")
		}
		scopes = narrowed
	}

	token, err := s.issuer.issue(ctx, server, client, issuance{
		subject:              stored.Subject,
		scopes:               scopes,
		idTokenClaims:        stored.GrantedClaims,
		authorizationDetails: stored.AuthorizationDetails,
		thumbprint:           stored.CertificateThumbprint,
		withRefreshToken:     true,
	})
	if err != nil {
		return nil, err
	}

	if !server.RefreshTokenRotationEnabled {
		// same refresh token string, carried onto the replacing aggregate
		token.RefreshToken = stored.RefreshToken
		token.RefreshTokenExpiresAt = stored.RefreshTokenExpiresAt
	}

	// The consumed aggregate is superseded either way; exactly one row may
	// own a refresh token string
	if err := s.tokenRepo.Delete(ctx, server.TenantID, stored.ID); err != nil {
		s.logger.Error("Failed to delete superseded token aggregate", zap.Error(err))
	}

	return token, nil
}

// clientCredentialsGrant issues a token bound to the client itself, with no
// end-user binding
func (s *TokenService) clientCredentialsGrant(ctx context.Context, server *domain.ServerConfiguration, client *domain.ClientConfiguration, credentials *domain.ClientCredentials, parameters url.Values) (*domain.OAuthToken, error) {
	if credentials.AuthMethod == domain.ClientAuthNone {
		return nil, domain.NewOAuthError(domain.ErrorUnauthorizedClient, "public client cannot use client_credentials")
	}

	scopes := client.FilterScopes(strings.Fields(parameters.Get("scope")))
	return s.issuer.issue(ctx, server, client, issuance{
		scopes:     scopes,
		thumbprint: credentials.CertificateThumbprint,
	})
}

// cibaGrant resolves a pending backchannel transaction by auth_req_id,
// reporting the RFC-defined polling errors until the terminal state
func (s *TokenService) cibaGrant(ctx context.Context, server *domain.ServerConfiguration, client *domain.ClientConfiguration, credentials *domain.ClientCredentials, parameters url.Values) (*domain.OAuthToken, error) {
	authReqID := parameters.Get("auth_req_id")
	if authReqID == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "auth_req_id is required")
	}
	if client.BackchannelDeliveryMode == domain.DeliveryModePush {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "push delivery mode clients must not poll the token endpoint")
	}

	transaction, err := s.cibaRepo.Get(ctx, server.TenantID, authReqID)
	if err != nil {
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "auth_req_id is invalid")
	}
	if transaction.ClientID != credentials.ClientID {
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "auth_req_id was issued to another client")
	}

	now := time.Now()
	if transaction.Expired(now) {
		transaction.Status = domain.TransactionExpired
		if err := s.cibaRepo.Transition(ctx, transaction); err != nil && err != domain.ErrTransactionTerminal {
			s.logger.Error("Failed to persist lazy transaction expiry", zap.Error(err))
		}
		return nil, domain.NewOAuthError(domain.ErrorExpiredToken, "backchannel authentication request has expired")
	}

	switch transaction.Status {
	case domain.TransactionCreated:
		throttled := transaction.ThrottledAt(now)
		if err := s.cibaRepo.MarkPolled(ctx, server.TenantID, authReqID, now); err != nil {
			s.logger.Error("Failed to record poll time", zap.Error(err))
		}
		if throttled {
			return nil, domain.NewOAuthError(domain.ErrorSlowDown, "polling interval has not elapsed")
		}
		return nil, domain.NewOAuthError(domain.ErrorAuthorizationPending, "end-user authorization is pending")
	case domain.TransactionDenied:
		return nil, domain.NewOAuthError(domain.ErrorAccessDenied, "end-user denied the request")
	case domain.TransactionExpired:
		return nil, domain.NewOAuthError(domain.ErrorExpiredToken, "backchannel authentication request has expired")
	case domain.TransactionAuthorized:
	default:
		s.logger.Error("Backchannel transaction in unknown state",
			zap.String("auth_req_id", authReqID),
			zap.String("status", string(transaction.Status)))
		return nil, domain.ErrInternal
	}

	token, err := s.issuer.issue(ctx, server, client, issuance{
		subject:              transaction.UserID,
		scopes:               transaction.Scopes,
		idTokenClaims:        transaction.IDTokenClaims,
		authorizationDetails: transaction.AuthorizationDetails,
		thumbprint:           credentials.CertificateThumbprint,
		withRefreshToken:     client.SupportsGrantType("refresh_token"),
	})
	if err != nil {
		return nil, err
	}

	// auth_req_id is single-use once tokens are delivered
	if err := s.cibaRepo.Delete(ctx, server.TenantID, authReqID); err != nil {
		s.logger.Error("Failed to delete consumed transaction", zap.Error(err))
	}

	return token, nil
}

// jwtBearerGrant exchanges an RFC 7523 assertion for a token without
// end-user interaction
func (s *TokenService) jwtBearerGrant(ctx context.Context, server *domain.ServerConfiguration, client *domain.ClientConfiguration, credentials *domain.ClientCredentials, parameters url.Values) (*domain.OAuthToken, error) {
	assertion := parameters.Get("assertion")
	if assertion == "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "assertion is required")
	}

	subject, assertedScopes, err := s.bearerVerifier.Verify(ctx, assertion, client, server.TokenEndpoint)
	if err != nil {
		s.logger.Warn("JWT bearer assertion verification failed",
			zap.String("client_id", credentials.ClientID),
			zap.Error(err))
		return nil, domain.NewOAuthError(domain.ErrorInvalidGrant, "assertion verification failed")
	}

	scopes := client.FilterScopes(strings.Fields(parameters.Get("scope")))
	if len(scopes) == 0 {
		scopes = client.FilterScopes(assertedScopes)
	}

	return s.issuer.issue(ctx, server, client, issuance{
		subject:    subject,
		scopes:     scopes,
		thumbprint: credentials.CertificateThumbprint,
	})
}

// pkceMatches verifies the code_verifier against the stored challenge
func pkceMatches(challenge, method, verifier string) bool {
	switch method {
	case "S256":
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	default:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
