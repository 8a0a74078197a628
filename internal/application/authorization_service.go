package application

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

// AuthorizationService builds, verifies and consumes authorization requests
type AuthorizationService struct {
	serverRepo    domain.ServerConfigurationRepository
	clientRepo    domain.ClientConfigurationRepository
	requestRepo   domain.AuthorizationRequestRepository
	codeRepo      domain.AuthorizationCodeGrantRepository
	grantedRepo   domain.AuthorizationGrantedRepository
	fetcher       domain.RequestObjectFetcher
	decoder       domain.RequestObjectDecoder
	verifier      *AuthorizationVerifier
	authenticator *ClientAuthenticator
	logger        *zap.Logger
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(
	serverRepo domain.ServerConfigurationRepository,
	clientRepo domain.ClientConfigurationRepository,
	requestRepo domain.AuthorizationRequestRepository,
	codeRepo domain.AuthorizationCodeGrantRepository,
	grantedRepo domain.AuthorizationGrantedRepository,
	fetcher domain.RequestObjectFetcher,
	decoder domain.RequestObjectDecoder,
	verifier *AuthorizationVerifier,
	authenticator *ClientAuthenticator,
	logger *zap.Logger,
) domain.AuthorizationService {
	return &AuthorizationService{
		serverRepo:    serverRepo,
		clientRepo:    clientRepo,
		requestRepo:   requestRepo,
		codeRepo:      codeRepo,
		grantedRepo:   grantedRepo,
		fetcher:       fetcher,
		decoder:       decoder,
		verifier:      verifier,
		authenticator: authenticator,
		logger:        logger,
	}
}

// Request resolves the inbound parameters into a request context, runs the
// verifier pipeline and persists the validated authorization request
func (s *AuthorizationService) Request(ctx context.Context, tenantID string, parameters url.Values) (*domain.AuthorizationRequest, error) {
	s.logger.Debug("Building authorization request",
		zap.String("tenant_id", tenantID),
		zap.String("client_id", parameters.Get("client_id")))

	clientID := parameters.Get("client_id")
	if clientID == "" {
		// Fails before the verifier ever runs
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "client_id is required")
	}

	if requestURI := parameters.Get("request_uri"); strings.HasPrefix(requestURI, domain.PushedRequestURIPrefix) {
		return s.resumePushedRequest(ctx, tenantID, clientID, requestURI)
	}

	server, err := s.serverRepo.Get(ctx, tenantID)
	if err != nil {
		s.logger.Error("Failed to find server configuration",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return nil, domain.ErrServerConfigurationNotFound
	}

	client, err := s.clientRepo.Get(ctx, tenantID, clientID)
	if err != nil {
		s.logger.Error("Failed to find client configuration",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", clientID),
			zap.Error(err))
		return nil, domain.ErrClientNotFound
	}

	rc, err := s.buildContext(ctx, tenantID, parameters, server, client)
	if err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(rc); err != nil {
		s.logger.Warn("Authorization request rejected",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", clientID),
			zap.Error(err))
		return nil, err
	}

	request := s.buildRequest(rc)
	if err := s.requestRepo.Create(ctx, request); err != nil {
		s.logger.Error("Failed to store authorization request",
			zap.Error(err))
		return nil, domain.ErrInternal
	}

	return request, nil
}

// Push evaluates the pushed parameters under the authenticated client and
// stores the verified request; the returned urn resumes it at the
// authorization endpoint
func (s *AuthorizationService) Push(ctx context.Context, tenantID string, parameters url.Values, auth *domain.ClientAuthenticationRequest) (*domain.PushedAuthorizationResponse, error) {
	if parameters.Get("request_uri") != "" {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "request_uri must not be used at the pushed authorization endpoint")
	}

	credentials, err := s.authenticator.Authenticate(ctx, tenantID, auth)
	if err != nil {
		return nil, err
	}
	if clientID := parameters.Get("client_id"); clientID != "" && clientID != credentials.ClientID {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "client_id does not match the authenticated client")
	}

	server, err := s.serverRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, domain.ErrServerConfigurationNotFound
	}
	client, err := s.clientRepo.Get(ctx, tenantID, credentials.ClientID)
	if err != nil {
		return nil, domain.ErrClientNotFound
	}

	rc, err := s.buildContext(ctx, tenantID, parameters, server, client)
	if err != nil {
		return nil, err
	}
	rc.Pushed = true

	if err := s.verifier.Verify(rc); err != nil {
		s.logger.Warn("Pushed authorization request rejected",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, err
	}

	request := s.buildRequest(rc)
	if err := s.requestRepo.Create(ctx, request); err != nil {
		s.logger.Error("Failed to store pushed authorization request", zap.Error(err))
		return nil, domain.ErrInternal
	}

	return &domain.PushedAuthorizationResponse{
		RequestURI: domain.PushedRequestURIPrefix + request.ID,
		ExpiresIn:  int64(time.Until(request.ExpiresAt).Seconds()),
	}, nil
}

// resumePushedRequest resolves a pushed urn from the request store; nothing
// is dereferenced over the network
func (s *AuthorizationService) resumePushedRequest(ctx context.Context, tenantID, clientID, requestURI string) (*domain.AuthorizationRequest, error) {
	id := strings.TrimPrefix(requestURI, domain.PushedRequestURIPrefix)
	request, err := s.requestRepo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequestURI, "request_uri is unknown or expired")
	}
	if request.ClientID != clientID {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequestURI, "request_uri was pushed by another client")
	}
	if request.Expired(time.Now()) {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequestURI, "request_uri is unknown or expired")
	}
	return request, nil
}

// buildContext selects the request pattern, decodes any request object and
// derives the authorization profile
func (s *AuthorizationService) buildContext(ctx context.Context, tenantID string, parameters url.Values, server *domain.ServerConfiguration, client *domain.ClientConfiguration) (*domain.OAuthRequestContext, error) {
	rc := &domain.OAuthRequestContext{
		TenantID:   tenantID,
		Pattern:    domain.PatternNormal,
		Parameters: parameters,
		Server:     server,
		Client:     client,
	}

	switch {
	case parameters.Get("request") != "":
		rc.Pattern = domain.PatternRequestObject
		claims, err := s.decoder.Decode(ctx, parameters.Get("request"), client, server)
		if err != nil {
			s.logger.Warn("Failed to decode request object",
				zap.String("client_id", client.ClientID),
				zap.Error(err))
			return nil, domain.NewOAuthError(domain.ErrorInvalidRequestObject, "request object is invalid")
		}
		rc.JoseClaims = claims

	case parameters.Get("request_uri") != "":
		requestURI := parameters.Get("request_uri")
		if !client.HasRequestURI(requestURI) {
			return nil, domain.NewOAuthError(domain.ErrorInvalidRequestURI, "request_uri is not registered for the client")
		}
		rc.Pattern = domain.PatternRequestURI
		rawJose, err := s.fetcher.Fetch(ctx, requestURI)
		if err != nil {
			s.logger.Warn("Failed to fetch request_uri",
				zap.String("client_id", client.ClientID),
				zap.Error(err))
			return nil, domain.NewOAuthError(domain.ErrorInvalidRequestURI, "request_uri could not be resolved")
		}
		claims, err := s.decoder.Decode(ctx, rawJose, client, server)
		if err != nil {
			s.logger.Warn("Failed to decode fetched request object",
				zap.String("client_id", client.ClientID),
				zap.Error(err))
			return nil, domain.NewOAuthError(domain.ErrorInvalidRequestObject, "request object is invalid")
		}
		rc.JoseClaims = claims
	}

	rc.Scopes = client.FilterScopes(rc.RequestedScopes())
	rc.Profile = domain.DeriveProfile(rc.Scopes, server)
	return rc, nil
}

// buildRequest freezes the verified context into the persisted record
func (s *AuthorizationService) buildRequest(rc *domain.OAuthRequestContext) *domain.AuthorizationRequest {
	now := time.Now()
	details, _ := domain.ParseAuthorizationDetails(rc.Param("authorization_details"))
	return &domain.AuthorizationRequest{
		ID:                   domain.NewID(),
		TenantID:             rc.TenantID,
		Profile:              rc.Profile,
		ClientID:             rc.Client.ClientID,
		Scopes:               rc.Scopes,
		ResponseType:         rc.ResponseType(),
		ResponseMode:         rc.ResponseMode(),
		RedirectURI:          rc.ResolvedRedirectURI(),
		State:                rc.State(),
		Nonce:                rc.Param("nonce"),
		CodeChallenge:        rc.Param("code_challenge"),
		CodeChallengeMethod:  rc.Param("code_challenge_method"),
		Claims:               rc.Param("claims"),
		AuthorizationDetails: details,
		RequestObject:        rc.Parameters.Get("request"),
		CreatedAt:            now,
		ExpiresAt:            now.Add(rc.Server.AuthorizationRequestDuration),
	}
}

// Authorize consumes the pending request, merges the consent grant and
// issues a single-use authorization code
func (s *AuthorizationService) Authorize(ctx context.Context, tenantID, requestID, userID string, authTime time.Time) (*domain.AuthorizationResponse, error) {
	s.logger.Debug("Authorizing request",
		zap.String("tenant_id", tenantID),
		zap.String("request_id", requestID),
		zap.String("user_id", userID))

	request, err := s.requestRepo.Get(ctx, tenantID, requestID)
	if err != nil {
		s.logger.Error("Failed to find authorization request",
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, domain.ErrAuthorizationRequestNotFound
	}
	if request.Expired(time.Now()) {
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "authorization request has expired")
	}

	server, err := s.serverRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, domain.ErrServerConfigurationNotFound
	}

	idTokenClaims, userinfoClaims := requestedClaims(request.Claims)
	if err := s.recordConsent(ctx, request, userID, idTokenClaims, userinfoClaims); err != nil {
		return nil, err
	}

	grant := &domain.AuthorizationCodeGrant{
		Code:                 domain.NewID(),
		TenantID:             tenantID,
		AuthorizationID:      request.ID,
		ClientID:             request.ClientID,
		UserID:               userID,
		Scopes:               request.Scopes,
		IDTokenClaims:        idTokenClaims,
		UserinfoClaims:       userinfoClaims,
		AuthorizationDetails: request.AuthorizationDetails,
		RedirectURI:          request.RedirectURI,
		Nonce:                request.Nonce,
		CodeChallenge:        request.CodeChallenge,
		CodeChallengeMethod:  request.CodeChallengeMethod,
		AuthTime:             authTime,
		CreatedAt:            time.Now(),
		ExpiresAt:            time.Now().Add(server.AuthorizationCodeDuration),
	}

	if err := s.codeRepo.Create(ctx, grant); err != nil {
		s.logger.Error("Failed to store authorization code grant",
			zap.Error(err))
		return nil, domain.ErrInternal
	}

	if err := s.requestRepo.Delete(ctx, tenantID, requestID); err != nil {
		s.logger.Error("Failed to delete consumed authorization request",
			zap.String("request_id", requestID),
			zap.Error(err))
		// The code was issued; the request record is garbage at worst
	}

	return &domain.AuthorizationResponse{
		RedirectURI: request.RedirectURI,
		Code:        grant.Code,
		State:       request.State,
	}, nil
}

// recordConsent merges the newly granted scopes and claims into the stored
// consent grant. The store merges atomically per (tenant, client, user), so
// concurrent authorizations both land.
func (s *AuthorizationService) recordConsent(ctx context.Context, request *domain.AuthorizationRequest, userID string, idTokenClaims, userinfoClaims []string) error {
	now := time.Now()
	newGrant := domain.AuthorizationGranted{
		ID:             domain.NewID(),
		TenantID:       request.TenantID,
		ClientID:       request.ClientID,
		UserID:         userID,
		Scopes:         request.Scopes,
		IDTokenClaims:  idTokenClaims,
		UserinfoClaims: userinfoClaims,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.grantedRepo.Upsert(ctx, &newGrant); err != nil {
		s.logger.Error("Failed to record consent grant", zap.Error(err))
		return domain.ErrInternal
	}
	return nil
}

// Deny consumes the pending request with an access_denied outcome delivered
// to the client's redirect URI
func (s *AuthorizationService) Deny(ctx context.Context, tenantID, requestID, reason string) (*domain.AuthorizationResponse, error) {
	s.logger.Debug("Denying request",
		zap.String("tenant_id", tenantID),
		zap.String("request_id", requestID),
		zap.String("reason", reason))

	request, err := s.requestRepo.Get(ctx, tenantID, requestID)
	if err != nil {
		return nil, domain.ErrAuthorizationRequestNotFound
	}

	if err := s.requestRepo.Delete(ctx, tenantID, requestID); err != nil {
		s.logger.Error("Failed to delete denied authorization request",
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	denied := domain.NewOAuthError(domain.ErrorAccessDenied, reason)
	return nil, denied.WithRedirect(request.RedirectURI, request.State)
}

// requestedClaims splits the OIDC claims request parameter into the id_token
// and userinfo claim name sets
func requestedClaims(raw string) (idToken, userinfo []string) {
	if raw == "" {
		return nil, nil
	}
	parsed := struct {
		IDToken  map[string]interface{} `json:"id_token"`
		Userinfo map[string]interface{} `json:"userinfo"`
	}{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, nil
	}
	for name := range parsed.IDToken {
		idToken = append(idToken, name)
	}
	for name := range parsed.Userinfo {
		userinfo = append(userinfo, name)
	}
	return idToken, userinfo
}
