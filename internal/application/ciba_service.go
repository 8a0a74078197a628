package application

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

// CibaService builds, verifies and advances backchannel authentication
// transactions
type CibaService struct {
	serverRepo    domain.ServerConfigurationRepository
	clientRepo    domain.ClientConfigurationRepository
	cibaRepo      domain.BackchannelTransactionRepository
	userRepo      domain.UserRepository
	authenticator *ClientAuthenticator
	decoder       domain.RequestObjectDecoder
	verifier      *CibaVerifier
	notifier      domain.ClientNotifier
	issuer        *tokenIssuer
	tokenRepo     domain.OAuthTokenRepository
	logger        *zap.Logger
}

// NewCibaService creates a new CibaService
func NewCibaService(
	serverRepo domain.ServerConfigurationRepository,
	clientRepo domain.ClientConfigurationRepository,
	cibaRepo domain.BackchannelTransactionRepository,
	userRepo domain.UserRepository,
	tokenRepo domain.OAuthTokenRepository,
	authenticator *ClientAuthenticator,
	decoder domain.RequestObjectDecoder,
	verifier *CibaVerifier,
	notifier domain.ClientNotifier,
	signer domain.TokenSigner,
	logger *zap.Logger,
) domain.CibaService {
	return &CibaService{
		serverRepo:    serverRepo,
		clientRepo:    clientRepo,
		cibaRepo:      cibaRepo,
		userRepo:      userRepo,
		tokenRepo:     tokenRepo,
		authenticator: authenticator,
		decoder:       decoder,
		verifier:      verifier,
		notifier:      notifier,
		issuer:        newTokenIssuer(userRepo, signer, logger),
		logger:        logger,
	}
}

// Request authenticates the client, builds and verifies the backchannel
// request context and creates a transaction in the CREATED state
func (s *CibaService) Request(ctx context.Context, tenantID string, parameters url.Values, auth *domain.ClientAuthenticationRequest) (*domain.BackchannelAuthenticationResponse, error) {
	s.logger.Debug("Building backchannel authentication request",
		zap.String("tenant_id", tenantID))

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

	rc, err := s.buildContext(ctx, tenantID, parameters, server, client)
	if err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(rc); err != nil {
		s.logger.Warn("Backchannel request rejected",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, err
	}

	user, err := s.resolveUser(ctx, rc)
	if err != nil {
		return nil, err
	}

	transaction := s.buildTransaction(rc, server, client, user.ID.String())
	if err := s.cibaRepo.Create(ctx, transaction); err != nil {
		s.logger.Error("Failed to store backchannel transaction", zap.Error(err))
		return nil, domain.ErrInternal
	}

	response := &domain.BackchannelAuthenticationResponse{
		AuthReqID: transaction.AuthReqID,
		ExpiresIn: int64(time.Until(transaction.ExpiresAt).Seconds()),
	}
	if client.BackchannelDeliveryMode == domain.DeliveryModePoll || client.BackchannelDeliveryMode == domain.DeliveryModePing {
		response.Interval = int64(transaction.Interval.Seconds())
	}
	return response, nil
}

// buildContext assembles the backchannel request, decoding the signed
// request object when one is presented
func (s *CibaService) buildContext(ctx context.Context, tenantID string, parameters url.Values, server *domain.ServerConfiguration, client *domain.ClientConfiguration) (*domain.CibaRequestContext, error) {
	rc := &domain.CibaRequestContext{
		TenantID:   tenantID,
		Pattern:    domain.PatternNormal,
		Parameters: parameters,
		Server:     server,
		Client:     client,
	}

	if raw := parameters.Get("request"); raw != "" {
		rc.Pattern = domain.PatternRequestObject
		claims, err := s.decoder.Decode(ctx, raw, client, server)
		if err != nil {
			s.logger.Warn("Failed to decode backchannel request object",
				zap.String("client_id", client.ClientID),
				zap.Error(err))
			return nil, domain.NewOAuthError(domain.ErrorInvalidRequestObject, "request object is invalid")
		}
		rc.JoseClaims = claims
	}

	scopes := client.FilterScopes(rc.RequestedScopes())
	rc.Profile = domain.DeriveProfile(scopes, server)

	requestedExpiry := server.BackchannelAuthRequestDuration
	if raw := rc.Param("requested_expiry"); raw != "" {
		if seconds, err := parseSeconds(raw); err == nil && seconds > 0 && seconds < requestedExpiry {
			requestedExpiry = seconds
		}
	}

	details, _ := domain.ParseAuthorizationDetails(rc.Param("authorization_details"))
	rc.Request = &domain.BackchannelAuthenticationRequest{
		TenantID:                tenantID,
		ClientID:                client.ClientID,
		Scopes:                  scopes,
		LoginHint:               rc.Param("login_hint"),
		LoginHintToken:          rc.Param("login_hint_token"),
		IDTokenHint:             rc.Param("id_token_hint"),
		BindingMessage:          rc.Param("binding_message"),
		UserCode:                rc.Param("user_code"),
		ClientNotificationToken: rc.Param("client_notification_token"),
		ACRValues:               rc.Param("acr_values"),
		RequestedExpiry:         requestedExpiry,
		AuthorizationDetails:    details,
		RequestObject:           parameters.Get("request"),
	}
	return rc, nil
}

// resolveUser maps the supplied hint to a known user
func (s *CibaService) resolveUser(ctx context.Context, rc *domain.CibaRequestContext) (*domain.User, error) {
	hint := rc.Request.LoginHint
	if hint == "" {
		hint = rc.Request.LoginHintToken
	}
	if hint == "" {
		hint = rc.Request.IDTokenHint
	}
	user, err := s.userRepo.FindByHint(ctx, rc.TenantID, hint)
	if err != nil {
		s.logger.Warn("Backchannel hint did not resolve to a user",
			zap.String("tenant_id", rc.TenantID))
		return nil, domain.NewOAuthError(domain.ErrorInvalidRequest, "hint does not identify a known user")
	}
	return user, nil
}

func (s *CibaService) buildTransaction(rc *domain.CibaRequestContext, server *domain.ServerConfiguration, client *domain.ClientConfiguration, userID string) *domain.BackchannelTransaction {
	now := time.Now()
	return &domain.BackchannelTransaction{
		AuthReqID:               domain.NewID(),
		TenantID:                rc.TenantID,
		ClientID:                client.ClientID,
		UserID:                  userID,
		Scopes:                  rc.Request.Scopes,
		BindingMessage:          rc.Request.BindingMessage,
		ClientNotificationToken: rc.Request.ClientNotificationToken,
		DeliveryMode:            client.BackchannelDeliveryMode,
		Status:                  domain.TransactionCreated,
		Interval:                server.BackchannelPollingInterval,
		AuthorizationDetails:    rc.Request.AuthorizationDetails,
		ExpiresAt:               now.Add(rc.Request.RequestedExpiry),
		CreatedAt:               now,
	}
}

// Authorize transitions the transaction to AUTHORIZED and triggers ping or
// push delivery per the client's registered mode
func (s *CibaService) Authorize(ctx context.Context, tenantID, authReqID string) error {
	s.logger.Debug("Authorizing backchannel transaction",
		zap.String("tenant_id", tenantID),
		zap.String("auth_req_id", authReqID))

	transaction, err := s.cibaRepo.Get(ctx, tenantID, authReqID)
	if err != nil {
		return domain.ErrTransactionNotFound
	}

	if err := transaction.Authorize(time.Now()); err != nil {
		// Persist a lazily detected expiry before reporting the failure
		if transaction.Status == domain.TransactionExpired {
			if updateErr := s.cibaRepo.Transition(ctx, transaction); updateErr != nil && updateErr != domain.ErrTransactionTerminal {
				s.logger.Error("Failed to persist transaction expiry", zap.Error(updateErr))
			}
		}
		return err
	}

	if err := s.cibaRepo.Transition(ctx, transaction); err != nil {
		if err == domain.ErrTransactionTerminal {
			// a racing deny or expiry won; do not deliver tokens
			return domain.ErrTransactionTerminal
		}
		s.logger.Error("Failed to persist transaction authorization", zap.Error(err))
		return domain.ErrInternal
	}

	client, err := s.clientRepo.Get(ctx, tenantID, transaction.ClientID)
	if err != nil {
		return domain.ErrClientNotFound
	}

	switch client.BackchannelDeliveryMode {
	case domain.DeliveryModePing:
		if err := s.notifier.NotifyPing(ctx, client.BackchannelNotificationURI, transaction.ClientNotificationToken, authReqID); err != nil {
			s.logger.Error("Failed to deliver ping notification",
				zap.String("client_id", client.ClientID),
				zap.Error(err))
		}
	case domain.DeliveryModePush:
		if err := s.pushTokens(ctx, tenantID, client, transaction); err != nil {
			return err
		}
	}

	return nil
}

// pushTokens issues the token set and delivers it directly to the client's
// notification endpoint
func (s *CibaService) pushTokens(ctx context.Context, tenantID string, client *domain.ClientConfiguration, transaction *domain.BackchannelTransaction) error {
	server, err := s.serverRepo.Get(ctx, tenantID)
	if err != nil {
		return domain.ErrServerConfigurationNotFound
	}

	token, err := s.issuer.issue(ctx, server, client, issuance{
		subject:              transaction.UserID,
		scopes:               transaction.Scopes,
		idTokenClaims:        transaction.IDTokenClaims,
		authorizationDetails: transaction.AuthorizationDetails,
		withRefreshToken:     client.SupportsGrantType("refresh_token"),
	})
	if err != nil {
		return err
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		s.logger.Error("Failed to store pushed token", zap.Error(err))
		return domain.ErrInternal
	}

	if err := s.notifier.NotifyPush(ctx, client.BackchannelNotificationURI, transaction.ClientNotificationToken, transaction.AuthReqID, token); err != nil {
		s.logger.Error("Failed to deliver push notification",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return domain.ErrInternal
	}

	// Tokens are delivered; the transaction is consumed
	if err := s.cibaRepo.Delete(ctx, tenantID, transaction.AuthReqID); err != nil {
		s.logger.Error("Failed to delete consumed transaction", zap.Error(err))
	}
	return nil
}

// Deny transitions the transaction to DENIED
func (s *CibaService) Deny(ctx context.Context, tenantID, authReqID string) error {
	s.logger.Debug("Denying backchannel transaction",
		zap.String("tenant_id", tenantID),
		zap.String("auth_req_id", authReqID))

	transaction, err := s.cibaRepo.Get(ctx, tenantID, authReqID)
	if err != nil {
		return domain.ErrTransactionNotFound
	}

	if err := transaction.Deny(time.Now()); err != nil {
		if transaction.Status == domain.TransactionExpired {
			if updateErr := s.cibaRepo.Transition(ctx, transaction); updateErr != nil && updateErr != domain.ErrTransactionTerminal {
				s.logger.Error("Failed to persist transaction expiry", zap.Error(updateErr))
			}
		}
		return err
	}

	if err := s.cibaRepo.Transition(ctx, transaction); err != nil {
		if err == domain.ErrTransactionTerminal {
			return domain.ErrTransactionTerminal
		}
		s.logger.Error("Failed to persist transaction denial", zap.Error(err))
		return domain.ErrInternal
	}
	return nil
}

// parseSeconds parses a positive integer seconds parameter
func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}
