package application

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type cibaServiceMocks struct {
	serverRepo *MockServerConfigurationRepository
	clientRepo *MockClientConfigurationRepository
	cibaRepo   *MockBackchannelTransactionRepository
	userRepo   *MockUserRepository
	tokenRepo  *MockOAuthTokenRepository
	decoder    *MockRequestObjectDecoder
	notifier   *MockClientNotifier
	signer     *MockTokenSigner
}

func newCibaService(server *domain.ServerConfiguration, client *domain.ClientConfiguration) (domain.CibaService, *cibaServiceMocks) {
	m := &cibaServiceMocks{
		serverRepo: new(MockServerConfigurationRepository),
		clientRepo: new(MockClientConfigurationRepository),
		cibaRepo:   new(MockBackchannelTransactionRepository),
		userRepo:   new(MockUserRepository),
		tokenRepo:  new(MockOAuthTokenRepository),
		decoder:    new(MockRequestObjectDecoder),
		notifier:   new(MockClientNotifier),
		signer:     new(MockTokenSigner),
	}
	m.serverRepo.On("Get", mock.Anything, "tenant-1").Return(server, nil)
	m.clientRepo.On("Get", mock.Anything, "tenant-1", client.ClientID).Return(client, nil)
	m.signer.On("SignAccessToken", mock.Anything, mock.Anything).Return("signed.access.token", nil)
	m.signer.On("SignIDToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("signed.id.token", nil)

	authenticator := NewClientAuthenticator(m.serverRepo, m.clientRepo, new(MockClientAssertionVerifier), zap.NewNop())
	service := NewCibaService(
		m.serverRepo,
		m.clientRepo,
		m.cibaRepo,
		m.userRepo,
		m.tokenRepo,
		authenticator,
		m.decoder,
		NewCibaVerifier(zap.NewNop()),
		m.notifier,
		m.signer,
		zap.NewNop(),
	)
	return service, m
}

func cibaTestServer() *domain.ServerConfiguration {
	server := testServer()
	server.TokenEndpoint = "https://auth.example.com/oauth2/token"
	server.GrantTypesSupported = append(server.GrantTypesSupported, domain.GrantTypeCiba)
	server.BackchannelAuthRequestDuration = 2 * time.Minute
	server.BackchannelPollingInterval = 5 * time.Second
	return server
}

func cibaTestClient() *domain.ClientConfiguration {
	client := testClient()
	client.AuthenticationMethod = domain.ClientSecretPost
	client.ClientSecret = "s3cret"
	client.GrantTypes = append(client.GrantTypes, domain.GrantTypeCiba)
	client.BackchannelDeliveryMode = domain.DeliveryModePoll
	return client
}

func cibaUser() *domain.User {
	return &domain.User{
		ID:       ulid.Make(),
		TenantID: "tenant-1",
		Name:     "Ana",
		Email:    "ana@example.com",
	}
}

func TestCibaService_Request(t *testing.T) {
	t.Run("creates a poll transaction", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		m.userRepo.On("FindByHint", mock.Anything, "tenant-1", "ana@example.com").Return(cibaUser(), nil)
		m.cibaRepo.On("Create", mock.Anything, mock.MatchedBy(func(tr *domain.BackchannelTransaction) bool {
			return tr.Status == domain.TransactionCreated && tr.ClientID == "test-client"
		})).Return(nil)

		response, err := service.Request(context.Background(), "tenant-1", url.Values{
			"scope":      {"openid profile"},
			"login_hint": {"ana@example.com"},
		}, clientAuth())

		assert.NoError(t, err)
		assert.NotEmpty(t, response.AuthReqID)
		assert.Greater(t, response.ExpiresIn, int64(0))
		assert.Equal(t, int64(5), response.Interval)
		m.cibaRepo.AssertExpectations(t)
	})

	t.Run("missing user hint", func(t *testing.T) {
		service, _ := newCibaService(cibaTestServer(), cibaTestClient())

		_, err := service.Request(context.Background(), "tenant-1", url.Values{
			"scope": {"openid"},
		}, clientAuth())

		var oauthErr *domain.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, domain.ErrorInvalidRequest, oauthErr.Code)
	})

	t.Run("missing openid scope", func(t *testing.T) {
		service, _ := newCibaService(cibaTestServer(), cibaTestClient())

		_, err := service.Request(context.Background(), "tenant-1", url.Values{
			"scope":      {"profile"},
			"login_hint": {"ana@example.com"},
		}, clientAuth())

		var oauthErr *domain.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, domain.ErrorInvalidScope, oauthErr.Code)
	})

	t.Run("ping delivery requires a notification token", func(t *testing.T) {
		client := cibaTestClient()
		client.BackchannelDeliveryMode = domain.DeliveryModePing
		service, _ := newCibaService(cibaTestServer(), client)

		_, err := service.Request(context.Background(), "tenant-1", url.Values{
			"scope":      {"openid"},
			"login_hint": {"ana@example.com"},
		}, clientAuth())

		var oauthErr *domain.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, domain.ErrorInvalidRequest, oauthErr.Code)
	})

	t.Run("unresolvable hint", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		m.userRepo.On("FindByHint", mock.Anything, "tenant-1", "ghost@example.com").Return(nil, domain.ErrUserNotFound)

		_, err := service.Request(context.Background(), "tenant-1", url.Values{
			"scope":      {"openid"},
			"login_hint": {"ghost@example.com"},
		}, clientAuth())

		var oauthErr *domain.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, domain.ErrorInvalidRequest, oauthErr.Code)
	})

	t.Run("client without the ciba grant", func(t *testing.T) {
		client := cibaTestClient()
		client.GrantTypes = []string{"authorization_code"}
		service, _ := newCibaService(cibaTestServer(), client)

		_, err := service.Request(context.Background(), "tenant-1", url.Values{
			"scope":      {"openid"},
			"login_hint": {"ana@example.com"},
		}, clientAuth())

		var oauthErr *domain.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, domain.ErrorUnauthorizedClient, oauthErr.Code)
	})

	t.Run("server without the ciba grant", func(t *testing.T) {
		server := cibaTestServer()
		server.GrantTypesSupported = []string{"authorization_code", "refresh_token"}
		service, _ := newCibaService(server, cibaTestClient())

		_, err := service.Request(context.Background(), "tenant-1", url.Values{
			"scope":      {"openid"},
			"login_hint": {"ana@example.com"},
		}, clientAuth())

		var oauthErr *domain.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, domain.ErrorUnauthorizedClient, oauthErr.Code)
	})

	t.Run("requested_expiry below the server maximum is honored", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		m.userRepo.On("FindByHint", mock.Anything, "tenant-1", "ana@example.com").Return(cibaUser(), nil)
		m.cibaRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		response, err := service.Request(context.Background(), "tenant-1", url.Values{
			"scope":            {"openid"},
			"login_hint":       {"ana@example.com"},
			"requested_expiry": {"30"},
		}, clientAuth())

		assert.NoError(t, err)
		assert.LessOrEqual(t, response.ExpiresIn, int64(30))
	})

	fapiRequest := func(claims map[string]interface{}) (url.Values, map[string]interface{}) {
		merged := map[string]interface{}{
			"scope":      "openid accounts",
			"login_hint": "ana@example.com",
		}
		for name, value := range claims {
			merged[name] = value
		}
		return url.Values{"request": {"eyJhbGciOi..."}}, merged
	}

	t.Run("fapi request without a binding message", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		parameters, claims := fapiRequest(nil)
		m.decoder.On("Decode", mock.Anything, "eyJhbGciOi...", mock.Anything, mock.Anything).Return(claims, nil)

		_, err := service.Request(context.Background(), "tenant-1", parameters, clientAuth())

		var oauthErr *domain.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, domain.ErrorInvalidRequest, oauthErr.Code)
		assert.Contains(t, oauthErr.Description, "binding_message")
	})

	t.Run("fapi binding message beyond the display bound", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		parameters, claims := fapiRequest(map[string]interface{}{
			"binding_message": strings.Repeat("x", 101),
		})
		m.decoder.On("Decode", mock.Anything, "eyJhbGciOi...", mock.Anything, mock.Anything).Return(claims, nil)

		_, err := service.Request(context.Background(), "tenant-1", parameters, clientAuth())

		var oauthErr *domain.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, domain.ErrorInvalidBindingMessage, oauthErr.Code)
	})

	t.Run("fapi request with a binding message is accepted", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		parameters, claims := fapiRequest(map[string]interface{}{
			"binding_message": "pay 12.30 to ACME",
		})
		m.decoder.On("Decode", mock.Anything, "eyJhbGciOi...", mock.Anything, mock.Anything).Return(claims, nil)
		m.userRepo.On("FindByHint", mock.Anything, "tenant-1", "ana@example.com").Return(cibaUser(), nil)
		m.cibaRepo.On("Create", mock.Anything, mock.MatchedBy(func(tr *domain.BackchannelTransaction) bool {
			return tr.BindingMessage == "pay 12.30 to ACME"
		})).Return(nil)

		_, err := service.Request(context.Background(), "tenant-1", parameters, clientAuth())

		assert.NoError(t, err)
		m.cibaRepo.AssertExpectations(t)
	})
}

func TestCibaService_Authorize(t *testing.T) {
	pending := func(mode domain.BackchannelTokenDeliveryMode) *domain.BackchannelTransaction {
		return &domain.BackchannelTransaction{
			AuthReqID:               "req-1",
			TenantID:                "tenant-1",
			ClientID:                "test-client",
			UserID:                  ulid.Make().String(),
			Scopes:                  []string{"profile"},
			ClientNotificationToken: "notify-token",
			DeliveryMode:            mode,
			Status:                  domain.TransactionCreated,
			ExpiresAt:               time.Now().Add(time.Minute),
		}
	}

	t.Run("poll mode only records the transition", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		m.cibaRepo.On("Get", mock.Anything, "tenant-1", "req-1").Return(pending(domain.DeliveryModePoll), nil)
		m.cibaRepo.On("Transition", mock.Anything, mock.MatchedBy(func(tr *domain.BackchannelTransaction) bool {
			return tr.Status == domain.TransactionAuthorized
		})).Return(nil)

		err := service.Authorize(context.Background(), "tenant-1", "req-1")

		assert.NoError(t, err)
		m.notifier.AssertNotCalled(t, "NotifyPing", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.cibaRepo.AssertExpectations(t)
	})

	t.Run("ping mode notifies the client", func(t *testing.T) {
		client := cibaTestClient()
		client.BackchannelDeliveryMode = domain.DeliveryModePing
		client.BackchannelNotificationURI = "https://client.example.com/ciba-notify"
		service, m := newCibaService(cibaTestServer(), client)
		m.cibaRepo.On("Get", mock.Anything, "tenant-1", "req-1").Return(pending(domain.DeliveryModePing), nil)
		m.cibaRepo.On("Transition", mock.Anything, mock.Anything).Return(nil)
		m.notifier.On("NotifyPing", mock.Anything, "https://client.example.com/ciba-notify", "notify-token", "req-1").Return(nil)

		err := service.Authorize(context.Background(), "tenant-1", "req-1")

		assert.NoError(t, err)
		m.notifier.AssertExpectations(t)
	})

	t.Run("push mode issues tokens and delivers them", func(t *testing.T) {
		client := cibaTestClient()
		client.BackchannelDeliveryMode = domain.DeliveryModePush
		client.BackchannelNotificationURI = "https://client.example.com/ciba-notify"
		service, m := newCibaService(cibaTestServer(), client)
		m.cibaRepo.On("Get", mock.Anything, "tenant-1", "req-1").Return(pending(domain.DeliveryModePush), nil)
		m.cibaRepo.On("Transition", mock.Anything, mock.Anything).Return(nil)
		m.tokenRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		m.notifier.On("NotifyPush", mock.Anything, "https://client.example.com/ciba-notify", "notify-token", "req-1", mock.Anything).Return(nil)
		m.cibaRepo.On("Delete", mock.Anything, "tenant-1", "req-1").Return(nil)

		err := service.Authorize(context.Background(), "tenant-1", "req-1")

		assert.NoError(t, err)
		m.notifier.AssertExpectations(t)
		m.cibaRepo.AssertCalled(t, "Delete", mock.Anything, "tenant-1", "req-1")
	})

	t.Run("terminal transaction cannot be authorized again", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		terminal := pending(domain.DeliveryModePoll)
		terminal.Status = domain.TransactionDenied
		m.cibaRepo.On("Get", mock.Anything, "tenant-1", "req-1").Return(terminal, nil)

		err := service.Authorize(context.Background(), "tenant-1", "req-1")

		assert.ErrorIs(t, err, domain.ErrTransactionTerminal)
	})

	t.Run("losing a transition race delivers nothing", func(t *testing.T) {
		client := cibaTestClient()
		client.BackchannelDeliveryMode = domain.DeliveryModePing
		client.BackchannelNotificationURI = "https://client.example.com/ciba-notify"
		service, m := newCibaService(cibaTestServer(), client)
		m.cibaRepo.On("Get", mock.Anything, "tenant-1", "req-1").Return(pending(domain.DeliveryModePing), nil)
		m.cibaRepo.On("Transition", mock.Anything, mock.Anything).Return(domain.ErrTransactionTerminal)

		err := service.Authorize(context.Background(), "tenant-1", "req-1")

		assert.ErrorIs(t, err, domain.ErrTransactionTerminal)
		m.notifier.AssertNotCalled(t, "NotifyPing", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.tokenRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("expired transaction is persisted lazily", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		expired := pending(domain.DeliveryModePoll)
		expired.ExpiresAt = time.Now().Add(-time.Minute)
		m.cibaRepo.On("Get", mock.Anything, "tenant-1", "req-1").Return(expired, nil)
		m.cibaRepo.On("Transition", mock.Anything, mock.MatchedBy(func(tr *domain.BackchannelTransaction) bool {
			return tr.Status == domain.TransactionExpired
		})).Return(nil)

		err := service.Authorize(context.Background(), "tenant-1", "req-1")

		assert.ErrorIs(t, err, domain.ErrTransactionTerminal)
		m.cibaRepo.AssertExpectations(t)
	})
}

func TestCibaService_Deny(t *testing.T) {
	t.Run("pending transaction is denied", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		m.cibaRepo.On("Get", mock.Anything, "tenant-1", "req-1").Return(&domain.BackchannelTransaction{
			AuthReqID: "req-1",
			TenantID:  "tenant-1",
			ClientID:  "test-client",
			Status:    domain.TransactionCreated,
			ExpiresAt: time.Now().Add(time.Minute),
		}, nil)
		m.cibaRepo.On("Transition", mock.Anything, mock.MatchedBy(func(tr *domain.BackchannelTransaction) bool {
			return tr.Status == domain.TransactionDenied
		})).Return(nil)

		err := service.Deny(context.Background(), "tenant-1", "req-1")

		assert.NoError(t, err)
		m.cibaRepo.AssertExpectations(t)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		service, m := newCibaService(cibaTestServer(), cibaTestClient())
		m.cibaRepo.On("Get", mock.Anything, "tenant-1", "ghost").Return(nil, domain.ErrTransactionNotFound)

		err := service.Deny(context.Background(), "tenant-1", "ghost")

		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})
}
