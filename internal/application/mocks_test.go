package application

import (
	"context"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"
)

// MockServerConfigurationRepository is a mock implementation of domain.ServerConfigurationRepository
type MockServerConfigurationRepository struct {
	mock.Mock
}

func (m *MockServerConfigurationRepository) Get(ctx context.Context, tenantID string) (*domain.ServerConfiguration, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ServerConfiguration), args.Error(1)
}

// MockClientConfigurationRepository is a mock implementation of domain.ClientConfigurationRepository
type MockClientConfigurationRepository struct {
	mock.Mock
}

func (m *MockClientConfigurationRepository) Get(ctx context.Context, tenantID, clientID string) (*domain.ClientConfiguration, error) {
	args := m.Called(ctx, tenantID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClientConfiguration), args.Error(1)
}

// MockAuthorizationRequestRepository is a mock implementation of domain.AuthorizationRequestRepository
type MockAuthorizationRequestRepository struct {
	mock.Mock
}

func (m *MockAuthorizationRequestRepository) Create(ctx context.Context, request *domain.AuthorizationRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockAuthorizationRequestRepository) Get(ctx context.Context, tenantID, id string) (*domain.AuthorizationRequest, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthorizationRequest), args.Error(1)
}

func (m *MockAuthorizationRequestRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockAuthorizationCodeGrantRepository is a mock implementation of domain.AuthorizationCodeGrantRepository
type MockAuthorizationCodeGrantRepository struct {
	mock.Mock
}

func (m *MockAuthorizationCodeGrantRepository) Create(ctx context.Context, grant *domain.AuthorizationCodeGrant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockAuthorizationCodeGrantRepository) ConsumeOnce(ctx context.Context, tenantID, code string) (*domain.AuthorizationCodeGrant, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthorizationCodeGrant), args.Error(1)
}

// MockAuthorizationGrantedRepository is a mock implementation of domain.AuthorizationGrantedRepository
type MockAuthorizationGrantedRepository struct {
	mock.Mock
}

func (m *MockAuthorizationGrantedRepository) Find(ctx context.Context, tenantID, clientID, userID string) (*domain.AuthorizationGranted, error) {
	args := m.Called(ctx, tenantID, clientID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthorizationGranted), args.Error(1)
}

func (m *MockAuthorizationGrantedRepository) Upsert(ctx context.Context, granted *domain.AuthorizationGranted) error {
	args := m.Called(ctx, granted)
	return args.Error(0)
}

// MockOAuthTokenRepository is a mock implementation of domain.OAuthTokenRepository
type MockOAuthTokenRepository struct {
	mock.Mock
}

func (m *MockOAuthTokenRepository) Create(ctx context.Context, token *domain.OAuthToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockOAuthTokenRepository) FindByAccessToken(ctx context.Context, tenantID, accessToken string) (*domain.OAuthToken, error) {
	args := m.Called(ctx, tenantID, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OAuthToken), args.Error(1)
}

func (m *MockOAuthTokenRepository) FindByRefreshToken(ctx context.Context, tenantID, refreshToken string) (*domain.OAuthToken, error) {
	args := m.Called(ctx, tenantID, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OAuthToken), args.Error(1)
}

func (m *MockOAuthTokenRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockBackchannelTransactionRepository is a mock implementation of domain.BackchannelTransactionRepository
type MockBackchannelTransactionRepository struct {
	mock.Mock
}

func (m *MockBackchannelTransactionRepository) Create(ctx context.Context, transaction *domain.BackchannelTransaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockBackchannelTransactionRepository) Get(ctx context.Context, tenantID, authReqID string) (*domain.BackchannelTransaction, error) {
	args := m.Called(ctx, tenantID, authReqID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BackchannelTransaction), args.Error(1)
}

func (m *MockBackchannelTransactionRepository) Transition(ctx context.Context, transaction *domain.BackchannelTransaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockBackchannelTransactionRepository) MarkPolled(ctx context.Context, tenantID, authReqID string, at time.Time) error {
	args := m.Called(ctx, tenantID, authReqID, at)
	return args.Error(0)
}

func (m *MockBackchannelTransactionRepository) Delete(ctx context.Context, tenantID, authReqID string) error {
	args := m.Called(ctx, tenantID, authReqID)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, tenantID string, id ulid.ULID) (*domain.User, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByHint(ctx context.Context, tenantID, hint string) (*domain.User, error) {
	args := m.Called(ctx, tenantID, hint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockRequestObjectFetcher is a mock implementation of domain.RequestObjectFetcher
type MockRequestObjectFetcher struct {
	mock.Mock
}

func (m *MockRequestObjectFetcher) Fetch(ctx context.Context, requestURI string) (string, error) {
	args := m.Called(ctx, requestURI)
	return args.String(0), args.Error(1)
}

// MockRequestObjectDecoder is a mock implementation of domain.RequestObjectDecoder
type MockRequestObjectDecoder struct {
	mock.Mock
}

func (m *MockRequestObjectDecoder) Decode(ctx context.Context, rawJose string, client *domain.ClientConfiguration, server *domain.ServerConfiguration) (map[string]interface{}, error) {
	args := m.Called(ctx, rawJose, client, server)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

// MockClientAssertionVerifier is a mock implementation of domain.ClientAssertionVerifier
type MockClientAssertionVerifier struct {
	mock.Mock
}

func (m *MockClientAssertionVerifier) Verify(ctx context.Context, assertion string, client *domain.ClientConfiguration, tokenEndpoint string) (string, error) {
	args := m.Called(ctx, assertion, client, tokenEndpoint)
	return args.String(0), args.Error(1)
}

// MockJwtBearerVerifier is a mock implementation of domain.JwtBearerVerifier
type MockJwtBearerVerifier struct {
	mock.Mock
}

func (m *MockJwtBearerVerifier) Verify(ctx context.Context, assertion string, client *domain.ClientConfiguration, tokenEndpoint string) (string, []string, error) {
	args := m.Called(ctx, assertion, client, tokenEndpoint)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).([]string), args.Error(2)
}

// MockTokenSigner is a mock implementation of domain.TokenSigner
type MockTokenSigner struct {
	mock.Mock
}

func (m *MockTokenSigner) SignAccessToken(server *domain.ServerConfiguration, token *domain.OAuthToken) (string, error) {
	args := m.Called(server, token)
	return args.String(0), args.Error(1)
}

func (m *MockTokenSigner) SignIDToken(server *domain.ServerConfiguration, clientID, subject, nonce string, authTime time.Time, claims map[string]interface{}, duration time.Duration) (string, error) {
	args := m.Called(server, clientID, subject, nonce, authTime, claims, duration)
	return args.String(0), args.Error(1)
}

func (m *MockTokenSigner) JWKS(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

// MockClientNotifier is a mock implementation of domain.ClientNotifier
type MockClientNotifier struct {
	mock.Mock
}

func (m *MockClientNotifier) NotifyPing(ctx context.Context, notificationURI, notificationToken, authReqID string) error {
	args := m.Called(ctx, notificationURI, notificationToken, authReqID)
	return args.Error(0)
}

func (m *MockClientNotifier) NotifyPush(ctx context.Context, notificationURI, notificationToken, authReqID string, token *domain.OAuthToken) error {
	args := m.Called(ctx, notificationURI, notificationToken, authReqID, token)
	return args.Error(0)
}
