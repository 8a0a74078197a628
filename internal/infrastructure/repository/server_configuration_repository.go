package repository

import (
	"context"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"go.uber.org/zap"
)

type ServerConfigurationRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewServerConfigurationRepository(db *database.Postgres, logger *zap.Logger) *ServerConfigurationRepository {
	return &ServerConfigurationRepository{db: db, logger: logger}
}

func (r *ServerConfigurationRepository) Get(ctx context.Context, tenantID string) (*domain.ServerConfiguration, error) {
	server := &domain.ServerConfiguration{}
	var (
		codeSeconds    int64
		requestSeconds int64
		accessSeconds  int64
		refreshSeconds int64
		idTokenSeconds int64
		bcAuthSeconds  int64
		bcPollSeconds  int64
	)
	err := r.db.QueryRow(ctx, `
		SELECT tenant_id, issuer, authorization_endpoint, token_endpoint,
		       introspection_endpoint, revocation_endpoint, userinfo_endpoint,
		       jwks_uri, backchannel_auth_endpoint,
		       scopes_supported, response_types_supported, grant_types_supported,
		       fapi_baseline_scopes, fapi_advance_scopes,
		       authorization_code_seconds, authorization_request_seconds,
		       access_token_seconds, refresh_token_seconds, id_token_seconds,
		       refresh_token_rotation_enabled,
		       backchannel_auth_request_seconds, backchannel_polling_seconds,
		       created_at, updated_at
		FROM server_configurations WHERE tenant_id = $1
	`, tenantID).Scan(
		&server.TenantID, &server.Issuer, &server.AuthorizationEndpoint, &server.TokenEndpoint,
		&server.IntrospectionEndpoint, &server.RevocationEndpoint, &server.UserinfoEndpoint,
		&server.JwksURI, &server.BackchannelAuthEndpoint,
		&server.ScopesSupported, &server.ResponseTypesSupported, &server.GrantTypesSupported,
		&server.FapiBaselineScopes, &server.FapiAdvanceScopes,
		&codeSeconds, &requestSeconds,
		&accessSeconds, &refreshSeconds, &idTokenSeconds,
		&server.RefreshTokenRotationEnabled,
		&bcAuthSeconds, &bcPollSeconds,
		&server.CreatedAt, &server.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to find server configuration",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return nil, domain.ErrServerConfigurationNotFound
	}

	server.AuthorizationCodeDuration = seconds(codeSeconds)
	server.AuthorizationRequestDuration = seconds(requestSeconds)
	server.AccessTokenDuration = seconds(accessSeconds)
	server.RefreshTokenDuration = seconds(refreshSeconds)
	server.IDTokenDuration = seconds(idTokenSeconds)
	server.BackchannelAuthRequestDuration = seconds(bcAuthSeconds)
	server.BackchannelPollingInterval = seconds(bcPollSeconds)
	return server, nil
}
