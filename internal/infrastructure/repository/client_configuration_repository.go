package repository

import (
	"context"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"go.uber.org/zap"
)

type ClientConfigurationRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewClientConfigurationRepository(db *database.Postgres, logger *zap.Logger) *ClientConfigurationRepository {
	return &ClientConfigurationRepository{db: db, logger: logger}
}

func (r *ClientConfigurationRepository) Get(ctx context.Context, tenantID, clientID string) (*domain.ClientConfiguration, error) {
	client := &domain.ClientConfiguration{}
	err := r.db.QueryRow(ctx, `
		SELECT tenant_id, client_id, client_secret, client_name,
		       redirect_uris, response_types, grant_types, scopes,
		       authentication_method, jwks, jwks_uri, request_uris,
		       require_request_object, require_pushed_authorization,
		       tls_subject_dn, tls_client_certificate,
		       authorization_signed_alg,
		       backchannel_delivery_mode, backchannel_notification_uri,
		       backchannel_user_code_enabled,
		       created_at, updated_at
		FROM client_configurations WHERE tenant_id = $1 AND client_id = $2
	`, tenantID, clientID).Scan(
		&client.TenantID, &client.ClientID, &client.ClientSecret, &client.ClientName,
		&client.RedirectURIs, &client.ResponseTypes, &client.GrantTypes, &client.Scopes,
		&client.AuthenticationMethod, &client.Jwks, &client.JwksURI, &client.RequestURIs,
		&client.RequireRequestObject, &client.RequirePushedAuthorization,
		&client.TLSSubjectDN, &client.TLSClientCertificate,
		&client.AuthorizationSignedAlg,
		&client.BackchannelDeliveryMode, &client.BackchannelNotificationURI,
		&client.BackchannelUserCodeEnabled,
		&client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to find client configuration",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", clientID),
			zap.Error(err))
		return nil, domain.ErrClientNotFound
	}
	return client, nil
}
