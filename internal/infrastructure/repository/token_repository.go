package repository

import (
	"context"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"go.uber.org/zap"
)

type OAuthTokenRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewOAuthTokenRepository(db *database.Postgres, logger *zap.Logger) *OAuthTokenRepository {
	return &OAuthTokenRepository{db: db, logger: logger}
}

func (r *OAuthTokenRepository) Create(ctx context.Context, token *domain.OAuthToken) error {
	details, err := marshalDetails(token.AuthorizationDetails)
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
		INSERT INTO oauth_tokens (
			id, tenant_id, issuer, subject, client_id, scopes, granted_claims,
			access_token, refresh_token, id_token, token_type,
			certificate_thumbprint, authorization_details,
			access_token_expires_at, refresh_token_expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, token.ID, token.TenantID, token.Issuer, token.Subject, token.ClientID, token.Scopes, token.GrantedClaims,
		token.AccessToken, token.RefreshToken, token.IDToken, token.TokenType,
		token.CertificateThumbprint, details,
		token.AccessTokenExpiresAt, token.RefreshTokenExpiresAt, token.CreatedAt)
}

func (r *OAuthTokenRepository) FindByAccessToken(ctx context.Context, tenantID, accessToken string) (*domain.OAuthToken, error) {
	return r.findBy(ctx, "access_token", tenantID, accessToken)
}

func (r *OAuthTokenRepository) FindByRefreshToken(ctx context.Context, tenantID, refreshToken string) (*domain.OAuthToken, error) {
	return r.findBy(ctx, "refresh_token", tenantID, refreshToken)
}

func (r *OAuthTokenRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.db.Exec(ctx, `
		DELETE FROM oauth_tokens WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
}

func (r *OAuthTokenRepository) findBy(ctx context.Context, column, tenantID, value string) (*domain.OAuthToken, error) {
	token := &domain.OAuthToken{}
	var details []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, issuer, subject, client_id, scopes, granted_claims,
		       access_token, refresh_token, id_token, token_type,
		       certificate_thumbprint, authorization_details,
		       access_token_expires_at, refresh_token_expires_at, created_at
		FROM oauth_tokens
		WHERE tenant_id = $1 AND `+column+` = $2
	`, tenantID, value).Scan(
		&token.ID, &token.TenantID, &token.Issuer, &token.Subject, &token.ClientID, &token.Scopes, &token.GrantedClaims,
		&token.AccessToken, &token.RefreshToken, &token.IDToken, &token.TokenType,
		&token.CertificateThumbprint, &details,
		&token.AccessTokenExpiresAt, &token.RefreshTokenExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, domain.ErrTokenNotFound
	}
	if token.AuthorizationDetails, err = unmarshalDetails(details); err != nil {
		r.logger.Error("failed to decode stored authorization_details", zap.Error(err))
		return nil, domain.ErrInternal
	}
	return token, nil
}
