package repository

import (
	"context"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"go.uber.org/zap"
)

type AuthorizationCodeGrantRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewAuthorizationCodeGrantRepository(db *database.Postgres, logger *zap.Logger) *AuthorizationCodeGrantRepository {
	return &AuthorizationCodeGrantRepository{db: db, logger: logger}
}

func (r *AuthorizationCodeGrantRepository) Create(ctx context.Context, grant *domain.AuthorizationCodeGrant) error {
	details, err := marshalDetails(grant.AuthorizationDetails)
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
		INSERT INTO authorization_code_grants (
			code, tenant_id, authorization_id, client_id, user_id,
			scopes, id_token_claims, userinfo_claims, authorization_details,
			redirect_uri, nonce, code_challenge, code_challenge_method,
			auth_time, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, grant.Code, grant.TenantID, grant.AuthorizationID, grant.ClientID, grant.UserID,
		grant.Scopes, grant.IDTokenClaims, grant.UserinfoClaims, details,
		grant.RedirectURI, grant.Nonce, grant.CodeChallenge, grant.CodeChallengeMethod,
		grant.AuthTime, grant.ExpiresAt, grant.CreatedAt)
}

// ConsumeOnce deletes and returns the grant in a single statement. Concurrent
// exchanges of the same code race on the row delete; exactly one wins.
func (r *AuthorizationCodeGrantRepository) ConsumeOnce(ctx context.Context, tenantID, code string) (*domain.AuthorizationCodeGrant, error) {
	grant := &domain.AuthorizationCodeGrant{}
	var details []byte
	err := r.db.QueryRow(ctx, `
		DELETE FROM authorization_code_grants
		WHERE tenant_id = $1 AND code = $2
		RETURNING code, tenant_id, authorization_id, client_id, user_id,
		          scopes, id_token_claims, userinfo_claims, authorization_details,
		          redirect_uri, nonce, code_challenge, code_challenge_method,
		          auth_time, expires_at, created_at
	`, tenantID, code).Scan(
		&grant.Code, &grant.TenantID, &grant.AuthorizationID, &grant.ClientID, &grant.UserID,
		&grant.Scopes, &grant.IDTokenClaims, &grant.UserinfoClaims, &details,
		&grant.RedirectURI, &grant.Nonce, &grant.CodeChallenge, &grant.CodeChallengeMethod,
		&grant.AuthTime, &grant.ExpiresAt, &grant.CreatedAt,
	)
	if err != nil {
		r.logger.Debug("authorization code did not resolve",
			zap.String("tenant_id", tenantID))
		return nil, domain.ErrAuthorizationCodeNotFound
	}
	if grant.AuthorizationDetails, err = unmarshalDetails(details); err != nil {
		r.logger.Error("failed to decode stored authorization_details", zap.Error(err))
		return nil, domain.ErrInternal
	}
	return grant, nil
}
