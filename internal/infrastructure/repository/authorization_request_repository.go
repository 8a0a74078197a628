package repository

import (
	"context"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"go.uber.org/zap"
)

type AuthorizationRequestRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewAuthorizationRequestRepository(db *database.Postgres, logger *zap.Logger) *AuthorizationRequestRepository {
	return &AuthorizationRequestRepository{db: db, logger: logger}
}

func (r *AuthorizationRequestRepository) Create(ctx context.Context, request *domain.AuthorizationRequest) error {
	details, err := marshalDetails(request.AuthorizationDetails)
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
		INSERT INTO authorization_requests (
			id, tenant_id, profile, client_id, scopes,
			response_type, response_mode, redirect_uri, state, nonce,
			code_challenge, code_challenge_method, claims,
			authorization_details, request_object, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, request.ID, request.TenantID, request.Profile, request.ClientID, request.Scopes,
		request.ResponseType, request.ResponseMode, request.RedirectURI, request.State, request.Nonce,
		request.CodeChallenge, request.CodeChallengeMethod, request.Claims,
		details, request.RequestObject, request.CreatedAt, request.ExpiresAt)
}

func (r *AuthorizationRequestRepository) Get(ctx context.Context, tenantID, id string) (*domain.AuthorizationRequest, error) {
	request := &domain.AuthorizationRequest{}
	var details []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, profile, client_id, scopes,
		       response_type, response_mode, redirect_uri, state, nonce,
		       code_challenge, code_challenge_method, claims,
		       authorization_details, request_object, created_at, expires_at
		FROM authorization_requests WHERE tenant_id = $1 AND id = $2
	`, tenantID, id).Scan(
		&request.ID, &request.TenantID, &request.Profile, &request.ClientID, &request.Scopes,
		&request.ResponseType, &request.ResponseMode, &request.RedirectURI, &request.State, &request.Nonce,
		&request.CodeChallenge, &request.CodeChallengeMethod, &request.Claims,
		&details, &request.RequestObject, &request.CreatedAt, &request.ExpiresAt,
	)
	if err != nil {
		r.logger.Debug("authorization request not found",
			zap.String("tenant_id", tenantID),
			zap.String("id", id))
		return nil, domain.ErrAuthorizationRequestNotFound
	}
	if request.AuthorizationDetails, err = unmarshalDetails(details); err != nil {
		r.logger.Error("failed to decode stored authorization_details", zap.Error(err))
		return nil, domain.ErrInternal
	}
	return request, nil
}

func (r *AuthorizationRequestRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.db.Exec(ctx, `
		DELETE FROM authorization_requests WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
}
