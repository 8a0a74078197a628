package repository

import (
	"context"
	"encoding/json"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"go.uber.org/zap"
)

type AuthorizationGrantedRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewAuthorizationGrantedRepository(db *database.Postgres, logger *zap.Logger) *AuthorizationGrantedRepository {
	return &AuthorizationGrantedRepository{db: db, logger: logger}
}

func (r *AuthorizationGrantedRepository) Find(ctx context.Context, tenantID, clientID, userID string) (*domain.AuthorizationGranted, error) {
	granted := &domain.AuthorizationGranted{}
	var consentClaims []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, client_id, user_id, scopes,
		       id_token_claims, userinfo_claims, consent_claims,
		       created_at, updated_at
		FROM authorization_granted
		WHERE tenant_id = $1 AND client_id = $2 AND user_id = $3
	`, tenantID, clientID, userID).Scan(
		&granted.ID, &granted.TenantID, &granted.ClientID, &granted.UserID, &granted.Scopes,
		&granted.IDTokenClaims, &granted.UserinfoClaims, &consentClaims,
		&granted.CreatedAt, &granted.UpdatedAt,
	)
	if err != nil {
		return nil, domain.ErrGrantNotFound
	}
	if len(consentClaims) > 0 {
		if err := json.Unmarshal(consentClaims, &granted.ConsentClaims); err != nil {
			r.logger.Error("failed to decode stored consent_claims", zap.Error(err))
			return nil, domain.ErrInternal
		}
	}
	return granted, nil
}

// Upsert stores the grant, merging into an existing row in the same
// statement. The array unions and jsonb merge run inside the conflict
// branch, so two concurrent authorizations cannot lose each other's
// scopes or claims.
func (r *AuthorizationGrantedRepository) Upsert(ctx context.Context, granted *domain.AuthorizationGranted) error {
	consentClaims, err := marshalConsentClaims(granted.ConsentClaims)
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
		INSERT INTO authorization_granted (
			id, tenant_id, client_id, user_id, scopes,
			id_token_claims, userinfo_claims, consent_claims,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, client_id, user_id) DO UPDATE SET
			scopes = ARRAY(SELECT DISTINCT s FROM unnest(authorization_granted.scopes || EXCLUDED.scopes) AS s),
			id_token_claims = ARRAY(SELECT DISTINCT c FROM unnest(authorization_granted.id_token_claims || EXCLUDED.id_token_claims) AS c),
			userinfo_claims = ARRAY(SELECT DISTINCT c FROM unnest(authorization_granted.userinfo_claims || EXCLUDED.userinfo_claims) AS c),
			consent_claims = COALESCE(authorization_granted.consent_claims, '{}'::jsonb) || COALESCE(EXCLUDED.consent_claims, '{}'::jsonb),
			updated_at = EXCLUDED.updated_at
	`, granted.ID, granted.TenantID, granted.ClientID, granted.UserID, granted.Scopes,
		granted.IDTokenClaims, granted.UserinfoClaims, consentClaims,
		granted.CreatedAt, granted.UpdatedAt)
}

func marshalConsentClaims(claims map[string]interface{}) ([]byte, error) {
	if len(claims) == 0 {
		return nil, nil
	}
	return json.Marshal(claims)
}
