package repository

import (
	"context"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type UserRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewUserRepository(db *database.Postgres, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) FindByID(ctx context.Context, tenantID string, id ulid.ULID) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, email, phone, email_verified, created_at, updated_at
		FROM users
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, tenantID, id.String()).Scan(
		&user.ID, &user.TenantID, &user.Name, &user.Email, &user.Phone,
		&user.EmailVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		r.logger.Debug("user id did not resolve", zap.String("tenant_id", tenantID))
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// FindByHint matches the hint against user id, email and phone in turn.
func (r *UserRepository) FindByHint(ctx context.Context, tenantID, hint string) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, email, phone, email_verified, created_at, updated_at
		FROM users
		WHERE tenant_id = $1 AND (id = $2 OR email = $2 OR phone = $2) AND deleted_at IS NULL
	`, tenantID, hint).Scan(
		&user.ID, &user.TenantID, &user.Name, &user.Email, &user.Phone,
		&user.EmailVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		r.logger.Debug("user hint did not resolve", zap.String("tenant_id", tenantID))
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}
