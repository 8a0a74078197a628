package repository

import (
	"context"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/ipede/authorization-server/internal/infrastructure/database"
	"go.uber.org/zap"
)

type BackchannelTransactionRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewBackchannelTransactionRepository(db *database.Postgres, logger *zap.Logger) *BackchannelTransactionRepository {
	return &BackchannelTransactionRepository{db: db, logger: logger}
}

func (r *BackchannelTransactionRepository) Create(ctx context.Context, transaction *domain.BackchannelTransaction) error {
	details, err := marshalDetails(transaction.AuthorizationDetails)
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
		INSERT INTO backchannel_transactions (
			auth_req_id, tenant_id, client_id, user_id, scopes, id_token_claims,
			binding_message, client_notification_token, delivery_mode, status,
			interval_seconds, authorization_details,
			last_polled_at, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, transaction.AuthReqID, transaction.TenantID, transaction.ClientID, transaction.UserID,
		transaction.Scopes, transaction.IDTokenClaims,
		transaction.BindingMessage, transaction.ClientNotificationToken,
		string(transaction.DeliveryMode), string(transaction.Status),
		int64(transaction.Interval.Seconds()), details,
		transaction.LastPolledAt, transaction.ExpiresAt, transaction.CreatedAt)
}

func (r *BackchannelTransactionRepository) Get(ctx context.Context, tenantID, authReqID string) (*domain.BackchannelTransaction, error) {
	transaction := &domain.BackchannelTransaction{}
	var (
		deliveryMode    string
		status          string
		intervalSeconds int64
		details         []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT auth_req_id, tenant_id, client_id, user_id, scopes, id_token_claims,
		       binding_message, client_notification_token, delivery_mode, status,
		       interval_seconds, authorization_details,
		       last_polled_at, expires_at, created_at
		FROM backchannel_transactions
		WHERE tenant_id = $1 AND auth_req_id = $2
	`, tenantID, authReqID).Scan(
		&transaction.AuthReqID, &transaction.TenantID, &transaction.ClientID, &transaction.UserID,
		&transaction.Scopes, &transaction.IDTokenClaims,
		&transaction.BindingMessage, &transaction.ClientNotificationToken, &deliveryMode, &status,
		&intervalSeconds, &details,
		&transaction.LastPolledAt, &transaction.ExpiresAt, &transaction.CreatedAt,
	)
	if err != nil {
		return nil, domain.ErrTransactionNotFound
	}
	transaction.DeliveryMode = domain.BackchannelTokenDeliveryMode(deliveryMode)
	transaction.Status = domain.BackchannelTransactionStatus(status)
	transaction.Interval = seconds(intervalSeconds)
	if transaction.AuthorizationDetails, err = unmarshalDetails(details); err != nil {
		r.logger.Error("failed to decode stored authorization_details", zap.Error(err))
		return nil, domain.ErrInternal
	}
	return transaction, nil
}

// Transition moves a transaction out of CREATED. The status guard makes
// concurrent authorize/deny/expire races resolve to exactly one winner;
// the loser sees zero rows and gets ErrTransactionTerminal.
func (r *BackchannelTransactionRepository) Transition(ctx context.Context, transaction *domain.BackchannelTransaction) error {
	tag, err := r.db.ExecRaw(ctx, `
		UPDATE backchannel_transactions
		SET status = $1
		WHERE tenant_id = $2 AND auth_req_id = $3 AND status = $4
	`, string(transaction.Status),
		transaction.TenantID, transaction.AuthReqID, string(domain.TransactionCreated))
	if err != nil {
		r.logger.Error("failed to transition backchannel transaction",
			zap.String("auth_req_id", transaction.AuthReqID), zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionTerminal
	}
	return nil
}

func (r *BackchannelTransactionRepository) MarkPolled(ctx context.Context, tenantID, authReqID string, at time.Time) error {
	return r.db.Exec(ctx, `
		UPDATE backchannel_transactions
		SET last_polled_at = $1
		WHERE tenant_id = $2 AND auth_req_id = $3
	`, at, tenantID, authReqID)
}

func (r *BackchannelTransactionRepository) Delete(ctx context.Context, tenantID, authReqID string) error {
	return r.db.Exec(ctx, `
		DELETE FROM backchannel_transactions WHERE tenant_id = $1 AND auth_req_id = $2
	`, tenantID, authReqID)
}
