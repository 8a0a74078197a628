package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

// IntrospectionService answers RFC 7662 introspection and RFC 7009
// revocation requests against the stored token aggregates
type IntrospectionService struct {
	tokenRepo     domain.OAuthTokenRepository
	authenticator *ClientAuthenticator
	logger        *zap.Logger
}

// NewIntrospectionService creates a new IntrospectionService
func NewIntrospectionService(tokenRepo domain.OAuthTokenRepository, authenticator *ClientAuthenticator, logger *zap.Logger) domain.IntrospectionService {
	return &IntrospectionService{
		tokenRepo:     tokenRepo,
		authenticator: authenticator,
		logger:        logger,
	}
}

// Introspect resolves the token value against both token columns and reports
// its state. Unknown and expired tokens answer active=false, never an error.
func (s *IntrospectionService) Introspect(ctx context.Context, tenantID, token, clientCertificate string) (map[string]interface{}, error) {
	if token == "" {
		return inactive(), nil
	}

	stored, asRefresh, err := s.lookup(ctx, tenantID, token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return inactive(), nil
		}
		s.logger.Error("Failed to look up token", zap.Error(err))
		return nil, domain.ErrInternal
	}

	now := time.Now()
	if asRefresh {
		if stored.RefreshTokenExpired(now) {
			return inactive(), nil
		}
	} else if stored.AccessTokenExpired(now) {
		return inactive(), nil
	}

	// A sender-constrained token is only active when presented over mTLS
	// with the certificate it was bound to
	if stored.SenderConstrained() {
		if clientCertificate == "" {
			return inactive(), nil
		}
		cert, err := parseCertificate(clientCertificate)
		if err != nil || certThumbprint(cert) != stored.CertificateThumbprint {
			return inactive(), nil
		}
	}

	response := map[string]interface{}{
		"active":     true,
		"iss":        stored.Issuer,
		"client_id":  stored.ClientID,
		"token_type": stored.TokenType,
		"scope":      strings.Join(stored.Scopes, " "),
		"iat":        stored.CreatedAt.Unix(),
		"jti":        stored.ID,
	}
	if asRefresh {
		response["exp"] = stored.RefreshTokenExpiresAt.Unix()
	} else {
		response["exp"] = stored.AccessTokenExpiresAt.Unix()
	}
	if stored.Subject != "" {
		response["sub"] = stored.Subject
	}
	if stored.SenderConstrained() {
		response["cnf"] = map[string]interface{}{"x5t#S256": stored.CertificateThumbprint}
	}
	if len(stored.AuthorizationDetails) > 0 {
		response["authorization_details"] = stored.AuthorizationDetails
	}
	return response, nil
}

// Revoke authenticates the calling client and deletes the aggregate the
// token value belongs to. Unknown tokens and tokens owned by another client
// answer success without revoking anything.
func (s *IntrospectionService) Revoke(ctx context.Context, tenantID, token string, auth *domain.ClientAuthenticationRequest) error {
	credentials, err := s.authenticator.Authenticate(ctx, tenantID, auth)
	if err != nil {
		return err
	}

	if token == "" {
		return nil
	}

	stored, _, err := s.lookup(ctx, tenantID, token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil
		}
		s.logger.Error("Failed to look up token", zap.Error(err))
		return domain.ErrInternal
	}

	if stored.ClientID != credentials.ClientID {
		s.logger.Warn("Revocation attempt against another client's token",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", credentials.ClientID))
		return nil
	}

	if err := s.tokenRepo.Delete(ctx, tenantID, stored.ID); err != nil {
		s.logger.Error("Failed to delete token aggregate", zap.Error(err))
		return domain.ErrInternal
	}

	s.logger.Info("Token aggregate revoked",
		zap.String("tenant_id", tenantID),
		zap.String("client_id", credentials.ClientID),
		zap.String("token_id", stored.ID))
	return nil
}

// lookup tries the value as an access token first, then as a refresh token
func (s *IntrospectionService) lookup(ctx context.Context, tenantID, token string) (*domain.OAuthToken, bool, error) {
	stored, err := s.tokenRepo.FindByAccessToken(ctx, tenantID, token)
	if err == nil {
		return stored, false, nil
	}
	if !errors.Is(err, domain.ErrTokenNotFound) {
		return nil, false, err
	}
	stored, err = s.tokenRepo.FindByRefreshToken(ctx, tenantID, token)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func inactive() map[string]interface{} {
	return map[string]interface{}{"active": false}
}
