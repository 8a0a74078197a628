package application

import (
	"context"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

// issuance carries the per-grant decisions about what goes into a token
type issuance struct {
	subject              string
	scopes               []string
	idTokenClaims        []string
	authorizationDetails []domain.AuthorizationDetail
	nonce                string
	authTime             time.Time
	thumbprint           string
	withRefreshToken     bool
}

// tokenIssuer builds and signs token aggregates for the grant services and
// the CIBA push delivery path
type tokenIssuer struct {
	userRepo domain.UserRepository
	signer   domain.TokenSigner
	logger   *zap.Logger
}

func newTokenIssuer(userRepo domain.UserRepository, signer domain.TokenSigner, logger *zap.Logger) *tokenIssuer {
	return &tokenIssuer{
		userRepo: userRepo,
		signer:   signer,
		logger:   logger,
	}
}

func (i *tokenIssuer) issue(ctx context.Context, server *domain.ServerConfiguration, client *domain.ClientConfiguration, iss issuance) (*domain.OAuthToken, error) {
	now := time.Now()
	token := &domain.OAuthToken{
		ID:                    domain.NewID(),
		TenantID:              server.TenantID,
		Issuer:                server.Issuer,
		Subject:               iss.subject,
		ClientID:              client.ClientID,
		Scopes:                iss.scopes,
		GrantedClaims:         iss.idTokenClaims,
		TokenType:             "Bearer",
		CertificateThumbprint: iss.thumbprint,
		AuthorizationDetails:  iss.authorizationDetails,
		AccessTokenExpiresAt:  now.Add(server.AccessTokenDuration),
		CreatedAt:             now,
	}

	accessToken, err := i.signer.SignAccessToken(server, token)
	if err != nil {
		i.logger.Error("Failed to sign access token", zap.Error(err))
		return nil, domain.ErrInternal
	}
	token.AccessToken = accessToken

	if iss.withRefreshToken {
		token.RefreshToken = domain.NewID()
		token.RefreshTokenExpiresAt = now.Add(server.RefreshTokenDuration)
	}

	if iss.subject != "" && contains(iss.scopes, "openid") {
		claims, err := i.grantedUserClaims(ctx, server.TenantID, iss.subject, iss.idTokenClaims)
		if err != nil {
			return nil, err
		}
		idToken, err := i.signer.SignIDToken(server, client.ClientID, iss.subject, iss.nonce, iss.authTime, claims, server.IDTokenDuration)
		if err != nil {
			i.logger.Error("Failed to sign ID token", zap.Error(err))
			return nil, domain.ErrInternal
		}
		token.IDToken = idToken
	}

	return token, nil
}

// grantedUserClaims assembles the granted subset of the user's claims
func (i *tokenIssuer) grantedUserClaims(ctx context.Context, tenantID, subject string, granted []string) (map[string]interface{}, error) {
	if len(granted) == 0 {
		return nil, nil
	}
	userID, err := domain.ParseULID(subject)
	if err != nil {
		return nil, domain.ErrInternal
	}
	user, err := i.userRepo.FindByID(ctx, tenantID, userID)
	if err != nil {
		i.logger.Error("Failed to load user for ID token claims",
			zap.String("user_id", subject),
			zap.Error(err))
		return nil, domain.ErrInternal
	}
	all := user.Claims()
	claims := make(map[string]interface{}, len(granted))
	for _, name := range granted {
		if v, ok := all[name]; ok {
			claims[name] = v
		}
	}
	return claims, nil
}
