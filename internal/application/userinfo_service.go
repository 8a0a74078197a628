package application

import (
	"context"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// UserinfoService resolves an access token to the subject's OIDC claims,
// filtered by the scopes the token was granted.
type UserinfoService struct {
	tokenRepo domain.OAuthTokenRepository
	userRepo  domain.UserRepository
	logger    *zap.Logger
}

func NewUserinfoService(tokenRepo domain.OAuthTokenRepository, userRepo domain.UserRepository, logger *zap.Logger) *UserinfoService {
	return &UserinfoService{
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		logger:    logger,
	}
}

// Userinfo looks the access token up, rechecks the certificate binding for
// sender-constrained tokens and assembles the claims the scopes allow
func (s *UserinfoService) Userinfo(ctx context.Context, tenantID, accessToken, clientCertificate string) (map[string]interface{}, error) {
	token, err := s.tokenRepo.FindByAccessToken(ctx, tenantID, accessToken)
	if err != nil {
		return nil, domain.ErrTokenNotFound
	}
	if token.AccessTokenExpired(time.Now()) {
		return nil, domain.ErrTokenNotFound
	}
	if token.SenderConstrained() {
		cert, err := parseCertificate(clientCertificate)
		if err != nil || certThumbprint(cert) != token.CertificateThumbprint {
			s.logger.Warn("Certificate binding recheck failed",
				zap.String("tenant_id", tenantID),
				zap.String("client_id", token.ClientID))
			return nil, domain.ErrTokenNotFound
		}
	}
	if token.Subject == "" {
		// machine tokens have no end-user to describe
		return nil, domain.ErrTokenNotFound
	}

	userID, err := ulid.Parse(token.Subject)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	user, err := s.userRepo.FindByID(ctx, tenantID, userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return filterClaims(user, token.Scopes), nil
}

// filterClaims keeps the claims the token's scopes allow. sub is always
// present.
func filterClaims(user *domain.User, scopes []string) map[string]interface{} {
	all := user.Claims()
	filtered := map[string]interface{}{"sub": all["sub"]}
	if contains(scopes, "profile") {
		filtered["name"] = all["name"]
	}
	if contains(scopes, "email") {
		filtered["email"] = all["email"]
		filtered["email_verified"] = all["email_verified"]
	}
	if contains(scopes, "phone") {
		filtered["phone_number"] = all["phone_number"]
	}
	return filtered
}
