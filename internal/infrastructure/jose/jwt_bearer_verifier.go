package jose

import (
	"context"
	"fmt"
	"strings"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// JwtBearerVerifier verifies RFC 7523 authorization grant assertions against
// the client's registered keys and extracts the asserted subject and scopes.
type JwtBearerVerifier struct {
	resolver *keyResolver
	logger   *zap.Logger
}

func NewJwtBearerVerifier(ctx context.Context, logger *zap.Logger) *JwtBearerVerifier {
	return &JwtBearerVerifier{resolver: newKeyResolver(ctx), logger: logger}
}

func (v *JwtBearerVerifier) Verify(ctx context.Context, assertion string, client *domain.ClientConfiguration, tokenEndpoint string) (string, []string, error) {
	set, err := v.resolver.resolve(ctx, client)
	if err != nil {
		return "", nil, err
	}
	token, err := jwt.Parse([]byte(assertion),
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithAudience(tokenEndpoint),
		jwt.WithRequiredClaim("exp"),
	)
	if err != nil {
		v.logger.Debug("Grant assertion verification failed",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return "", nil, fmt.Errorf("assertion verification failed: %w", err)
	}
	if token.Subject() == "" {
		return "", nil, fmt.Errorf("assertion has no subject")
	}
	var scopes []string
	if raw, ok := token.Get("scope"); ok {
		if value, ok := raw.(string); ok {
			scopes = strings.Fields(value)
		}
	}
	return token.Subject(), scopes, nil
}
