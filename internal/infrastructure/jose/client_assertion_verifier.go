package jose

import (
	"context"
	"fmt"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// ClientAssertionVerifier verifies RFC 7523 client authentication assertions.
// private_key_jwt assertions are checked against the client's registered
// keys, client_secret_jwt against the shared secret. The audience must be
// the token endpoint and iss and sub must both name the client.
type ClientAssertionVerifier struct {
	resolver *keyResolver
	logger   *zap.Logger
}

func NewClientAssertionVerifier(ctx context.Context, logger *zap.Logger) *ClientAssertionVerifier {
	return &ClientAssertionVerifier{resolver: newKeyResolver(ctx), logger: logger}
}

func (v *ClientAssertionVerifier) Verify(ctx context.Context, assertion string, client *domain.ClientConfiguration, tokenEndpoint string) (string, error) {
	keyOption, err := v.keyOption(ctx, client)
	if err != nil {
		return "", err
	}
	token, err := jwt.Parse([]byte(assertion),
		keyOption,
		jwt.WithValidate(true),
		jwt.WithAudience(tokenEndpoint),
		jwt.WithRequiredClaim("exp"),
	)
	if err != nil {
		v.logger.Debug("Client assertion verification failed",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return "", fmt.Errorf("client assertion verification failed: %w", err)
	}
	if token.Issuer() == "" || token.Issuer() != token.Subject() {
		return "", fmt.Errorf("client assertion iss and sub must both name the client")
	}
	return token.Subject(), nil
}

func (v *ClientAssertionVerifier) keyOption(ctx context.Context, client *domain.ClientConfiguration) (jwt.ParseOption, error) {
	switch client.AuthenticationMethod {
	case domain.PrivateKeyJwt:
		set, err := v.resolver.resolve(ctx, client)
		if err != nil {
			return nil, err
		}
		return jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)), nil
	case domain.ClientSecretJwt:
		if client.ClientSecret == "" {
			return nil, fmt.Errorf("client %s has no secret to verify the assertion with", client.ClientID)
		}
		return jwt.WithKey(jwa.HS256, []byte(client.ClientSecret)), nil
	default:
		return nil, fmt.Errorf("authentication method %s does not accept client assertions", client.AuthenticationMethod)
	}
}
