package jose

import (
	"context"
	"fmt"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// RequestObjectDecoder verifies signed request objects against the client's
// registered keys. The issuer must be the client and the audience must be
// this server's issuer identifier.
type RequestObjectDecoder struct {
	resolver *keyResolver
	logger   *zap.Logger
}

func NewRequestObjectDecoder(ctx context.Context, logger *zap.Logger) *RequestObjectDecoder {
	return &RequestObjectDecoder{resolver: newKeyResolver(ctx), logger: logger}
}

func (d *RequestObjectDecoder) Decode(ctx context.Context, rawJose string, client *domain.ClientConfiguration, server *domain.ServerConfiguration) (map[string]interface{}, error) {
	set, err := d.resolver.resolve(ctx, client)
	if err != nil {
		d.logger.Warn("Failed to resolve request object keys",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, err
	}
	token, err := jwt.Parse([]byte(rawJose),
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithIssuer(client.ClientID),
		jwt.WithAudience(server.Issuer),
	)
	if err != nil {
		d.logger.Debug("Request object verification failed",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, fmt.Errorf("request object verification failed: %w", err)
	}
	claims, err := token.AsMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read request object claims: %w", err)
	}
	return claims, nil
}
