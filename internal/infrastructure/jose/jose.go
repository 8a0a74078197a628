// Package jose verifies the signed JWTs the protocol accepts from clients:
// request objects, client authentication assertions and jwt-bearer grant
// assertions. Verification keys come from the client's registered inline JWK
// Set or its jwks_uri, cached with refresh.
package jose

import (
	"context"
	"fmt"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// keyResolver resolves a client's verification keys, preferring the inline
// jwks registration over jwks_uri
type keyResolver struct {
	cache *jwk.Cache
}

func newKeyResolver(ctx context.Context) *keyResolver {
	return &keyResolver{cache: jwk.NewCache(ctx)}
}

func (r *keyResolver) resolve(ctx context.Context, client *domain.ClientConfiguration) (jwk.Set, error) {
	if client.Jwks != "" {
		set, err := jwk.Parse([]byte(client.Jwks))
		if err != nil {
			return nil, fmt.Errorf("registered jwks is malformed: %w", err)
		}
		return set, nil
	}
	if client.JwksURI != "" {
		if !r.cache.IsRegistered(client.JwksURI) {
			if err := r.cache.Register(client.JwksURI); err != nil {
				return nil, fmt.Errorf("failed to register jwks_uri: %w", err)
			}
		}
		set, err := r.cache.Get(ctx, client.JwksURI)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve jwks_uri: %w", err)
		}
		return set, nil
	}
	return nil, fmt.Errorf("client %s has no registered verification keys", client.ClientID)
}
