package jose

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type signingKey struct {
	private jwk.Key
	jwks    string
}

func newSigningKey(t *testing.T) *signingKey {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.NoError(t, err)
	private, err := jwk.FromRaw(raw)
	assert.NoError(t, err)
	assert.NoError(t, private.Set(jwk.KeyIDKey, "test-key"))
	assert.NoError(t, private.Set(jwk.AlgorithmKey, jwa.RS256))
	public, err := private.PublicKey()
	assert.NoError(t, err)
	set := jwk.NewSet()
	assert.NoError(t, set.AddKey(public))
	jwks, err := json.Marshal(set)
	assert.NoError(t, err)
	return &signingKey{private: private, jwks: string(jwks)}
}

func (k *signingKey) sign(t *testing.T, token jwt.Token) string {
	t.Helper()
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, k.private))
	assert.NoError(t, err)
	return string(signed)
}

func joseServer() *domain.ServerConfiguration {
	return &domain.ServerConfiguration{
		TenantID:      "tenant-1",
		Issuer:        "https://auth.example.com",
		TokenEndpoint: "https://auth.example.com/oauth2/token",
	}
}

func joseClient(key *signingKey, method domain.ClientAuthenticationType) *domain.ClientConfiguration {
	return &domain.ClientConfiguration{
		TenantID:             "tenant-1",
		ClientID:             "test-client",
		AuthenticationMethod: method,
		Jwks:                 key.jwks,
	}
}

func TestRequestObjectDecoder_Decode(t *testing.T) {
	key := newSigningKey(t)
	server := joseServer()
	client := joseClient(key, domain.PrivateKeyJwt)
	decoder := NewRequestObjectDecoder(context.Background(), zap.NewNop())

	t.Run("should decode a signed request object", func(t *testing.T) {
		token, err := jwt.NewBuilder().
			Issuer("test-client").
			Audience([]string{"https://auth.example.com"}).
			Expiration(time.Now().Add(time.Minute)).
			Claim("response_type", "code").
			Claim("scope", "openid payments").
			Build()
		assert.NoError(t, err)

		claims, decodeErr := decoder.Decode(context.Background(), key.sign(t, token), client, server)
		assert.NoError(t, decodeErr)
		assert.Equal(t, "code", claims["response_type"])
		assert.Equal(t, "openid payments", claims["scope"])
	})

	t.Run("should reject an object issued by another client", func(t *testing.T) {
		token, err := jwt.NewBuilder().
			Issuer("other-client").
			Audience([]string{"https://auth.example.com"}).
			Expiration(time.Now().Add(time.Minute)).
			Build()
		assert.NoError(t, err)

		_, decodeErr := decoder.Decode(context.Background(), key.sign(t, token), client, server)
		assert.Error(t, decodeErr)
	})

	t.Run("should reject an object signed with an unknown key", func(t *testing.T) {
		otherKey := newSigningKey(t)
		token, err := jwt.NewBuilder().
			Issuer("test-client").
			Audience([]string{"https://auth.example.com"}).
			Expiration(time.Now().Add(time.Minute)).
			Build()
		assert.NoError(t, err)

		_, decodeErr := decoder.Decode(context.Background(), otherKey.sign(t, token), client, server)
		assert.Error(t, decodeErr)
	})

	t.Run("should reject a client with no registered keys", func(t *testing.T) {
		bare := &domain.ClientConfiguration{TenantID: "tenant-1", ClientID: "test-client"}
		_, decodeErr := decoder.Decode(context.Background(), "not-a-jwt", bare, server)
		assert.Error(t, decodeErr)
	})
}

func TestClientAssertionVerifier_Verify(t *testing.T) {
	key := newSigningKey(t)
	server := joseServer()
	verifier := NewClientAssertionVerifier(context.Background(), zap.NewNop())

	assertionFor := func(t *testing.T, iss, sub string) jwt.Token {
		token, err := jwt.NewBuilder().
			Issuer(iss).
			Subject(sub).
			Audience([]string{server.TokenEndpoint}).
			Expiration(time.Now().Add(time.Minute)).
			Build()
		assert.NoError(t, err)
		return token
	}

	t.Run("should verify a private_key_jwt assertion", func(t *testing.T) {
		client := joseClient(key, domain.PrivateKeyJwt)
		asserted, err := verifier.Verify(context.Background(), key.sign(t, assertionFor(t, "test-client", "test-client")), client, server.TokenEndpoint)
		assert.NoError(t, err)
		assert.Equal(t, "test-client", asserted)
	})

	t.Run("should reject an assertion where iss and sub differ", func(t *testing.T) {
		client := joseClient(key, domain.PrivateKeyJwt)
		_, err := verifier.Verify(context.Background(), key.sign(t, assertionFor(t, "test-client", "other-client")), client, server.TokenEndpoint)
		assert.Error(t, err)
	})

	t.Run("should reject an assertion for another audience", func(t *testing.T) {
		client := joseClient(key, domain.PrivateKeyJwt)
		token, err := jwt.NewBuilder().
			Issuer("test-client").
			Subject("test-client").
			Audience([]string{"https://other.example.com/token"}).
			Expiration(time.Now().Add(time.Minute)).
			Build()
		assert.NoError(t, err)

		_, verifyErr := verifier.Verify(context.Background(), key.sign(t, token), client, server.TokenEndpoint)
		assert.Error(t, verifyErr)
	})

	t.Run("should verify a client_secret_jwt assertion", func(t *testing.T) {
		client := &domain.ClientConfiguration{
			TenantID:             "tenant-1",
			ClientID:             "test-client",
			AuthenticationMethod: domain.ClientSecretJwt,
			ClientSecret:         "a-shared-secret-of-sufficient-length",
		}
		signed, err := jwt.Sign(assertionFor(t, "test-client", "test-client"), jwt.WithKey(jwa.HS256, []byte(client.ClientSecret)))
		assert.NoError(t, err)

		asserted, verifyErr := verifier.Verify(context.Background(), string(signed), client, server.TokenEndpoint)
		assert.NoError(t, verifyErr)
		assert.Equal(t, "test-client", asserted)
	})

	t.Run("should reject assertions for methods that do not use them", func(t *testing.T) {
		client := joseClient(key, domain.ClientSecretBasic)
		_, err := verifier.Verify(context.Background(), key.sign(t, assertionFor(t, "test-client", "test-client")), client, server.TokenEndpoint)
		assert.Error(t, err)
	})
}

func TestJwtBearerVerifier_Verify(t *testing.T) {
	key := newSigningKey(t)
	server := joseServer()
	client := joseClient(key, domain.PrivateKeyJwt)
	verifier := NewJwtBearerVerifier(context.Background(), zap.NewNop())

	t.Run("should return the asserted subject and scopes", func(t *testing.T) {
		token, err := jwt.NewBuilder().
			Issuer("test-client").
			Subject("user-123").
			Audience([]string{server.TokenEndpoint}).
			Expiration(time.Now().Add(time.Minute)).
			Claim("scope", "openid profile").
			Build()
		assert.NoError(t, err)

		subject, scopes, verifyErr := verifier.Verify(context.Background(), key.sign(t, token), client, server.TokenEndpoint)
		assert.NoError(t, verifyErr)
		assert.Equal(t, "user-123", subject)
		assert.Equal(t, []string{"openid", "profile"}, scopes)
	})

	t.Run("should reject an assertion without a subject", func(t *testing.T) {
		token, err := jwt.NewBuilder().
			Issuer("test-client").
			Audience([]string{server.TokenEndpoint}).
			Expiration(time.Now().Add(time.Minute)).
			Build()
		assert.NoError(t, err)

		_, _, verifyErr := verifier.Verify(context.Background(), key.sign(t, token), client, server.TokenEndpoint)
		assert.Error(t, verifyErr)
	})

	t.Run("should reject an expired assertion", func(t *testing.T) {
		token, err := jwt.NewBuilder().
			Issuer("test-client").
			Subject("user-123").
			Audience([]string{server.TokenEndpoint}).
			Expiration(time.Now().Add(-time.Minute)).
			Build()
		assert.NoError(t, err)

		_, _, verifyErr := verifier.Verify(context.Background(), key.sign(t, token), client, server.TokenEndpoint)
		assert.Error(t, verifyErr)
	})
}
