package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

const rsaKeySize = 2048

// Signer signs access and ID tokens with a local RSA key pair, loaded from
// disk or generated on first start.
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	keyPath    string
	keyID      string
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewSigner creates a token signer backed by the key pair at keyPath
func NewSigner(keyPath string, logger *zap.Logger) (*Signer, error) {
	signer := &Signer{keyPath: keyPath, logger: logger}
	if err := signer.loadOrGenerateKeyPair(); err != nil {
		return nil, err
	}
	signer.keyID = generateKeyID(signer.privateKey)
	return signer, nil
}

func (s *Signer) loadOrGenerateKeyPair() error {
	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0700); err != nil {
		return err
	}
	if err := s.loadKeyPair(); err == nil {
		return nil
	}
	return s.generateKeyPair()
}

func (s *Signer) loadKeyPair() error {
	privateKeyPEM, err := os.ReadFile(s.keyPath)
	if err != nil {
		return err
	}
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return domain.ErrInternal
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return err
	}
	s.privateKey = privateKey
	s.publicKey = &privateKey.PublicKey
	return nil
}

func (s *Signer) generateKeyPair() error {
	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeySize)
	if err != nil {
		return err
	}
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	if err := os.WriteFile(s.keyPath, privateKeyPEM, 0600); err != nil {
		return err
	}
	s.privateKey = privateKey
	s.publicKey = &privateKey.PublicKey
	return nil
}

// SignAccessToken signs a JWT access token carrying the aggregate's scopes,
// authorization details and certificate binding
func (s *Signer) SignAccessToken(server *domain.ServerConfiguration, token *domain.OAuthToken) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := jwt.MapClaims{
		"iss":       server.Issuer,
		"sub":       token.Subject,
		"aud":       token.ClientID,
		"client_id": token.ClientID,
		"jti":       token.ID,
		"iat":       token.CreatedAt.Unix(),
		"exp":       token.AccessTokenExpiresAt.Unix(),
	}
	if token.Subject == "" {
		claims["sub"] = token.ClientID
	}
	if len(token.Scopes) > 0 {
		claims["scope"] = strings.Join(token.Scopes, " ")
	}
	if len(token.AuthorizationDetails) > 0 {
		claims["authorization_details"] = token.AuthorizationDetails
	}
	if token.SenderConstrained() {
		claims["cnf"] = map[string]interface{}{"x5t#S256": token.CertificateThumbprint}
	}
	return s.sign(claims)
}

// SignIDToken signs an ID token for the subject and audience, merging in the
// granted user claims
func (s *Signer) SignIDToken(server *domain.ServerConfiguration, clientID, subject, nonce string, authTime time.Time, claims map[string]interface{}, duration time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	idClaims := jwt.MapClaims{
		"iss": server.Issuer,
		"sub": subject,
		"aud": clientID,
		"iat": now.Unix(),
		"exp": now.Add(duration).Unix(),
	}
	if !authTime.IsZero() {
		idClaims["auth_time"] = authTime.Unix()
	}
	if nonce != "" {
		idClaims["nonce"] = nonce
	}
	for name, value := range claims {
		if _, reserved := idClaims[name]; !reserved {
			idClaims[name] = value
		}
	}
	return s.sign(idClaims)
}

// JWKS returns the public signing key in JWK Set form
func (s *Signer) JWKS(_ context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"keys": []map[string]interface{}{
			{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": s.keyID,
				"n":   base64.RawURLEncoding.EncodeToString(s.publicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(s.publicKey.E)).Bytes()),
			},
		},
	}, nil
}

func (s *Signer) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		s.logger.Error("failed to sign token", zap.Error(err))
		return "", domain.ErrInternal
	}
	return signed, nil
}

// generateKeyID derives a stable key ID from the public key components
func generateKeyID(key *rsa.PrivateKey) string {
	data := append(key.N.Bytes(), byte(key.E))
	hash := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
