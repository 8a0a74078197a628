package handlers

import (
	"net/http"

	"github.com/ipede/authorization-server/internal/domain"
	httperrors "github.com/ipede/authorization-server/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// DiscoveryHandler serves the per-tenant OpenID Provider metadata and the
// signing keys
type DiscoveryHandler struct {
	serverRepo domain.ServerConfigurationRepository
	signer     domain.TokenSigner
	logger     *zap.Logger
}

func NewDiscoveryHandler(serverRepo domain.ServerConfigurationRepository, signer domain.TokenSigner, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{serverRepo: serverRepo, signer: signer, logger: logger}
}

// ConfigurationHandler serves /.well-known/openid-configuration
func (h *DiscoveryHandler) ConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverRepo.Get(r.Context(), tenantID(r))
	if err != nil {
		h.logger.Warn("Unknown tenant on discovery", zap.String("tenant_id", tenantID(r)))
		http.Error(w, "unknown tenant", http.StatusNotFound)
		return
	}

	respondDiscovery(w, server)
}

func respondDiscovery(w http.ResponseWriter, server *domain.ServerConfiguration) {
	document := map[string]interface{}{
		"issuer":                                server.Issuer,
		"authorization_endpoint":                server.AuthorizationEndpoint,
		"token_endpoint":                        server.TokenEndpoint,
		"introspection_endpoint":                server.IntrospectionEndpoint,
		"revocation_endpoint":                   server.RevocationEndpoint,
		"userinfo_endpoint":                     server.UserinfoEndpoint,
		"jwks_uri":                              server.JwksURI,
		"scopes_supported":                      server.ScopesSupported,
		"response_types_supported":              server.ResponseTypesSupported,
		"grant_types_supported":                 server.GrantTypesSupported,
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"code_challenge_methods_supported":      []string{"S256", "plain"},
		"token_endpoint_auth_methods_supported": []string{
			"client_secret_basic", "client_secret_post", "client_secret_jwt",
			"private_key_jwt", "tls_client_auth", "self_signed_tls_client_auth",
		},
		"request_parameter_supported":     true,
		"request_uri_parameter_supported": true,
	}
	if server.BackchannelAuthEndpoint != "" {
		document["backchannel_authentication_endpoint"] = server.BackchannelAuthEndpoint
		document["backchannel_token_delivery_modes_supported"] = []string{"poll", "ping", "push"}
	}
	respondJSON(w, http.StatusOK, document)
}

// JWKSHandler serves the public signing keys
func (h *DiscoveryHandler) JWKSHandler(w http.ResponseWriter, r *http.Request) {
	jwks, err := h.signer.JWKS(r.Context())
	if err != nil {
		h.logger.Error("Failed to assemble jwks", zap.Error(err))
		httperrors.RespondOAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, jwks)
}
