package handlers

import (
	"net/http"

	"github.com/ipede/authorization-server/internal/domain"
	httperrors "github.com/ipede/authorization-server/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// IntrospectionHandler adapts the introspection and revocation endpoints
type IntrospectionHandler struct {
	service domain.IntrospectionService
	logger  *zap.Logger
}

func NewIntrospectionHandler(service domain.IntrospectionService, logger *zap.Logger) *IntrospectionHandler {
	return &IntrospectionHandler{service: service, logger: logger}
}

// IntrospectHandler reports token state per RFC 7662. Unknown and expired
// tokens answer active=false, never an error.
func (h *IntrospectionHandler) IntrospectHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondOAuthError(w, domain.NewOAuthError(domain.ErrorInvalidRequest, "malformed request body"))
		return
	}

	response, err := h.service.Introspect(r.Context(), tenantID(r), r.PostFormValue("token"), clientCertificate(r))
	if err != nil {
		h.logger.Error("Introspection failed", zap.Error(err))
		httperrors.RespondOAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response)
}

// RevokeHandler deletes a token per RFC 7009. Revoking an unknown token is a
// success so callers cannot probe for token existence.
func (h *IntrospectionHandler) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondOAuthError(w, domain.NewOAuthError(domain.ErrorInvalidRequest, "malformed request body"))
		return
	}

	if err := h.service.Revoke(r.Context(), tenantID(r), r.PostFormValue("token"), clientAuthRequest(r)); err != nil {
		h.logger.Debug("Revocation rejected", zap.Error(err))
		httperrors.RespondOAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
