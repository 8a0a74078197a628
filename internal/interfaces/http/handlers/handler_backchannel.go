package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ipede/authorization-server/internal/domain"
	httperrors "github.com/ipede/authorization-server/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// BackchannelHandler adapts the CIBA backchannel authentication endpoint and
// the authentication device decision endpoints
type BackchannelHandler struct {
	service domain.CibaService
	logger  *zap.Logger
}

func NewBackchannelHandler(service domain.CibaService, logger *zap.Logger) *BackchannelHandler {
	return &BackchannelHandler{service: service, logger: logger}
}

// AuthenticateHandler builds and persists a backchannel transaction
func (h *BackchannelHandler) AuthenticateHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondOAuthError(w, domain.NewOAuthError(domain.ErrorInvalidRequest, "malformed request body"))
		return
	}

	response, err := h.service.Request(r.Context(), tenantID(r), r.PostForm, clientAuthRequest(r))
	if err != nil {
		h.logger.Debug("Backchannel authentication rejected", zap.Error(err))
		httperrors.RespondOAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response)
}

// ApproveHandler records the end-user's approval on the authentication device
func (h *BackchannelHandler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Authorize(r.Context(), tenantID(r), chi.URLParam(r, "authReqID")); err != nil {
		h.respondDecisionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DenyHandler records the end-user's refusal on the authentication device
func (h *BackchannelHandler) DenyHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deny(r.Context(), tenantID(r), chi.URLParam(r, "authReqID")); err != nil {
		h.respondDecisionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BackchannelHandler) respondDecisionError(w http.ResponseWriter, err error) {
	h.logger.Debug("Backchannel decision rejected", zap.Error(err))
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		http.Error(w, "transaction not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrTransactionTerminal):
		http.Error(w, "transaction already completed", http.StatusConflict)
	default:
		httperrors.RespondOAuthError(w, err)
	}
}
