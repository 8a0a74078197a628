package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ipede/authorization-server/internal/domain"
	httperrors "github.com/ipede/authorization-server/internal/interfaces/http/errors"
	"github.com/ipede/authorization-server/internal/interfaces/http/middleware/session"
	"go.uber.org/zap"
)

// AuthorizationHandler adapts the authorization endpoint and the end-user
// decision endpoints
type AuthorizationHandler struct {
	service domain.AuthorizationService
	logger  *zap.Logger
}

func NewAuthorizationHandler(service domain.AuthorizationService, logger *zap.Logger) *AuthorizationHandler {
	return &AuthorizationHandler{service: service, logger: logger}
}

// AuthorizationRequestResponse is handed to the login/consent frontend so it
// can drive the end-user interaction and call back with a decision
type AuthorizationRequestResponse struct {
	RequestID string    `json:"request_id"`
	ClientID  string    `json:"client_id"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DecisionResponse tells the frontend where to send the user agent next
type DecisionResponse struct {
	RedirectTo string `json:"redirect_to"`
}

// PushedRequestResponse is the RFC 9126 §2.2 response body
type PushedRequestResponse struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int64  `json:"expires_in"`
}

// PushHandler stores a pushed authorization request for the authenticated
// client. Errors are answered in the body, never redirected.
func (h *AuthorizationHandler) PushHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondOAuthError(w, domain.NewOAuthError(domain.ErrorInvalidRequest, "malformed request body"))
		return
	}

	response, err := h.service.Push(r.Context(), tenantID(r), r.PostForm, clientAuthRequest(r))
	if err != nil {
		h.logger.Debug("Pushed authorization request rejected", zap.Error(err))
		httperrors.RespondOAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, PushedRequestResponse{
		RequestURI: response.RequestURI,
		ExpiresIn:  response.ExpiresIn,
	})
}

// AuthorizeHandler builds and persists an authorization request from the
// query or form parameters
func (h *AuthorizationHandler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondOAuthError(w, domain.NewOAuthError(domain.ErrorInvalidRequest, "malformed request body"))
		return
	}

	request, err := h.service.Request(r.Context(), tenantID(r), r.Form)
	if err != nil {
		h.logger.Debug("Authorization request rejected", zap.Error(err))
		httperrors.RedirectOAuthError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, AuthorizationRequestResponse{
		RequestID: request.ID,
		ClientID:  request.ClientID,
		Scopes:    request.Scopes,
		ExpiresAt: request.ExpiresAt,
	})
}

// ApproveHandler consumes a pending request after end-user approval and
// returns the success redirect
func (h *AuthorizationHandler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	userID := session.UserID(r)

	response, err := h.service.Authorize(r.Context(), tenantID(r), requestID, userID, session.AuthTime(r))
	if err != nil {
		h.respondDecisionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DecisionResponse{RedirectTo: response.Location()})
}

// DenyHandler consumes a pending request after end-user refusal and returns
// the error redirect
func (h *AuthorizationHandler) DenyHandler(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	reason := r.PostFormValue("reason")

	response, err := h.service.Deny(r.Context(), tenantID(r), requestID, reason)
	if err != nil {
		h.respondDecisionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DecisionResponse{RedirectTo: response.Location()})
}

// respondDecisionError answers a decision call. The frontend talks to these
// endpoints over XHR, so redirectable errors are returned as a redirect_to
// body instead of a 302.
func (h *AuthorizationHandler) respondDecisionError(w http.ResponseWriter, err error) {
	h.logger.Debug("Decision rejected", zap.Error(err))
	if location, ok := httperrors.RedirectLocation(err); ok {
		respondJSON(w, http.StatusOK, DecisionResponse{RedirectTo: location})
		return
	}
	httperrors.RespondOAuthError(w, err)
}
