package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	httperrors "github.com/ipede/authorization-server/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// TokenHandler adapts the token endpoint
type TokenHandler struct {
	service domain.TokenService
	logger  *zap.Logger
}

func NewTokenHandler(service domain.TokenService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{service: service, logger: logger}
}

// TokenResponse is the RFC 6749 §5.1 token response body
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Handle dispatches a token endpoint call to the grant services
func (h *TokenHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httperrors.RespondOAuthError(w, domain.NewOAuthError(domain.ErrorInvalidRequest, "malformed request body"))
		return
	}

	token, err := h.service.Token(r.Context(), tenantID(r), r.PostForm, clientAuthRequest(r))
	if err != nil {
		h.logger.Debug("Token request rejected", zap.Error(err))
		httperrors.RespondOAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    int64(time.Until(token.AccessTokenExpiresAt).Seconds()),
		RefreshToken: token.RefreshToken,
		IDToken:      token.IDToken,
		Scope:        strings.Join(token.Scopes, " "),
	})
}
