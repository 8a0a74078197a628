package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// UserinfoProvider resolves an access token to the subject's claims
type UserinfoProvider interface {
	Userinfo(ctx context.Context, tenantID, accessToken, clientCertificate string) (map[string]interface{}, error)
}

// UserinfoHandler adapts the OIDC userinfo endpoint
type UserinfoHandler struct {
	service UserinfoProvider
	logger  *zap.Logger
}

func NewUserinfoHandler(service UserinfoProvider, logger *zap.Logger) *UserinfoHandler {
	return &UserinfoHandler{service: service, logger: logger}
}

// Handle resolves the Bearer token and responds with the subject's claims
func (h *UserinfoHandler) Handle(w http.ResponseWriter, r *http.Request) {
	accessToken := bearerToken(r)
	if accessToken == "" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}

	claims, err := h.service.Userinfo(r.Context(), tenantID(r), accessToken, clientCertificate(r))
	if err != nil {
		h.logger.Debug("Userinfo rejected", zap.Error(err))
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo", error="invalid_token"`)
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, claims)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
