// Package errors maps protocol errors to the OAuth wire format. Every error
// leaving the transport layer is either the JSON error body of RFC 6749 §5.2
// or, when the authorization endpoint has a validated redirect URI, a
// redirect carrying error and state parameters.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/ipede/authorization-server/internal/domain"
)

// Status returns the HTTP status for an OAuth error code
func Status(code string) int {
	switch code {
	case domain.ErrorInvalidClient:
		return http.StatusUnauthorized
	case domain.ErrorServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// AsOAuthError normalizes any error into an OAuthError, folding unexpected
// failures into server_error without leaking their message
func AsOAuthError(err error) *domain.OAuthError {
	var oauthErr *domain.OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return domain.NewOAuthError(domain.ErrorServerError, "")
}

// RespondOAuthError writes the JSON error body
func RespondOAuthError(w http.ResponseWriter, err error) {
	oauthErr := AsOAuthError(err)
	status := Status(oauthErr.Code)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(oauthErr)
}

// RedirectLocation assembles the error delivery location for a redirectable
// error. The second return is false when the error must be answered with the
// JSON body instead.
func RedirectLocation(err error) (string, bool) {
	oauthErr := AsOAuthError(err)
	if !oauthErr.Redirectable() {
		return "", false
	}
	location, parseErr := url.Parse(oauthErr.RedirectURI)
	if parseErr != nil {
		return "", false
	}
	q := location.Query()
	q.Set("error", oauthErr.Code)
	if oauthErr.Description != "" {
		q.Set("error_description", oauthErr.Description)
	}
	if oauthErr.State != "" {
		q.Set("state", oauthErr.State)
	}
	location.RawQuery = q.Encode()
	return location.String(), true
}

// RedirectOAuthError delivers a redirectable error to the client's validated
// redirect URI, falling back to the JSON body when none is attached
func RedirectOAuthError(w http.ResponseWriter, r *http.Request, err error) {
	location, ok := RedirectLocation(err)
	if !ok {
		RespondOAuthError(w, err)
		return
	}
	http.Redirect(w, r, location, http.StatusFound)
}
