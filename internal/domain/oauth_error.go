package domain

import "fmt"

// OAuth error codes per RFC 6749 §5.2, OIDC Core, RFC 9101 and CIBA.
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidRequestObject    = "invalid_request_object"
	ErrorInvalidRequestURI       = "invalid_request_uri"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorInvalidScope            = "invalid_scope"
	ErrorUnauthorizedClient      = "unauthorized_client"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorAccessDenied            = "access_denied"
	ErrorInvalidBindingMessage   = "invalid_binding_message"
	ErrorAuthorizationPending    = "authorization_pending"
	ErrorSlowDown                = "slow_down"
	ErrorExpiredToken            = "expired_token"
	ErrorServerError             = "server_error"
)

// OAuthError is a typed protocol error carrying the OAuth error code and
// description the transport adapter maps 1:1 to the wire error body. The
// redirectable variant additionally carries the client's validated redirect
// URI and state so the error can be delivered there instead of a bare 400.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	RedirectURI string `json:"-"`
	State       string `json:"-"`
}

// Error returns the error message
func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Redirectable reports whether the error can be delivered to the client's
// redirect URI
func (e *OAuthError) Redirectable() bool {
	return e.RedirectURI != ""
}

// WithRedirect attaches a validated redirect URI and state to the error
func (e *OAuthError) WithRedirect(redirectURI, state string) *OAuthError {
	return &OAuthError{
		Code:        e.Code,
		Description: e.Description,
		RedirectURI: redirectURI,
		State:       state,
	}
}

// NewOAuthError creates a new protocol error
func NewOAuthError(code, description string) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
	}
}
