package application

import (
	"strings"

	"github.com/ipede/authorization-server/internal/domain"
)

// pkceVerifier checks the PKCE parameters whenever a code challenge is
// presented or the profile mandates one
type pkceVerifier struct{}

func (v *pkceVerifier) ShouldVerify(rc *domain.OAuthRequestContext) bool {
	return rc.Param("code_challenge") != "" || rc.Profile.IsFapi()
}

func (v *pkceVerifier) Verify(rc *domain.OAuthRequestContext) error {
	// length bounds apply to the code_verifier at redemption, not here
	challenge := rc.Param("code_challenge")
	if challenge == "" {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "code_challenge is required"))
	}

	method := rc.Param("code_challenge_method")
	switch method {
	case "", "plain":
		if rc.Profile.IsFapi() {
			return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "code_challenge_method must be S256"))
		}
	case "S256":
	default:
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "code_challenge_method must be plain or S256"))
	}

	return nil
}

// requestObjectVerifier checks the decoded request object whenever the
// request object or request URI pattern was used
type requestObjectVerifier struct{}

func (v *requestObjectVerifier) ShouldVerify(rc *domain.OAuthRequestContext) bool {
	return rc.Pattern == domain.PatternRequestObject || rc.Pattern == domain.PatternRequestURI
}

func (v *requestObjectVerifier) Verify(rc *domain.OAuthRequestContext) error {
	if len(rc.JoseClaims) == 0 {
		return domain.NewOAuthError(domain.ErrorInvalidRequestObject, "request object has no claims")
	}

	if clientID, ok := rc.JoseClaims["client_id"].(string); ok && clientID != rc.Client.ClientID {
		return domain.NewOAuthError(domain.ErrorInvalidRequestObject, "request object client_id does not match the requesting client")
	}

	if rc.JarAuthoritative() {
		if _, ok := rc.JoseClaims["response_type"].(string); !ok {
			return domain.NewOAuthError(domain.ErrorInvalidRequestObject, "request object must carry response_type")
		}
		if _, ok := rc.JoseClaims["scope"].(string); !ok {
			return domain.NewOAuthError(domain.ErrorInvalidRequestObject, "request object must carry scope")
		}
	}

	return nil
}

// richAuthorizationRequestVerifier checks the structural validity of the
// authorization_details parameter
type richAuthorizationRequestVerifier struct{}

func (v *richAuthorizationRequestVerifier) ShouldVerify(rc *domain.OAuthRequestContext) bool {
	return rc.Param("authorization_details") != ""
}

func (v *richAuthorizationRequestVerifier) Verify(rc *domain.OAuthRequestContext) error {
	details, err := domain.ParseAuthorizationDetails(rc.Param("authorization_details"))
	if err != nil {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "authorization_details is not a valid JSON array"))
	}
	if len(details) == 0 {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "authorization_details must not be empty"))
	}
	for _, detail := range details {
		if detail.Type() == "" {
			return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "authorization_details entry is missing type"))
		}
	}
	return nil
}

// jarmVerifier checks that a jwt response_mode is compatible with the client
// registration
type jarmVerifier struct{}

func (v *jarmVerifier) ShouldVerify(rc *domain.OAuthRequestContext) bool {
	return isJarmResponseMode(rc.ResponseMode())
}

func (v *jarmVerifier) Verify(rc *domain.OAuthRequestContext) error {
	if rc.Client.AuthorizationSignedAlg == "" {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "client is not registered for signed authorization responses"))
	}
	return nil
}

// pushedRequestVerifier enforces pushed authorization request usage for
// clients registered to require it
type pushedRequestVerifier struct{}

func (v *pushedRequestVerifier) ShouldVerify(rc *domain.OAuthRequestContext) bool {
	return rc.Client.RequirePushedAuthorization && !rc.Pushed
}

func (v *pushedRequestVerifier) Verify(rc *domain.OAuthRequestContext) error {
	if rc.Pattern != domain.PatternRequestURI {
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "client must use pushed authorization requests")
	}
	if !strings.HasPrefix(rc.Parameters.Get("request_uri"), domain.PushedRequestURIPrefix) {
		return domain.NewOAuthError(domain.ErrorInvalidRequestURI, "request_uri was not issued by the pushed authorization endpoint")
	}
	return nil
}
