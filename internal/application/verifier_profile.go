package application

import (
	"strings"

	"github.com/ipede/authorization-server/internal/domain"
)

// oauth2Verifier enforces the constraints every authorization request must
// satisfy regardless of profile
type oauth2Verifier struct{}

func (v *oauth2Verifier) ShouldVerify(*domain.OAuthRequestContext) bool { return true }

func (v *oauth2Verifier) Verify(rc *domain.OAuthRequestContext) error {
	redirectURI := rc.RedirectURI()
	if redirectURI == "" && len(rc.Client.RedirectURIs) != 1 {
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "redirect_uri is required")
	}
	if redirectURI != "" && !rc.Client.HasRedirectURI(redirectURI) {
		// Unregistered redirect URIs must never receive the error
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "redirect_uri is not registered")
	}

	responseType := rc.ResponseType()
	if responseType == "" {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "response_type is required"))
	}
	if !rc.Server.SupportsResponseType(responseType) {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorUnsupportedResponseType, "response_type is not supported by the server"))
	}
	if !rc.Client.SupportsResponseType(responseType) {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorUnauthorizedClient, "client is not registered for the response_type"))
	}

	if len(rc.RequestedScopes()) > 0 && len(rc.Scopes) == 0 {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidScope, "no requested scope is allowed for the client"))
	}

	return nil
}

// oidcVerifier adds the OIDC-mandatory constraints on top of the OAuth2 ones
type oidcVerifier struct {
	oauth2Verifier
}

func (v *oidcVerifier) Verify(rc *domain.OAuthRequestContext) error {
	if err := v.oauth2Verifier.Verify(rc); err != nil {
		return err
	}

	hasOpenID := false
	for _, scope := range rc.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidScope, "openid scope is required"))
	}

	if strings.Contains(rc.ResponseType(), "id_token") && rc.Param("nonce") == "" {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "nonce is required when response_type includes id_token"))
	}

	return nil
}

// fapiBaselineVerifier enforces the FAPI Baseline mandatory constraints
type fapiBaselineVerifier struct {
	oidcVerifier
}

func (v *fapiBaselineVerifier) Verify(rc *domain.OAuthRequestContext) error {
	if err := v.oidcVerifier.Verify(rc); err != nil {
		return err
	}

	if uri := rc.ResolvedRedirectURI(); uri != "" && !strings.HasPrefix(uri, "https://") {
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "redirect_uri must use https")
	}

	if rc.Param("code_challenge") == "" {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "code_challenge is required"))
	}
	if rc.Param("code_challenge_method") != "S256" {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "code_challenge_method must be S256"))
	}

	return nil
}

// fapiAdvanceVerifier enforces the FAPI Advance mandatory constraints
type fapiAdvanceVerifier struct {
	fapiBaselineVerifier
}

func (v *fapiAdvanceVerifier) Verify(rc *domain.OAuthRequestContext) error {
	if rc.Pattern == domain.PatternNormal {
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "signed request object is required")
	}

	if err := v.fapiBaselineVerifier.Verify(rc); err != nil {
		return err
	}

	responseType := rc.ResponseType()
	if responseType == "code" && !isJarmResponseMode(rc.ResponseMode()) {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorInvalidRequest, "response_type code requires a jwt response_mode"))
	}
	if responseType != "code" && responseType != "code id_token" {
		return redirectable(rc, domain.NewOAuthError(domain.ErrorUnsupportedResponseType, "response_type must be code or code id_token"))
	}

	return nil
}

func isJarmResponseMode(mode string) bool {
	switch mode {
	case "jwt", "query.jwt", "fragment.jwt", "form_post.jwt":
		return true
	}
	return false
}
