package application

import (
	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

// Verifier is a single verification rule run against a built request context.
// ShouldVerify lets a verifier opt out per context; Verify raises on the
// first violated rule and otherwise returns nil.
type Verifier interface {
	ShouldVerify(rc *domain.OAuthRequestContext) bool
	Verify(rc *domain.OAuthRequestContext) error
}

// AuthorizationVerifier validates a built request context against the
// profile-specific base verifier and an ordered list of extension verifiers.
// Verifiers are registered statically at construction.
type AuthorizationVerifier struct {
	base       map[domain.AuthorizationProfile]Verifier
	extensions []Verifier
	logger     *zap.Logger
}

// NewAuthorizationVerifier registers the built-in base and extension verifiers
func NewAuthorizationVerifier(logger *zap.Logger) *AuthorizationVerifier {
	return &AuthorizationVerifier{
		base: map[domain.AuthorizationProfile]Verifier{
			domain.ProfileOAuth2:       &oauth2Verifier{},
			domain.ProfileOIDC:         &oidcVerifier{},
			domain.ProfileFapiBaseline: &fapiBaselineVerifier{},
			domain.ProfileFapiAdvance:  &fapiAdvanceVerifier{},
		},
		extensions: []Verifier{
			&pkceVerifier{},
			&requestObjectVerifier{},
			&richAuthorizationRequestVerifier{},
			&jarmVerifier{},
			&pushedRequestVerifier{},
		},
		logger: logger,
	}
}

// Verify runs the base verifier for the context profile followed by every
// applicable extension verifier. The first violation aborts the pipeline
// with that verifier's error.
func (v *AuthorizationVerifier) Verify(rc *domain.OAuthRequestContext) error {
	base, ok := v.base[rc.Profile]
	if !ok {
		// Unmapped profile is a server-side defect, not a client error
		v.logger.Error("No base verifier registered for profile",
			zap.String("profile", string(rc.Profile)))
		return domain.NewOAuthError(domain.ErrorServerError, "unsupported authorization profile")
	}

	if err := base.Verify(rc); err != nil {
		return err
	}

	for _, extension := range v.extensions {
		if !extension.ShouldVerify(rc) {
			continue
		}
		if err := extension.Verify(rc); err != nil {
			return err
		}
	}

	return nil
}

// redirectable attaches the resolved redirect URI to the error when the
// client redirect is already known, so the caller can deliver the error to
// the client instead of a bare 400
func redirectable(rc *domain.OAuthRequestContext, err *domain.OAuthError) error {
	if uri := rc.ResolvedRedirectURI(); uri != "" {
		return err.WithRedirect(uri, rc.State())
	}
	return err
}
