package domain

// AuthorizationProfile identifies the security profile negotiated for a
// request. It drives which base verifier and default extension verifiers apply.
type AuthorizationProfile string

const (
	ProfileOAuth2       AuthorizationProfile = "OAUTH2"
	ProfileOIDC         AuthorizationProfile = "OIDC"
	ProfileFapiBaseline AuthorizationProfile = "FAPI_BASELINE"
	ProfileFapiAdvance  AuthorizationProfile = "FAPI_ADVANCE"
)

// DeriveProfile determines the authorization profile from the requested
// scopes. The ordering is a fixed precedence: FAPI-Advance scope wins over
// FAPI-Baseline, which wins over openid, which wins over plain OAuth2.
func DeriveProfile(scopes []string, server *ServerConfiguration) AuthorizationProfile {
	for _, scope := range scopes {
		if contains(server.FapiAdvanceScopes, scope) {
			return ProfileFapiAdvance
		}
	}
	for _, scope := range scopes {
		if contains(server.FapiBaselineScopes, scope) {
			return ProfileFapiBaseline
		}
	}
	if contains(scopes, "openid") {
		return ProfileOIDC
	}
	return ProfileOAuth2
}

// IsFapi reports whether the profile is one of the FAPI profiles
func (p AuthorizationProfile) IsFapi() bool {
	return p == ProfileFapiBaseline || p == ProfileFapiAdvance
}
