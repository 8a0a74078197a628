package application

import (
	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

// maxBindingMessageLength bounds the binding_message so authentication
// devices can render it in full
const maxBindingMessageLength = 100

// CibaVerifier validates a backchannel authentication request after client
// authentication. The plain profile rules always run; FAPI tightens them.
type CibaVerifier struct {
	logger *zap.Logger
}

// NewCibaVerifier creates a new CibaVerifier
func NewCibaVerifier(logger *zap.Logger) *CibaVerifier {
	return &CibaVerifier{logger: logger}
}

// Verify applies the backchannel request rules for the derived profile
func (v *CibaVerifier) Verify(rc *domain.CibaRequestContext) error {
	if !rc.Server.SupportsGrantType(domain.GrantTypeCiba) {
		return domain.NewOAuthError(domain.ErrorUnauthorizedClient, "backchannel authentication is not enabled for this server")
	}
	if !rc.Client.SupportsGrantType(domain.GrantTypeCiba) {
		return domain.NewOAuthError(domain.ErrorUnauthorizedClient, "client is not authorized for backchannel authentication")
	}
	if rc.Client.BackchannelDeliveryMode == "" {
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "client has no registered token delivery mode")
	}

	if !contains(rc.Request.Scopes, "openid") {
		return domain.NewOAuthError(domain.ErrorInvalidScope, "openid scope is required")
	}

	if !rc.Request.HasUserHint() {
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "one of login_hint, login_hint_token or id_token_hint is required")
	}

	switch rc.Client.BackchannelDeliveryMode {
	case domain.DeliveryModePing, domain.DeliveryModePush:
		if rc.Request.ClientNotificationToken == "" {
			return domain.NewOAuthError(domain.ErrorInvalidRequest, "client_notification_token is required for ping and push delivery")
		}
	}

	if rc.Profile.IsFapi() {
		return v.verifyFapi(rc)
	}
	return nil
}

// verifyFapi applies the FAPI-CIBA tightening on top of the plain rules
func (v *CibaVerifier) verifyFapi(rc *domain.CibaRequestContext) error {
	if rc.Pattern != domain.PatternRequestObject {
		v.logger.Debug("FAPI backchannel request without signed request object",
			zap.String("client_id", rc.Client.ClientID))
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "signed request object is required")
	}
	// authorization_details already gives the user a unique context to
	// approve; otherwise the binding message does
	if len(rc.Request.AuthorizationDetails) == 0 && rc.Request.BindingMessage == "" {
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "binding_message is required")
	}
	if len(rc.Request.BindingMessage) > maxBindingMessageLength {
		return domain.NewOAuthError(domain.ErrorInvalidBindingMessage, "binding_message is too long to display")
	}
	if rc.Client.BackchannelDeliveryMode == domain.DeliveryModePush {
		return domain.NewOAuthError(domain.ErrorInvalidRequest, "push delivery is not permitted")
	}
	return nil
}
