package domain

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// GrantTypeCiba is the CIBA grant type urn used at the token endpoint
const GrantTypeCiba = "urn:openid:params:grant-type:ciba"

// BackchannelTokenDeliveryMode is the token delivery mode negotiated at
// client registration. It is fixed per client and not renegotiable per
// request.
type BackchannelTokenDeliveryMode string

const (
	DeliveryModePoll BackchannelTokenDeliveryMode = "poll"
	DeliveryModePing BackchannelTokenDeliveryMode = "ping"
	DeliveryModePush BackchannelTokenDeliveryMode = "push"
)

// BackchannelTransactionStatus is the state of a CIBA transaction
type BackchannelTransactionStatus string

const (
	TransactionCreated    BackchannelTransactionStatus = "CREATED"
	TransactionAuthorized BackchannelTransactionStatus = "AUTHORIZED"
	TransactionDenied     BackchannelTransactionStatus = "DENIED"
	TransactionExpired    BackchannelTransactionStatus = "EXPIRED"
)

// BackchannelAuthenticationRequest is the CIBA analogue of an authorization
// request, assembled from the backchannel authentication endpoint parameters
// or the decoded signed request object.
type BackchannelAuthenticationRequest struct {
	TenantID                string
	ClientID                string
	Scopes                  []string
	LoginHint               string
	LoginHintToken          string
	IDTokenHint             string
	BindingMessage          string
	UserCode                string
	ClientNotificationToken string
	ACRValues               string
	RequestedExpiry         time.Duration
	AuthorizationDetails    []AuthorizationDetail
	RequestObject           string
}

// HasUserHint reports whether at least one of login_hint, login_hint_token or
// id_token_hint was supplied
func (r *BackchannelAuthenticationRequest) HasUserHint() bool {
	return r.LoginHint != "" || r.LoginHintToken != "" || r.IDTokenHint != ""
}

// CibaRequestContext is the working unit for backchannel request
// verification, mirroring OAuthRequestContext.
type CibaRequestContext struct {
	TenantID   string
	Pattern    RequestPattern
	Parameters url.Values
	JoseClaims map[string]interface{}
	Server     *ServerConfiguration
	Client     *ClientConfiguration
	Profile    AuthorizationProfile
	Request    *BackchannelAuthenticationRequest
}

// Param returns a request parameter, preferring the decoded request object
// claims when a signed request was used
func (c *CibaRequestContext) Param(name string) string {
	if c.Pattern == PatternRequestObject {
		if v, ok := c.JoseClaims[name].(string); ok && v != "" {
			return v
		}
	}
	return c.Parameters.Get(name)
}

// RequestedScopes returns the raw scope values before client filtering
func (c *CibaRequestContext) RequestedScopes() []string {
	return strings.Fields(c.Param("scope"))
}

// BackchannelTransaction is a pending CIBA transaction identified by an
// auth_req_id unique per tenant. The terminal authorize or deny transition is
// single-use.
type BackchannelTransaction struct {
	AuthReqID               string
	TenantID                string
	ClientID                string
	UserID                  string
	Scopes                  []string
	IDTokenClaims           []string
	BindingMessage          string
	ClientNotificationToken string
	DeliveryMode            BackchannelTokenDeliveryMode
	Status                  BackchannelTransactionStatus
	Interval                time.Duration
	AuthorizationDetails    []AuthorizationDetail
	LastPolledAt            time.Time
	ExpiresAt               time.Time
	CreatedAt               time.Time
}

// Expired reports whether the transaction passed its expires_in window while
// still awaiting authorization. Expiry is applied lazily on read.
func (t *BackchannelTransaction) Expired(now time.Time) bool {
	return t.Status == TransactionCreated && now.After(t.ExpiresAt)
}

// Authorize transitions CREATED to AUTHORIZED
func (t *BackchannelTransaction) Authorize(now time.Time) error {
	if t.Status != TransactionCreated {
		return ErrTransactionTerminal
	}
	if now.After(t.ExpiresAt) {
		t.Status = TransactionExpired
		return ErrTransactionTerminal
	}
	t.Status = TransactionAuthorized
	return nil
}

// Deny transitions CREATED to DENIED
func (t *BackchannelTransaction) Deny(now time.Time) error {
	if t.Status != TransactionCreated {
		return ErrTransactionTerminal
	}
	if now.After(t.ExpiresAt) {
		t.Status = TransactionExpired
		return ErrTransactionTerminal
	}
	t.Status = TransactionDenied
	return nil
}

// ThrottledAt reports whether a poll at the given time arrives before the
// negotiated interval has elapsed since the previous poll
func (t *BackchannelTransaction) ThrottledAt(now time.Time) bool {
	if t.LastPolledAt.IsZero() {
		return false
	}
	return now.Sub(t.LastPolledAt) < t.Interval
}

// BackchannelTransactionRepository defines persistence for CIBA transactions.
// Updates must be serializable per auth_req_id.
type BackchannelTransactionRepository interface {
	// Create persists a new transaction
	Create(ctx context.Context, transaction *BackchannelTransaction) error

	// Get finds a transaction by auth_req_id
	Get(ctx context.Context, tenantID, authReqID string) (*BackchannelTransaction, error)

	// Transition persists a status change out of CREATED. A transaction
	// already in a terminal state is left untouched and reported with
	// ErrTransactionTerminal, so exactly one of two racing transitions wins.
	Transition(ctx context.Context, transaction *BackchannelTransaction) error

	// MarkPolled records the poll time without touching the status
	MarkPolled(ctx context.Context, tenantID, authReqID string, at time.Time) error

	// Delete removes a consumed transaction
	Delete(ctx context.Context, tenantID, authReqID string) error
}

// ClientNotifier delivers ping and push notifications to a client's
// registered backchannel notification endpoint
type ClientNotifier interface {
	// NotifyPing tells the client the transaction is ready to be polled once
	NotifyPing(ctx context.Context, notificationURI, notificationToken, authReqID string) error

	// NotifyPush delivers the token set directly to the client
	NotifyPush(ctx context.Context, notificationURI, notificationToken, authReqID string, token *OAuthToken) error
}
