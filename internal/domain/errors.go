package domain

import "errors"

var (
	// ErrServerConfigurationNotFound is returned when the tenant has no server configuration
	ErrServerConfigurationNotFound = errors.New("server configuration not found")

	// ErrClientNotFound is returned when the client is not registered under the tenant
	ErrClientNotFound = errors.New("client configuration not found")

	// ErrAuthorizationRequestNotFound is returned when the authorization request identifier does not resolve
	ErrAuthorizationRequestNotFound = errors.New("authorization request not found")

	// ErrAuthorizationCodeNotFound is returned when the code does not resolve or was already consumed
	ErrAuthorizationCodeNotFound = errors.New("authorization code not found")

	// ErrTokenNotFound is returned when neither access nor refresh token lookup resolves
	ErrTokenNotFound = errors.New("token not found")

	// ErrGrantNotFound is returned when no consent grant exists for the tenant, client and user
	ErrGrantNotFound = errors.New("authorization granted not found")

	// ErrTransactionNotFound is returned when the auth_req_id does not resolve
	ErrTransactionNotFound = errors.New("backchannel transaction not found")

	// ErrTransactionTerminal is returned when a CIBA transition is attempted on a terminal transaction
	ErrTransactionTerminal = errors.New("backchannel transaction already completed")

	// ErrUserNotFound is returned when a user hint does not resolve to a known user
	ErrUserNotFound = errors.New("user not found")

	// ErrInternal is returned when there is an internal server error
	ErrInternal = errors.New("internal server error")
)
