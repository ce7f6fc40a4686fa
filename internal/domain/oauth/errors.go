package oauth

import "errors"

var (
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("oauth: invalid request")
	// ErrUnknownInstall indicates the install id is not registered.
	ErrUnknownInstall = errors.New("oauth: unknown installation")
	// ErrNotConfigured indicates an installed tool with no setup record.
	ErrNotConfigured = errors.New("oauth: not configured")
	// ErrProviderNotFound signals a setup key with no provider configuration.
	ErrProviderNotFound = errors.New("oauth: provider not found")
	// ErrTokenExchange indicates the identity provider rejected a token request.
	ErrTokenExchange = errors.New("oauth: token exchange failed")
)
