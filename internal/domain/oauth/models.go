package oauth

import "time"

// ProviderConfig holds the per-provider settings for the authorization-code
// flow. One entry exists per setup key (service name).
type ProviderConfig struct {
	ClientID     string            `json:"client_id"`
	ClientSecret string            `json:"client_secret"`
	AuthorizeURL string            `json:"authorize_url"`
	TokenURL     string            `json:"token_url"`
	RedirectURI  string            `json:"redirect_uri"`
	Scopes       []string          `json:"scopes"`
	ExtraParams  map[string]string `json:"extra_params,omitempty"`
}

// Tokens is the transient result of a code exchange or refresh. It is never
// persisted as-is; the broker flattens it into a setup record.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

// StatePayload is the JSON object carried through the OAuth state parameter.
// ReturnURL is optional; when present the callback redirects the browser
// there instead of rendering a terminal page.
type StatePayload struct {
	InstallID string `json:"installId"`
	SetupKey  string `json:"setupKey"`
	ReturnURL string `json:"returnUrl,omitempty"`
}
