package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainoauth "github.com/daisinet/securetools/internal/domain/oauth"
)

// ProviderClient encapsulates outbound HTTP calls to identity providers'
// token endpoints.
type ProviderClient interface {
	ExchangeCode(ctx context.Context, provider domainoauth.ProviderConfig, code, codeVerifier string) (*domainoauth.Tokens, error)
	RefreshTokens(ctx context.Context, provider domainoauth.ProviderConfig, refreshToken string) (*domainoauth.Tokens, error)
}

// HTTPProviderClient is the default HTTP implementation.
type HTTPProviderClient struct {
	httpClient *http.Client
}

var _ ProviderClient = (*HTTPProviderClient)(nil)

// NewHTTPProviderClient constructs the default ProviderClient.
func NewHTTPProviderClient(client *http.Client) *HTTPProviderClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProviderClient{httpClient: client}
}

// ExchangeCode posts a grant_type=authorization_code form to the token
// endpoint. The verifier is omitted when empty; some providers do not
// require PKCE.
func (c *HTTPProviderClient) ExchangeCode(ctx context.Context, provider domainoauth.ProviderConfig, code, codeVerifier string) (*domainoauth.Tokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", provider.RedirectURI)
	data.Set("client_id", provider.ClientID)
	data.Set("client_secret", provider.ClientSecret)
	if strings.TrimSpace(codeVerifier) != "" {
		data.Set("code_verifier", codeVerifier)
	}
	return c.requestTokens(ctx, provider.TokenURL, data)
}

// RefreshTokens posts a grant_type=refresh_token form to the token endpoint.
func (c *HTTPProviderClient) RefreshTokens(ctx context.Context, provider domainoauth.ProviderConfig, refreshToken string) (*domainoauth.Tokens, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", provider.ClientID)
	data.Set("client_secret", provider.ClientSecret)
	return c.requestTokens(ctx, provider.TokenURL, data)
}

func (c *HTTPProviderClient) requestTokens(ctx context.Context, tokenURL string, data url.Values) (*domainoauth.Tokens, error) {
	if strings.TrimSpace(tokenURL) == "" {
		return nil, fmt.Errorf("token url missing")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token request failed: status=%d body=%s", resp.StatusCode, truncate(body, 256))
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	tokens := &domainoauth.Tokens{
		AccessToken:  stringValue(raw["access_token"]),
		RefreshToken: stringValue(raw["refresh_token"]),
		TokenType:    stringValue(raw["token_type"]),
		Scope:        stringValue(raw["scope"]),
	}
	if tokens.TokenType == "" {
		tokens.TokenType = "Bearer"
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	// Absolute expiry is pinned at response time. Providers that omit
	// expires_in get a one-hour validity window rather than a token that
	// never refreshes.
	if expiresIn := int64Value(raw["expires_in"]); expiresIn > 0 {
		tokens.ExpiresAt = time.Now().UTC().Add(time.Duration(expiresIn) * time.Second)
	} else {
		tokens.ExpiresAt = time.Now().UTC().Add(time.Hour)
	}

	return tokens, nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
