package flow

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daisinet/securetools/internal/adapter/cache"
	domainoauth "github.com/daisinet/securetools/internal/domain/oauth"
)

func testProvider() domainoauth.ProviderConfig {
	return domainoauth.ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthorizeURL: "https://idp.example.com/oauth/authorize",
		TokenURL:     "https://idp.example.com/oauth/token",
		RedirectURI:  "https://broker.example.com/api/auth/callback",
		Scopes:       []string{"mail.read", "mail.send"},
		ExtraParams:  map[string]string{"access_type": "offline"},
	}
}

// pkceStrictClient simulates a provider that rejects exchanges without a
// code verifier, the behavior that makes verifier consumption observable.
type pkceStrictClient struct {
	tokens    *domainoauth.Tokens
	exchanges int
}

func (c *pkceStrictClient) ExchangeCode(_ context.Context, _ domainoauth.ProviderConfig, _, codeVerifier string) (*domainoauth.Tokens, error) {
	c.exchanges++
	if codeVerifier == "" {
		return nil, fmt.Errorf("code_verifier required")
	}
	return c.tokens, nil
}

func (c *pkceStrictClient) RefreshTokens(_ context.Context, _ domainoauth.ProviderConfig, refreshToken string) (*domainoauth.Tokens, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh_token required")
	}
	return c.tokens, nil
}

func newTestEngine(client *pkceStrictClient) *Engine {
	return NewEngine(cache.NewMemoryVerifierStore(), client, zap.NewNop())
}

func TestBuildAuthorizeURL(t *testing.T) {
	engine := newTestEngine(&pkceStrictClient{})
	authorizeURL, state, err := engine.BuildAuthorizeURL(context.Background(), testProvider(), domainoauth.StatePayload{
		InstallID: "inst-1",
		SetupKey:  "m365",
	})
	require.NoError(t, err)
	require.NotEmpty(t, state)

	parsed, err := url.Parse(authorizeURL)
	require.NoError(t, err)
	require.Equal(t, "idp.example.com", parsed.Host)

	q := parsed.Query()
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "https://broker.example.com/api/auth/callback", q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "mail.read mail.send", q.Get("scope"))
	require.Equal(t, state, q.Get("state"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.Equal(t, "offline", q.Get("access_type"))

	payload, ok := ParseState(state)
	require.True(t, ok)
	require.Equal(t, "inst-1", payload.InstallID)
	require.Equal(t, "m365", payload.SetupKey)
}

func TestParseState_RoundTrip(t *testing.T) {
	state, err := EncodeState(domainoauth.StatePayload{InstallID: "x", SetupKey: "y"})
	require.NoError(t, err)

	payload, ok := ParseState(state)
	require.True(t, ok)
	require.Equal(t, "x", payload.InstallID)
	require.Equal(t, "y", payload.SetupKey)
	require.Empty(t, payload.ReturnURL)
}

func TestParseState_MalformedInput(t *testing.T) {
	for _, input := range []string{
		"not-base64!!!",
		base64.StdEncoding.EncodeToString([]byte("not json")),
		base64.StdEncoding.EncodeToString([]byte(`{"setupKey":"y"}`)),
		"",
	} {
		_, ok := ParseState(input)
		require.False(t, ok, "input %q should not parse", input)
	}
}

func TestExchangeCode_ConsumesVerifierOnce(t *testing.T) {
	client := &pkceStrictClient{tokens: &domainoauth.Tokens{
		AccessToken: "at",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	engine := newTestEngine(client)
	ctx := context.Background()

	_, state, err := engine.BuildAuthorizeURL(ctx, testProvider(), domainoauth.StatePayload{
		InstallID: "inst-1",
		SetupKey:  "m365",
	})
	require.NoError(t, err)

	tokens := engine.ExchangeCode(ctx, testProvider(), "code", state)
	require.NotNil(t, tokens)
	require.Equal(t, "at", tokens.AccessToken)

	// The verifier was consumed; the provider rejects the replay.
	tokens = engine.ExchangeCode(ctx, testProvider(), "code", state)
	require.Nil(t, tokens)
	require.Equal(t, 2, client.exchanges)
}

func TestExchangeCode_ToleratesUnknownState(t *testing.T) {
	engine := newTestEngine(&pkceStrictClient{})
	tokens := engine.ExchangeCode(context.Background(), testProvider(), "code", "never-issued")
	require.Nil(t, tokens)
}

func TestRefreshTokens(t *testing.T) {
	client := &pkceStrictClient{tokens: &domainoauth.Tokens{
		AccessToken:  "new-at",
		RefreshToken: "new-rt",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	engine := newTestEngine(client)

	tokens := engine.RefreshTokens(context.Background(), testProvider(), "old-rt")
	require.NotNil(t, tokens)
	require.Equal(t, "new-at", tokens.AccessToken)

	require.Nil(t, engine.RefreshTokens(context.Background(), testProvider(), ""))
}
