package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainoauth "github.com/daisinet/securetools/internal/domain/oauth"
)

func newProviderServer(t *testing.T, handler http.HandlerFunc) (domainoauth.ProviderConfig, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return domainoauth.ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     srv.URL + "/token",
		RedirectURI:  "https://broker.example.com/api/auth/callback",
	}, srv
}

func TestHTTPProviderClient_ExchangeCode(t *testing.T) {
	var gotForm map[string]string
	provider, _ := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"code":          r.PostFormValue("code"),
			"redirect_uri":  r.PostFormValue("redirect_uri"),
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
			"code_verifier": r.PostFormValue("code_verifier"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":120,"scope":"mail"}`))
	})

	client := NewHTTPProviderClient(nil)
	before := time.Now().UTC()
	tokens, err := client.ExchangeCode(context.Background(), provider, "auth-code", "the-verifier")
	require.NoError(t, err)
	require.Equal(t, "at", tokens.AccessToken)
	require.Equal(t, "rt", tokens.RefreshToken)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.Equal(t, "mail", tokens.Scope)
	require.WithinRange(t, tokens.ExpiresAt, before.Add(119*time.Second), before.Add(121*time.Second))

	require.Equal(t, "authorization_code", gotForm["grant_type"])
	require.Equal(t, "auth-code", gotForm["code"])
	require.Equal(t, provider.RedirectURI, gotForm["redirect_uri"])
	require.Equal(t, "client-id", gotForm["client_id"])
	require.Equal(t, "client-secret", gotForm["client_secret"])
	require.Equal(t, "the-verifier", gotForm["code_verifier"])
}

func TestHTTPProviderClient_ExchangeCodeOmitsEmptyVerifier(t *testing.T) {
	provider, _ := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, present := r.PostForm["code_verifier"]
		require.False(t, present)
		_, _ = w.Write([]byte(`{"access_token":"at"}`))
	})

	client := NewHTTPProviderClient(nil)
	_, err := client.ExchangeCode(context.Background(), provider, "auth-code", "")
	require.NoError(t, err)
}

func TestHTTPProviderClient_DefaultExpiryIsOneHour(t *testing.T) {
	provider, _ := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer"}`))
	})

	client := NewHTTPProviderClient(nil)
	before := time.Now().UTC()
	tokens, err := client.ExchangeCode(context.Background(), provider, "auth-code", "v")
	require.NoError(t, err)
	require.WithinRange(t, tokens.ExpiresAt, before.Add(59*time.Minute), before.Add(61*time.Minute))
}

func TestHTTPProviderClient_RefreshTokens(t *testing.T) {
	provider, _ := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		require.Equal(t, "old-refresh", r.PostFormValue("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"new-at","refresh_token":"new-rt","expires_in":3600}`))
	})

	client := NewHTTPProviderClient(nil)
	tokens, err := client.RefreshTokens(context.Background(), provider, "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "new-at", tokens.AccessToken)
	require.Equal(t, "new-rt", tokens.RefreshToken)
}

func TestHTTPProviderClient_NonSuccessStatusIsAnError(t *testing.T) {
	provider, _ := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	client := NewHTTPProviderClient(nil)
	tokens, err := client.ExchangeCode(context.Background(), provider, "bad-code", "v")
	require.Error(t, err)
	require.Nil(t, tokens)
}

func TestHTTPProviderClient_MissingAccessTokenIsAnError(t *testing.T) {
	provider, _ := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	})

	client := NewHTTPProviderClient(nil)
	_, err := client.ExchangeCode(context.Background(), provider, "code", "v")
	require.Error(t, err)
}
