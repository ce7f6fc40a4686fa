package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresOperatorKey(t *testing.T) {
	t.Setenv("DAISI_AUTH_KEY", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DAISI_AUTH_KEY")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DAISI_AUTH_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.OperatorAuthKey)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	require.Empty(t, cfg.Providers)
}

func TestLoad_ParsesProviders(t *testing.T) {
	t.Setenv("DAISI_AUTH_KEY", "secret")
	t.Setenv("OAUTH_PROVIDERS", `{
		"m365": {
			"client_id": "cid",
			"client_secret": "cs",
			"authorize_url": "https://idp.example.com/authorize",
			"token_url": "https://idp.example.com/token",
			"redirect_uri": "https://broker.example.com/api/auth/callback",
			"scopes": ["mail.read"]
		}
	}`)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	require.Equal(t, "cid", cfg.Providers["m365"].ClientID)
	require.Equal(t, []string{"mail.read"}, cfg.Providers["m365"].Scopes)
}

func TestLoad_RejectsIncompleteProvider(t *testing.T) {
	t.Setenv("DAISI_AUTH_KEY", "secret")
	t.Setenv("OAUTH_PROVIDERS", `{"m365": {"client_id": "cid"}}`)

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "m365")
}

func TestLoad_RejectsMalformedProviders(t *testing.T) {
	t.Setenv("DAISI_AUTH_KEY", "secret")
	t.Setenv("OAUTH_PROVIDERS", "{not json")

	_, err := Load()
	require.Error(t, err)
}
