package domain

import (
	"strings"
	"time"
)

// Installation records one tenant's installation of one tool. The install id
// is opaque and caller-supplied. GroupID is set when the tool was installed
// as part of a bundle whose members share a single OAuth identity.
type Installation struct {
	InstallID   string
	ToolID      string
	GroupID     string
	InstalledAt time.Time
}

// BundleToolTag marks an installation row registered for a bundle alias
// rather than a standalone tool.
func BundleToolTag(toolID string) string {
	return "bundle:" + toolID
}

// Setup key suffixes for OAuth sub-records. A sub-record for service "svc"
// occupies the keys svc_access_token, svc_refresh_token, svc_expires_at and
// svc_authenticated inside the same flat setup map as plain configuration
// values.
const (
	SuffixAccessToken   = "_access_token"
	SuffixRefreshToken  = "_refresh_token"
	SuffixExpiresAt     = "_expires_at"
	SuffixAuthenticated = "_authenticated"
)

// AuthenticatedSentinel is the value stored under {service}_authenticated
// once an OAuth flow completes.
const AuthenticatedSentinel = "true"

// AccessToken returns the stored OAuth access token for a service, or ""
// when the service has not completed an OAuth flow.
func AccessToken(setup map[string]string, setupKey string) string {
	return setup[setupKey+SuffixAccessToken]
}

// IsOAuthKey reports whether a setup key belongs to an OAuth sub-record
// rather than plain caller-supplied configuration.
func IsOAuthKey(key string) bool {
	return strings.HasSuffix(key, SuffixAccessToken) ||
		strings.HasSuffix(key, SuffixRefreshToken) ||
		strings.HasSuffix(key, SuffixExpiresAt) ||
		strings.HasSuffix(key, SuffixAuthenticated)
}
