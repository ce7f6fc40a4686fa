package flow

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	oauthadapter "github.com/daisinet/securetools/internal/adapter/oauth"
	domainoauth "github.com/daisinet/securetools/internal/domain/oauth"
	"github.com/daisinet/securetools/internal/repository"
)

const verifierTTL = 10 * time.Minute

// Engine implements the provider-agnostic authorization-code flow with
// PKCE. Provider settings are passed per call; the engine owns no provider
// state beyond the short-lived verifier cache.
type Engine struct {
	verifiers repository.VerifierStore
	client    oauthadapter.ProviderClient
	logger    *zap.Logger
}

// NewEngine wires the flow engine.
func NewEngine(verifiers repository.VerifierStore, client oauthadapter.ProviderClient, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.L()
	}
	return &Engine{verifiers: verifiers, client: client, logger: logger}
}

// BuildAuthorizeURL composes the provider consent URL for the given state
// payload, caching the PKCE verifier under the returned state value.
func (e *Engine) BuildAuthorizeURL(ctx context.Context, provider domainoauth.ProviderConfig, payload domainoauth.StatePayload) (string, string, error) {
	state, err := EncodeState(payload)
	if err != nil {
		return "", "", fmt.Errorf("encode state: %w", err)
	}

	verifier, err := randomURLSafe(32)
	if err != nil {
		return "", "", fmt.Errorf("generate pkce verifier: %w", err)
	}
	challenge := pkceChallenge(verifier)

	if err := e.verifiers.SaveVerifier(ctx, state, verifier, verifierTTL); err != nil {
		return "", "", fmt.Errorf("persist verifier: %w", err)
	}

	authorizeURL, err := url.Parse(provider.AuthorizeURL)
	if err != nil {
		return "", "", fmt.Errorf("parse authorize url: %w", err)
	}

	params := authorizeURL.Query()
	params.Set("client_id", provider.ClientID)
	params.Set("redirect_uri", provider.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(provider.Scopes, " "))
	params.Set("state", state)
	params.Set("code_challenge", challenge)
	params.Set("code_challenge_method", "S256")
	for k, v := range provider.ExtraParams {
		if strings.TrimSpace(k) != "" {
			params.Set(k, v)
		}
	}
	authorizeURL.RawQuery = params.Encode()

	return authorizeURL.String(), state, nil
}

// ExchangeCode redeems an authorization code for tokens. The cached verifier
// is consumed whether or not the exchange succeeds, so a state value can
// never be replayed with PKCE intact. Failures are logged and reported as a
// nil result; nothing from the provider leg escapes this boundary.
func (e *Engine) ExchangeCode(ctx context.Context, provider domainoauth.ProviderConfig, code, state string) *domainoauth.Tokens {
	verifier, err := e.verifiers.PopVerifier(ctx, state)
	if err != nil {
		e.logger.Warn("failed to pop pkce verifier", zap.Error(err))
	}

	tokens, err := e.client.ExchangeCode(ctx, provider, code, verifier)
	if err != nil {
		e.logger.Error("code exchange failed", zap.Error(err))
		return nil
	}
	return tokens
}

// RefreshTokens redeems a refresh token for a fresh token set. Same failure
// contract as ExchangeCode.
func (e *Engine) RefreshTokens(ctx context.Context, provider domainoauth.ProviderConfig, refreshToken string) *domainoauth.Tokens {
	tokens, err := e.client.RefreshTokens(ctx, provider, refreshToken)
	if err != nil {
		e.logger.Error("token refresh failed", zap.Error(err))
		return nil
	}
	return tokens
}

// EncodeState packs the payload into the opaque state parameter.
func EncodeState(payload domainoauth.StatePayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ParseState decodes a state parameter back into its payload. Malformed
// input yields ok=false so callers can answer with a clean 400.
func ParseState(state string) (domainoauth.StatePayload, bool) {
	raw, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return domainoauth.StatePayload{}, false
	}
	var payload domainoauth.StatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domainoauth.StatePayload{}, false
	}
	if payload.InstallID == "" {
		return domainoauth.StatePayload{}, false
	}
	return payload, true
}

func randomURLSafe(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
