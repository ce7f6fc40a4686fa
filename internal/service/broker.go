package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/daisinet/securetools/internal/domain"
	domainoauth "github.com/daisinet/securetools/internal/domain/oauth"
	"github.com/daisinet/securetools/internal/repository"
	"github.com/daisinet/securetools/internal/service/flow"
)

// Tokens are refreshed when they expire within this window.
const refreshBuffer = 5 * time.Minute

// ToolExecutor runs one tool call with already-valid credentials. It is the
// broker's single extension point; tool internals never see the token
// machinery. Errors and panics are converted into structured failures at
// the broker boundary.
type ToolExecutor func(ctx context.Context, installID, toolID string, params []ParameterValue, setup map[string]string) (*ExecuteResult, error)

// Broker orchestrates the installation registry, the OAuth flow engine and
// the injected tool executor behind the endpoint contract.
type Broker struct {
	store     repository.SetupStore
	engine    *flow.Engine
	providers map[string]domainoauth.ProviderConfig
	execute   ToolExecutor
	logger    *zap.Logger
}

// NewBroker wires the broker service. providers maps setup keys (service
// names) to their OAuth provider settings.
func NewBroker(store repository.SetupStore, engine *flow.Engine, providers map[string]domainoauth.ProviderConfig, execute ToolExecutor, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.L()
	}
	return &Broker{
		store:     store,
		engine:    engine,
		providers: providers,
		execute:   execute,
		logger:    logger,
	}
}

// Install registers an installation. A bundle install id, when supplied, is
// registered as its own installation under a bundle tool tag so that
// co-installed tools can share one OAuth identity.
func (b *Broker) Install(ctx context.Context, installID, toolID, bundleInstallID string) error {
	if strings.TrimSpace(installID) == "" {
		return domainoauth.ErrInvalidRequest
	}
	if err := b.store.RegisterInstall(ctx, installID, toolID, bundleInstallID); err != nil {
		return fmt.Errorf("register install: %w", err)
	}
	if bundleInstallID != "" {
		if err := b.store.RegisterInstall(ctx, bundleInstallID, domain.BundleToolTag(toolID), ""); err != nil {
			return fmt.Errorf("register bundle install: %w", err)
		}
	}
	b.logger.Info("installed tool",
		zap.String("tool_id", toolID),
		zap.String("install_id", installID),
		zap.String("bundle_install_id", bundleInstallID))
	return nil
}

// Uninstall removes the installation and its setup record. Removing an
// unknown id is a no-op, not an error.
func (b *Broker) Uninstall(ctx context.Context, installID string) error {
	if strings.TrimSpace(installID) == "" {
		return domainoauth.ErrInvalidRequest
	}
	removed, err := b.store.RemoveInstall(ctx, installID)
	if err != nil {
		return fmt.Errorf("remove install: %w", err)
	}
	b.logger.Info("uninstalled", zap.String("install_id", installID), zap.Bool("existed", removed))
	return nil
}

// Configure overwrites the setup record wholesale with caller-supplied
// values.
func (b *Broker) Configure(ctx context.Context, installID string, values map[string]string) error {
	if err := b.requireInstalled(ctx, installID); err != nil {
		return err
	}
	if values == nil {
		values = map[string]string{}
	}
	if err := b.store.SaveSetup(ctx, installID, values); err != nil {
		return fmt.Errorf("save setup: %w", err)
	}
	b.logger.Info("configured", zap.String("install_id", installID), zap.Int("values", len(values)))
	return nil
}

// ConfigureStatusFor reports the plain configured keys for an installation,
// excluding OAuth-internal sub-record keys.
func (b *Broker) ConfigureStatusFor(ctx context.Context, installID string) (*ConfigureStatus, error) {
	if err := b.requireInstalled(ctx, installID); err != nil {
		return nil, err
	}
	setup, err := b.store.GetSetup(ctx, installID)
	if err != nil {
		return nil, fmt.Errorf("load setup: %w", err)
	}
	var keys []string
	for key := range setup {
		if !domain.IsOAuthKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return &ConfigureStatus{IsConfigured: len(keys) > 0, ConfiguredKeys: keys}, nil
}

// Execute resolves credentials, refreshes any near-expiry OAuth sub-records,
// and invokes the tool executor. Executor failures come back as structured
// results; only registry errors surface as Go errors.
func (b *Broker) Execute(ctx context.Context, installID, toolID string, params []ParameterValue) (*ExecuteResult, error) {
	if err := b.requireInstalled(ctx, installID); err != nil {
		return nil, err
	}

	setup, err := b.store.GetSetup(ctx, installID)
	if err != nil {
		return nil, fmt.Errorf("load setup: %w", err)
	}
	if setup == nil {
		return &ExecuteResult{
			Success:      false,
			ErrorMessage: "Tool has not been configured. Please configure it first.",
		}, nil
	}

	setup = b.refreshExpiring(ctx, installID, setup)

	// Bundled tools share the bundle's OAuth identity: sub-records stored
	// under the group id are refreshed there and overlaid for the executor.
	if groupID, gerr := b.store.GetGroupID(ctx, installID); gerr == nil && groupID != "" {
		groupSetup, gerr := b.store.GetSetup(ctx, groupID)
		if gerr != nil {
			b.logger.Warn("failed to load group setup", zap.String("group_id", groupID), zap.Error(gerr))
		} else if groupSetup != nil {
			groupSetup = b.refreshExpiring(ctx, groupID, groupSetup)
			for key, value := range groupSetup {
				if domain.IsOAuthKey(key) {
					if _, owned := setup[key]; !owned {
						setup[key] = value
					}
				}
			}
		}
	}

	result := b.invokeExecutor(ctx, installID, toolID, params, setup)
	return result, nil
}

func (b *Broker) invokeExecutor(ctx context.Context, installID, toolID string, params []ParameterValue, setup map[string]string) (result *ExecuteResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("tool executor panicked",
				zap.String("tool_id", toolID),
				zap.String("install_id", installID),
				zap.Any("panic", r))
			result = &ExecuteResult{Success: false, ErrorMessage: fmt.Sprintf("Tool execution failed: %v", r)}
		}
	}()

	res, err := b.execute(ctx, installID, toolID, params, setup)
	if err != nil {
		b.logger.Error("tool execution failed",
			zap.String("tool_id", toolID),
			zap.String("install_id", installID),
			zap.Error(err))
		return &ExecuteResult{Success: false, ErrorMessage: fmt.Sprintf("Tool execution failed: %v", err)}
	}
	if res == nil {
		return &ExecuteResult{Success: false, ErrorMessage: "Tool execution returned no result."}
	}
	b.logger.Info("executed tool", zap.String("tool_id", toolID), zap.String("install_id", installID))
	return res
}

// refreshExpiring walks every OAuth sub-record in the setup map and
// refreshes the ones expiring within the buffer. Refreshed values are
// persisted before returning; refresh is attempted once, never retried
// after a failed call. Concurrent executes for the same installation can
// race here; the store is last-writer-wins.
func (b *Broker) refreshExpiring(ctx context.Context, installID string, setup map[string]string) map[string]string {
	var services []string
	for key := range setup {
		if strings.HasSuffix(key, domain.SuffixExpiresAt) {
			services = append(services, strings.TrimSuffix(key, domain.SuffixExpiresAt))
		}
	}
	sort.Strings(services)

	dirty := false
	for _, svc := range services {
		expiresAt, err := time.Parse(time.RFC3339, setup[svc+domain.SuffixExpiresAt])
		if err != nil {
			continue
		}
		if time.Until(expiresAt) >= refreshBuffer {
			continue
		}
		refreshToken, ok := setup[svc+domain.SuffixRefreshToken]
		if !ok || refreshToken == "" {
			continue
		}
		provider, ok := b.providers[svc]
		if !ok {
			b.logger.Warn("no provider config for expiring tokens",
				zap.String("install_id", installID),
				zap.String("service", svc))
			continue
		}

		b.logger.Info("refreshing expiring tokens",
			zap.String("install_id", installID),
			zap.String("service", svc))

		tokens := b.engine.RefreshTokens(ctx, provider, refreshToken)
		if tokens == nil {
			continue
		}
		setup[svc+domain.SuffixAccessToken] = tokens.AccessToken
		if tokens.RefreshToken != "" {
			setup[svc+domain.SuffixRefreshToken] = tokens.RefreshToken
		}
		setup[svc+domain.SuffixExpiresAt] = tokens.ExpiresAt.UTC().Format(time.RFC3339Nano)
		dirty = true
	}

	if dirty {
		if err := b.store.SaveSetup(ctx, installID, setup); err != nil {
			b.logger.Error("failed to persist refreshed tokens",
				zap.String("install_id", installID), zap.Error(err))
		}
	}
	return setup
}

// AuthStart builds the provider consent URL for an installation and
// service. returnURL is optional; when present the callback will redirect
// there instead of rendering a terminal page.
func (b *Broker) AuthStart(ctx context.Context, installID, setupKey, returnURL string) (string, error) {
	if err := b.requireInstalled(ctx, installID); err != nil {
		return "", err
	}
	provider, ok := b.providers[setupKey]
	if !ok {
		return "", domainoauth.ErrProviderNotFound
	}
	authorizeURL, _, err := b.engine.BuildAuthorizeURL(ctx, provider, domainoauth.StatePayload{
		InstallID: installID,
		SetupKey:  setupKey,
		ReturnURL: returnURL,
	})
	if err != nil {
		return "", fmt.Errorf("build authorize url: %w", err)
	}
	b.logger.Info("oauth start", zap.String("install_id", installID), zap.String("service", setupKey))
	return authorizeURL, nil
}

// CompleteAuth exchanges the callback code and merges the resulting tokens
// into the installation's setup record together with the authenticated
// sentinel. The installation must still exist; nothing is written on a
// failed exchange.
func (b *Broker) CompleteAuth(ctx context.Context, payload domainoauth.StatePayload, code, state string) error {
	if err := b.requireInstalled(ctx, payload.InstallID); err != nil {
		return err
	}
	provider, ok := b.providers[payload.SetupKey]
	if !ok {
		return domainoauth.ErrProviderNotFound
	}

	tokens := b.engine.ExchangeCode(ctx, provider, code, state)
	if tokens == nil {
		return domainoauth.ErrTokenExchange
	}

	setup, err := b.store.GetSetup(ctx, payload.InstallID)
	if err != nil {
		return fmt.Errorf("load setup: %w", err)
	}
	if setup == nil {
		setup = map[string]string{}
	}
	setup[payload.SetupKey+domain.SuffixAccessToken] = tokens.AccessToken
	if tokens.RefreshToken != "" {
		setup[payload.SetupKey+domain.SuffixRefreshToken] = tokens.RefreshToken
	}
	setup[payload.SetupKey+domain.SuffixExpiresAt] = tokens.ExpiresAt.UTC().Format(time.RFC3339Nano)
	setup[payload.SetupKey+domain.SuffixAuthenticated] = domain.AuthenticatedSentinel
	if err := b.store.SaveSetup(ctx, payload.InstallID, setup); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}

	b.logger.Info("oauth completed",
		zap.String("install_id", payload.InstallID),
		zap.String("service", payload.SetupKey))
	return nil
}

// AuthStatus reports whether the authenticated sentinel is set for the
// service, resolving through the bundle group when the installation itself
// has no sub-record. Point-in-time read; no provider liveness check.
func (b *Broker) AuthStatus(ctx context.Context, installID, setupKey string) (bool, error) {
	if err := b.requireInstalled(ctx, installID); err != nil {
		return false, err
	}
	authenticated, err := b.sentinelSet(ctx, installID, setupKey)
	if err != nil || authenticated {
		return authenticated, err
	}
	if groupID, gerr := b.store.GetGroupID(ctx, installID); gerr == nil && groupID != "" {
		return b.sentinelSet(ctx, groupID, setupKey)
	}
	return false, nil
}

func (b *Broker) sentinelSet(ctx context.Context, installID, setupKey string) (bool, error) {
	setup, err := b.store.GetSetup(ctx, installID)
	if err != nil {
		return false, fmt.Errorf("load setup: %w", err)
	}
	return setup[setupKey+domain.SuffixAuthenticated] == domain.AuthenticatedSentinel, nil
}

func (b *Broker) requireInstalled(ctx context.Context, installID string) error {
	if strings.TrimSpace(installID) == "" {
		return domainoauth.ErrUnknownInstall
	}
	installed, err := b.store.IsInstalled(ctx, installID)
	if err != nil {
		return fmt.Errorf("lookup install: %w", err)
	}
	if !installed {
		return domainoauth.ErrUnknownInstall
	}
	return nil
}
