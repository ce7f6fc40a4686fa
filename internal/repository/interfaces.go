package repository

import (
	"context"
	"time"
)

// SetupStore persists installations and their setup records. All methods
// must be safe under concurrent callers; per-row atomicity is provided by
// the backing store, so concurrent read-modify-write on the same setup
// record is last-writer-wins.
type SetupStore interface {
	// RegisterInstall upserts an installation. A non-empty groupID records
	// the bundle alias shared by co-installed tools.
	RegisterInstall(ctx context.Context, installID, toolID, groupID string) error

	// RemoveInstall deletes the installation and its setup record together.
	// Returns false (not an error) when the id was never installed.
	RemoveInstall(ctx context.Context, installID string) (bool, error)

	// IsInstalled reports whether the install id is registered.
	IsInstalled(ctx context.Context, installID string) (bool, error)

	// SaveSetup replaces the entire setup record. Callers read-modify-write
	// for partial updates.
	SaveSetup(ctx context.Context, installID string, values map[string]string) error

	// GetSetup returns the setup record, or nil when the installation was
	// never configured. An empty map means configured-with-no-values.
	GetSetup(ctx context.Context, installID string) (map[string]string, error)

	// GetToolID returns the tool id for an installation, or "" when unknown.
	GetToolID(ctx context.Context, installID string) (string, error)

	// GetGroupID returns the bundle alias for an installation, or "" when
	// the tool was installed standalone.
	GetGroupID(ctx context.Context, installID string) (string, error)
}

// VerifierStore holds PKCE code verifiers keyed by OAuth state between
// auth/start and auth/callback. Entries are short-lived and consumed exactly
// once; losing one only forces the user to restart the authorize step.
type VerifierStore interface {
	// SaveVerifier caches a verifier under the state value with a TTL.
	SaveVerifier(ctx context.Context, state, verifier string, ttl time.Duration) error

	// PopVerifier removes and returns the verifier for a state. Returns ""
	// when absent or expired.
	PopVerifier(ctx context.Context, state string) (string, error)
}
