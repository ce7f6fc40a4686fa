package authn

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/daisinet/securetools/internal/repository"
)

// AuthHeader carries the operator shared secret on install/uninstall calls.
const AuthHeader = "X-Daisi-Auth"

// Validator classifies inbound callers into the two trust tiers: operator
// calls proven by a shared secret, and consumer calls proven by knowledge of
// a currently-installed install id. The tiers are never conflated.
type Validator struct {
	authKey []byte
	store   repository.SetupStore
}

// NewValidator wires the validator. The shared secret must be non-empty.
func NewValidator(authKey string, store repository.SetupStore) (*Validator, error) {
	if strings.TrimSpace(authKey) == "" {
		return nil, fmt.Errorf("authn: shared secret is required")
	}
	return &Validator{authKey: []byte(authKey), store: store}, nil
}

// VerifyOperator checks the shared-secret header value in constant time.
func (v *Validator) VerifyOperator(headerValue string) bool {
	return subtle.ConstantTimeCompare([]byte(headerValue), v.authKey) == 1
}

// VerifyInstall checks that the install id is registered. An empty id fails
// closed without touching the store.
func (v *Validator) VerifyInstall(ctx context.Context, installID string) (bool, error) {
	if strings.TrimSpace(installID) == "" {
		return false, nil
	}
	return v.store.IsInstalled(ctx, installID)
}
