package authn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daisinet/securetools/internal/repository"
)

func TestNewValidator_RequiresSecret(t *testing.T) {
	_, err := NewValidator("  ", repository.NewMemorySetupStore())
	require.Error(t, err)
}

func TestVerifyOperator(t *testing.T) {
	v, err := NewValidator("shared-secret", repository.NewMemorySetupStore())
	require.NoError(t, err)

	require.True(t, v.VerifyOperator("shared-secret"))
	require.False(t, v.VerifyOperator("wrong"))
	require.False(t, v.VerifyOperator(""))
	require.False(t, v.VerifyOperator("shared-secret "))
}

func TestVerifyInstall(t *testing.T) {
	store := repository.NewMemorySetupStore()
	ctx := context.Background()
	require.NoError(t, store.RegisterInstall(ctx, "inst-1", "tool-1", ""))

	v, err := NewValidator("shared-secret", store)
	require.NoError(t, err)

	ok, err := v.VerifyInstall(ctx, "inst-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.VerifyInstall(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	// Empty ids fail closed without a store query.
	ok, err = v.VerifyInstall(ctx, "")
	require.NoError(t, err)
	require.False(t, ok)
}
