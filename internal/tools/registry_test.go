package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daisinet/securetools/internal/domain"
	"github.com/daisinet/securetools/internal/service"
)

func TestRegistry_DispatchesByToolID(t *testing.T) {
	registry := NewRegistry(nil, zap.NewNop())
	registry.Register("echo", Echo)

	result, err := registry.Executor()(context.Background(), "i1", "echo",
		[]service.ParameterValue{{Name: "message", Value: "hello"}}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "hello", result.Output)
}

func TestRegistry_UnknownToolWithoutFallback(t *testing.T) {
	registry := NewRegistry(nil, zap.NewNop())

	_, err := registry.Executor()(context.Background(), "i1", "nope", nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope")
}

func TestRegistry_FallbackHandlesUnknownTool(t *testing.T) {
	registry := NewRegistry(Echo, zap.NewNop())

	result, err := registry.Executor()(context.Background(), "i1", "anything",
		[]service.ParameterValue{{Name: "message", Value: "hi"}}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
}

func TestEcho_RequiresMessage(t *testing.T) {
	result, err := Echo(context.Background(), "i1", "echo", nil, nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.ErrorMessage, "message")
}

func TestEcho_ReportsAuthenticatedServices(t *testing.T) {
	setup := map[string]string{
		"apiKey":                             "k",
		"m365" + domain.SuffixAuthenticated:  domain.AuthenticatedSentinel,
		"slack" + domain.SuffixAuthenticated: domain.AuthenticatedSentinel,
	}
	result, err := Echo(context.Background(), "i1", "echo",
		[]service.ParameterValue{{Name: "message", Value: "hi"}}, setup)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Contains(t, result.OutputMessage, "m365, slack")
}
