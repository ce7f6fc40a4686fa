package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryVerifierStore_PopConsumesOnce(t *testing.T) {
	store := NewMemoryVerifierStore()
	ctx := context.Background()
	require.NoError(t, store.SaveVerifier(ctx, "state-1", "verifier-1", time.Minute))

	verifier, err := store.PopVerifier(ctx, "state-1")
	require.NoError(t, err)
	require.Equal(t, "verifier-1", verifier)

	verifier, err = store.PopVerifier(ctx, "state-1")
	require.NoError(t, err)
	require.Empty(t, verifier)
}

func TestMemoryVerifierStore_ExpiredEntryIsGone(t *testing.T) {
	store := NewMemoryVerifierStore()
	ctx := context.Background()
	base := time.Now()
	store.now = func() time.Time { return base }
	require.NoError(t, store.SaveVerifier(ctx, "state-1", "verifier-1", time.Minute))

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	verifier, err := store.PopVerifier(ctx, "state-1")
	require.NoError(t, err)
	require.Empty(t, verifier)
}

func TestMemoryVerifierStore_SweepEvictsAbandonedFlows(t *testing.T) {
	store := NewMemoryVerifierStore()
	ctx := context.Background()
	base := time.Now()
	store.now = func() time.Time { return base }
	require.NoError(t, store.SaveVerifier(ctx, "abandoned", "v1", time.Minute))

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.NoError(t, store.SaveVerifier(ctx, "fresh", "v2", time.Minute))

	store.mu.Lock()
	_, abandoned := store.entries["abandoned"]
	store.mu.Unlock()
	require.False(t, abandoned)
}

func TestRedisVerifierStore_PopConsumesOnce(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisVerifierStore(client)
	ctx := context.Background()
	require.NoError(t, store.SaveVerifier(ctx, "state-1", "verifier-1", time.Minute))

	verifier, err := store.PopVerifier(ctx, "state-1")
	require.NoError(t, err)
	require.Equal(t, "verifier-1", verifier)

	verifier, err = store.PopVerifier(ctx, "state-1")
	require.NoError(t, err)
	require.Empty(t, verifier)
}

func TestRedisVerifierStore_TTLExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisVerifierStore(client)
	ctx := context.Background()
	require.NoError(t, store.SaveVerifier(ctx, "state-1", "verifier-1", time.Minute))

	srv.FastForward(2 * time.Minute)
	verifier, err := store.PopVerifier(ctx, "state-1")
	require.NoError(t, err)
	require.Empty(t, verifier)
}
