package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daisinet/securetools/internal/repository"
)

const verifierKeyPrefix = "oauth:verifier:"

// RedisVerifierStore implements VerifierStore backed by Redis, letting a
// pool of stateless replicas share one verifier cache.
type RedisVerifierStore struct {
	client redis.UniversalClient
}

var _ repository.VerifierStore = (*RedisVerifierStore)(nil)

// NewRedisVerifierStore constructs a Redis-backed verifier cache.
func NewRedisVerifierStore(client redis.UniversalClient) *RedisVerifierStore {
	return &RedisVerifierStore{client: client}
}

// SaveVerifier stores the verifier under the state key with TTL.
func (s *RedisVerifierStore) SaveVerifier(ctx context.Context, state, verifier string, ttl time.Duration) error {
	if err := s.client.Set(ctx, verifierKeyPrefix+state, verifier, ttl).Err(); err != nil {
		return fmt.Errorf("persist verifier: %w", err)
	}
	return nil
}

// PopVerifier atomically loads and deletes the verifier. GETDEL guarantees
// the consumed-exactly-once invariant across replicas.
func (s *RedisVerifierStore) PopVerifier(ctx context.Context, state string) (string, error) {
	verifier, err := s.client.GetDel(ctx, verifierKeyPrefix+state).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("pop verifier: %w", err)
	}
	return verifier, nil
}
