package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
)

// RedisStore is a Redis implementation of the Store interface for
// multi-instance deployments.
type RedisStore struct {
	client      *redis.Client
	noncePrefix string
	tokenPrefix string
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{
		client:      client,
		noncePrefix: "walletgate:nonce:",
		tokenPrefix: "walletgate:invalidated:",
	}
}

// PutNonce records an issued challenge with the challenge TTL as expiry, so
// unconsumed nonces vanish on their own.
func (s *RedisStore) PutNonce(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.noncePrefix+challenge.Nonce, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// ConsumeNonce fetches and deletes the challenge atomically via GETDEL, so
// concurrent verify attempts cannot both observe the same nonce.
func (s *RedisStore) ConsumeNonce(ctx context.Context, nonce string) (*core.Challenge, error) {
	payload, err := s.client.GetDel(ctx, s.noncePrefix+nonce).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNonceConsumed
		}
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}

	var challenge core.Challenge
	if err := json.Unmarshal([]byte(payload), &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	if challenge.Expired(time.Now()) {
		return nil, core.ErrNonceExpired
	}
	return &challenge, nil
}

// InvalidateToken marks a token as invalidated in Redis.
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.tokenPrefix + tokenID
	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis.
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.tokenPrefix + tokenID
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return val > 0, nil
}
