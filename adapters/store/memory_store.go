package store

import (
	"context"
	"sync"
	"time"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
)

// MemoryStore is an in-memory implementation of the Store interface, used in
// tests and single-instance deployments.
type MemoryStore struct {
	mu                sync.Mutex
	nonces            map[string]*core.Challenge
	invalidatedTokens map[string]time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() ports.Store {
	return &MemoryStore{
		nonces:            make(map[string]*core.Challenge),
		invalidatedTokens: make(map[string]time.Time),
	}
}

// PutNonce records an issued challenge keyed by its nonce value.
func (s *MemoryStore) PutNonce(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *challenge
	s.nonces[challenge.Nonce] = &c
	return nil
}

// ConsumeNonce fetches and deletes a challenge in one step. Deleting before
// any further checks is what makes the nonce single-use: even a failed verify
// attempt burns it.
func (s *MemoryStore) ConsumeNonce(ctx context.Context, nonce string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.nonces[nonce]
	if !ok {
		return nil, core.ErrNonceConsumed
	}
	delete(s.nonces, nonce)

	if challenge.Expired(time.Now()) {
		return nil, core.ErrNonceExpired
	}
	return challenge, nil
}

// InvalidateToken marks a token as invalidated.
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime := time.Now().Add(expiry)
	s.invalidatedTokens[tokenID] = expiryTime

	// Cleanup after the invalidation record itself expires.
	go func() {
		time.Sleep(expiry)

		s.mu.Lock()
		defer s.mu.Unlock()

		if storedExpiry, exists := s.invalidatedTokens[tokenID]; exists && !storedExpiry.After(expiryTime) {
			delete(s.invalidatedTokens, tokenID)
		}
	}()

	return nil
}

// IsTokenInvalidated checks if a token is invalidated.
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}
	if time.Now().After(expiryTime) {
		return false, nil
	}
	return true, nil
}
