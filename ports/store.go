package ports

import (
	"context"
	"time"

	"github.com/courseledger/walletgate/core"
)

// Store persists single-use nonces and revoked tokens for the backend.
type Store interface {
	// PutNonce records an issued challenge until its TTL elapses.
	PutNonce(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error

	// ConsumeNonce atomically fetches and deletes the challenge for a nonce.
	// Returns core.ErrNonceConsumed if the nonce is unknown or was already
	// consumed. A nonce is consumed by its first verify attempt regardless of
	// whether verification then succeeds.
	ConsumeNonce(ctx context.Context, nonce string) (*core.Challenge, error)

	// InvalidateToken marks a token ID as revoked until its expiry passes.
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error

	// IsTokenInvalidated checks whether a token ID has been revoked.
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}
