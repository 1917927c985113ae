package ports

import (
	"context"

	"github.com/courseledger/walletgate/core"
)

// AuthResult is the backend's response to a successful login verification.
type AuthResult struct {
	User        core.User
	AccessToken string
	ExpiresIn   int // Seconds until the access token expires
}

// Backend is the client-side view of the platform backend. Transient
// transport errors are reported as core.ErrNetworkFailure so callers can
// decide whether a step is safe to retry.
type Backend interface {
	// RequestNonce asks the challenge issuer for a single-use nonce bound to
	// the address.
	RequestNonce(ctx context.Context, address string) (nonce string, err error)

	// VerifyLogin submits the signed challenge. The backend re-runs signature
	// verification before trusting the client and consumes the nonce whether
	// or not verification succeeds.
	VerifyLogin(ctx context.Context, address, nonce string, signature []byte) (*AuthResult, error)

	// Logout revokes the access credential.
	Logout(ctx context.Context, accessToken string) error

	// BuildTransaction converts a payment intent into an unsigned serialized
	// transaction. Returns core.ErrBuildFailed if the backend produced no
	// payload.
	BuildTransaction(ctx context.Context, intent core.PaymentIntent) (core.UnsignedTransaction, error)

	// SendTransaction submits a signed transaction and returns its base58
	// ledger signature.
	SendTransaction(ctx context.Context, signed core.SignedTransaction, ref core.PaymentReference) (string, error)

	// Balances returns the token balances held by an address.
	Balances(ctx context.Context, address string) ([]core.TokenInfo, error)
}
