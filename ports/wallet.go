package ports

import (
	"context"

	"github.com/courseledger/walletgate/core"
)

// Wallet is the surface a wallet implementation exposes to the application.
// Implementations wrap heterogeneous wallet extensions; callers must not
// invoke an operation the wallet does not advertise in Capabilities.
//
// Connect and the signing calls may block on user interaction for an
// unbounded time; implementations must honor context cancellation.
type Wallet interface {
	// Descriptor identifies this wallet in the negotiator's registry.
	Descriptor() core.WalletDescriptor

	// Capabilities returns the operations the wallet currently supports.
	// The set can change between calls (e.g. after a reconnect).
	Capabilities() []core.Capability

	// Connect asks the wallet for an account. Returns
	// core.ErrConnectionRejected if the user declines.
	Connect(ctx context.Context) (core.WalletAccount, error)

	// Disconnect releases the wallet connection.
	Disconnect(ctx context.Context) error

	// SignMessage produces a detached ed25519 signature over msg. Returns
	// core.ErrUserRejected if the user declines.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)

	// SignTransaction signs a serialized transaction and returns the signed
	// wire bytes. Returns core.ErrUserRejected if the user declines.
	SignTransaction(ctx context.Context, tx []byte) ([]byte, error)
}

// MessageSigner is a capability-scoped signer for authentication messages.
type MessageSigner interface {
	Address() string
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// TransactionSigner is a capability-scoped signer for transactions.
type TransactionSigner interface {
	Address() string
	SignTransaction(ctx context.Context, tx []byte) ([]byte, error)
}
