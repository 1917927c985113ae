package ports

import (
	"context"

	"github.com/courseledger/walletgate/core"
)

// Ledger reports confirmation status for submitted transactions. A signature
// the ledger has not seen yet maps to core.StatusUnconfirmed, not an error.
type Ledger interface {
	SignatureStatus(ctx context.Context, signature string) (core.ConfirmationStatus, error)
}
