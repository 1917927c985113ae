// Package ledgerrpc reads confirmation status from a Solana RPC node.
package ledgerrpc

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
)

// RPCClient is the slice of the Solana RPC surface the ledger adapter needs.
// *rpc.Client satisfies it; tests inject a fake.
type RPCClient interface {
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Client implements ports.Ledger over Solana RPC.
type Client struct {
	rpc RPCClient
}

var _ ports.Ledger = (*Client)(nil)

// New creates a ledger client for an RPC endpoint URL.
func New(rpcURL string) *Client {
	return &Client{rpc: rpc.New(rpcURL)}
}

// NewWithRPC creates a ledger client around an existing RPC client.
func NewWithRPC(c RPCClient) *Client {
	return &Client{rpc: c}
}

// SignatureStatus implements ports.Ledger. A signature the node has not seen
// yet reports unconfirmed; a transaction that landed with an error reports
// failed.
func (c *Client) SignatureStatus(ctx context.Context, signature string) (core.ConfirmationStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return "", fmt.Errorf("%w: signature %q is not base58: %v", core.ErrInvalidInput, signature, err)
	}

	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return "", fmt.Errorf("%w: signature status query: %v", core.ErrNetworkFailure, err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return core.StatusUnconfirmed, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return core.StatusFailed, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return core.StatusFinalized, nil
	case rpc.ConfirmationStatusConfirmed:
		return core.StatusConfirmed, nil
	default:
		return core.StatusUnconfirmed, nil
	}
}
