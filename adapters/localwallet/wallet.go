// Package localwallet is an in-process wallet backed by an ed25519 keypair.
// It stands in for a browser-extension wallet in the CLI and in tests, and
// advertises the full capability set.
package localwallet

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
)

// Wallet holds a Solana keypair and signs with it directly, without any user
// interaction step.
type Wallet struct {
	id   string
	name string
	key  solana.PrivateKey
}

var _ ports.Wallet = (*Wallet)(nil)

// New creates a wallet around an existing 64-byte Solana private key.
func New(id, name string, key solana.PrivateKey) (*Wallet, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("%w: private key must be 64 bytes", core.ErrInvalidInput)
	}
	return &Wallet{id: id, name: name, key: key}, nil
}

// Generate creates a wallet with a fresh random keypair.
func Generate(id, name string) *Wallet {
	return &Wallet{id: id, name: name, key: solana.NewWallet().PrivateKey}
}

func (w *Wallet) Descriptor() core.WalletDescriptor {
	return core.WalletDescriptor{ID: w.id, Name: w.name}
}

func (w *Wallet) Capabilities() []core.Capability {
	return []core.Capability{
		core.CapabilityConnect,
		core.CapabilityDisconnect,
		core.CapabilitySignMessage,
		core.CapabilitySignTransaction,
	}
}

func (w *Wallet) Connect(ctx context.Context) (core.WalletAccount, error) {
	if err := ctx.Err(); err != nil {
		return core.WalletAccount{}, err
	}
	return core.WalletAccount{
		Address:      w.key.PublicKey().String(),
		WalletID:     w.id,
		Capabilities: w.Capabilities(),
	}, nil
}

func (w *Wallet) Disconnect(ctx context.Context) error {
	return ctx.Err()
}

func (w *Wallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := w.key.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig[:], nil
}

// SignTransaction decodes the wire bytes into a transaction, signs every
// required signature slot this key covers, and returns the re-marshalled
// wire bytes.
func (w *Wallet) SignTransaction(ctx context.Context, txBytes []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: transaction bytes do not decode: %v", core.ErrInvalidInput, err)
	}

	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.key.PublicKey()) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal signed transaction: %w", err)
	}
	return signed, nil
}

// Address returns the wallet's base58 public key.
func (w *Wallet) Address() string {
	return w.key.PublicKey().String()
}
