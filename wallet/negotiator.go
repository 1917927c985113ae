// Package wallet presents a uniform, capability-checked interface over
// heterogeneous wallet implementations discovered at runtime.
package wallet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
)

// Negotiator is a registry of available wallets. Wallets register and
// unregister as the host environment advertises them; enumeration is
// restartable and reflects the registry at call time.
type Negotiator struct {
	log *zap.Logger

	mu        sync.RWMutex
	wallets   map[string]ports.Wallet
	connected map[string]string // address -> wallet ID binding from Connect
}

// NewNegotiator creates an empty negotiator. Pass nil to disable logging.
func NewNegotiator(log *zap.Logger) *Negotiator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Negotiator{
		log:       log,
		wallets:   make(map[string]ports.Wallet),
		connected: make(map[string]string),
	}
}

// Register adds or replaces a wallet in the registry.
func (n *Negotiator) Register(w ports.Wallet) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.wallets[w.Descriptor().ID] = w
	n.log.Debug("wallet registered", zap.String("wallet", w.Descriptor().ID))
}

// Unregister removes a wallet from the registry. Accounts connected through
// it stay bound until a signer resolution fails against the missing wallet.
func (n *Negotiator) Unregister(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.wallets, id)
	n.log.Debug("wallet unregistered", zap.String("wallet", id))
}

// List enumerates the currently registered wallets in a stable order.
func (n *Negotiator) List() []core.WalletDescriptor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]core.WalletDescriptor, 0, len(n.wallets))
	for _, w := range n.wallets {
		out = append(out, w.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connect resolves an account from the described wallet. Fails with
// core.ErrCapabilityMissing if the wallet does not advertise connect, and
// passes through core.ErrConnectionRejected when the user declines.
func (n *Negotiator) Connect(ctx context.Context, desc core.WalletDescriptor) (core.WalletAccount, error) {
	w, err := n.lookup(desc.ID)
	if err != nil {
		return core.WalletAccount{}, err
	}
	if !hasCapability(w, core.CapabilityConnect) {
		return core.WalletAccount{}, fmt.Errorf("wallet %s: %w: %s", desc.ID, core.ErrCapabilityMissing, core.CapabilityConnect)
	}

	account, err := w.Connect(ctx)
	if err != nil {
		return core.WalletAccount{}, fmt.Errorf("connect %s: %w", desc.ID, err)
	}
	account.WalletID = desc.ID

	n.mu.Lock()
	n.connected[account.Address] = desc.ID
	n.mu.Unlock()

	n.log.Info("wallet connected",
		zap.String("wallet", desc.ID), zap.String("address", account.Address))
	return account, nil
}

// Disconnect releases the wallet backing an account and drops the binding.
func (n *Negotiator) Disconnect(ctx context.Context, account core.WalletAccount) error {
	w, err := n.walletFor(account)
	if err != nil {
		return err
	}

	n.mu.Lock()
	delete(n.connected, account.Address)
	n.mu.Unlock()

	if !hasCapability(w, core.CapabilityDisconnect) {
		return nil
	}
	return w.Disconnect(ctx)
}

// MessageSigner resolves a message signer for a connected account. The
// capability set is re-read on every call rather than cached: a wallet can
// gain or lose capabilities across reconnects.
func (n *Negotiator) MessageSigner(account core.WalletAccount) (ports.MessageSigner, error) {
	w, err := n.resolve(account, core.CapabilitySignMessage)
	if err != nil {
		return nil, err
	}
	return &messageSigner{address: account.Address, wallet: w}, nil
}

// TransactionSigner resolves a transaction signer for a connected account,
// re-checking the capability set on every call.
func (n *Negotiator) TransactionSigner(account core.WalletAccount) (ports.TransactionSigner, error) {
	w, err := n.resolve(account, core.CapabilitySignTransaction)
	if err != nil {
		return nil, err
	}
	return &transactionSigner{address: account.Address, wallet: w}, nil
}

func (n *Negotiator) resolve(account core.WalletAccount, cap core.Capability) (ports.Wallet, error) {
	w, err := n.walletFor(account)
	if err != nil {
		return nil, err
	}
	if !hasCapability(w, cap) {
		return nil, fmt.Errorf("wallet %s: %w: %s", account.WalletID, core.ErrCapabilityMissing, cap)
	}
	return w, nil
}

func (n *Negotiator) walletFor(account core.WalletAccount) (ports.Wallet, error) {
	n.mu.RLock()
	id, bound := n.connected[account.Address]
	n.mu.RUnlock()
	if !bound {
		id = account.WalletID
	}
	return n.lookup(id)
}

func (n *Negotiator) lookup(id string) (ports.Wallet, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	w, ok := n.wallets[id]
	if !ok {
		return nil, fmt.Errorf("%w: wallet %q is not available", core.ErrInvalidInput, id)
	}
	return w, nil
}

func hasCapability(w ports.Wallet, cap core.Capability) bool {
	for _, have := range w.Capabilities() {
		if have == cap {
			return true
		}
	}
	return false
}

type messageSigner struct {
	address string
	wallet  ports.Wallet
}

func (s *messageSigner) Address() string { return s.address }

func (s *messageSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return s.wallet.SignMessage(ctx, msg)
}

type transactionSigner struct {
	address string
	wallet  ports.Wallet
}

func (s *transactionSigner) Address() string { return s.address }

func (s *transactionSigner) SignTransaction(ctx context.Context, tx []byte) ([]byte, error) {
	return s.wallet.SignTransaction(ctx, tx)
}
