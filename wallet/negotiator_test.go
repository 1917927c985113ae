package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseledger/walletgate/core"
)

// fakeWallet is a scriptable in-memory wallet.
type fakeWallet struct {
	id           string
	name         string
	capabilities []core.Capability
	account      core.WalletAccount
	connectErr   error
	signErr      error
	disconnects  int
}

func (w *fakeWallet) Descriptor() core.WalletDescriptor {
	return core.WalletDescriptor{ID: w.id, Name: w.name}
}

func (w *fakeWallet) Capabilities() []core.Capability { return w.capabilities }

func (w *fakeWallet) Connect(ctx context.Context) (core.WalletAccount, error) {
	if w.connectErr != nil {
		return core.WalletAccount{}, w.connectErr
	}
	return w.account, nil
}

func (w *fakeWallet) Disconnect(ctx context.Context) error {
	w.disconnects++
	return nil
}

func (w *fakeWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if w.signErr != nil {
		return nil, w.signErr
	}
	return []byte("signed:" + string(msg)), nil
}

func (w *fakeWallet) SignTransaction(ctx context.Context, tx []byte) ([]byte, error) {
	if w.signErr != nil {
		return nil, w.signErr
	}
	return tx, nil
}

func allCapabilities() []core.Capability {
	return []core.Capability{
		core.CapabilityConnect,
		core.CapabilityDisconnect,
		core.CapabilitySignMessage,
		core.CapabilitySignTransaction,
	}
}

func TestListIsSortedAndRestartable(t *testing.T) {
	n := NewNegotiator(nil)
	n.Register(&fakeWallet{id: "zeta", name: "Zeta"})
	n.Register(&fakeWallet{id: "alpha", name: "Alpha"})
	n.Register(&fakeWallet{id: "mid", name: "Mid"})

	first := n.List()
	require.Len(t, first, 3)
	assert.Equal(t, "alpha", first[0].ID)
	assert.Equal(t, "mid", first[1].ID)
	assert.Equal(t, "zeta", first[2].ID)

	// A second enumeration starts over and reflects the registry now.
	n.Unregister("mid")
	second := n.List()
	require.Len(t, second, 2)
	assert.Equal(t, "alpha", second[0].ID)
	assert.Equal(t, "zeta", second[1].ID)
}

func TestConnectRecordsBinding(t *testing.T) {
	w := &fakeWallet{
		id:           "phantom",
		capabilities: allCapabilities(),
		account:      core.WalletAccount{Address: "addr1"},
	}
	n := NewNegotiator(nil)
	n.Register(w)

	account, err := n.Connect(context.Background(), w.Descriptor())
	require.NoError(t, err)
	assert.Equal(t, "addr1", account.Address)
	assert.Equal(t, "phantom", account.WalletID)
}

func TestConnectUnknownWallet(t *testing.T) {
	n := NewNegotiator(nil)

	_, err := n.Connect(context.Background(), core.WalletDescriptor{ID: "ghost"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestConnectRejectedByUser(t *testing.T) {
	w := &fakeWallet{
		id:           "phantom",
		capabilities: allCapabilities(),
		connectErr:   core.ErrConnectionRejected,
	}
	n := NewNegotiator(nil)
	n.Register(w)

	_, err := n.Connect(context.Background(), w.Descriptor())
	assert.ErrorIs(t, err, core.ErrConnectionRejected)
}

func TestConnectMissingCapability(t *testing.T) {
	w := &fakeWallet{id: "viewer", capabilities: []core.Capability{core.CapabilitySignMessage}}
	n := NewNegotiator(nil)
	n.Register(w)

	_, err := n.Connect(context.Background(), w.Descriptor())
	assert.ErrorIs(t, err, core.ErrCapabilityMissing)
}

func TestSignerMissingCapability(t *testing.T) {
	w := &fakeWallet{
		id:           "readonly",
		capabilities: []core.Capability{core.CapabilityConnect},
		account:      core.WalletAccount{Address: "addr1"},
	}
	n := NewNegotiator(nil)
	n.Register(w)

	account, err := n.Connect(context.Background(), w.Descriptor())
	require.NoError(t, err)

	_, err = n.MessageSigner(account)
	assert.ErrorIs(t, err, core.ErrCapabilityMissing)

	_, err = n.TransactionSigner(account)
	assert.ErrorIs(t, err, core.ErrCapabilityMissing)
}

func TestSignerReResolvesCapabilities(t *testing.T) {
	w := &fakeWallet{
		id:           "phantom",
		capabilities: allCapabilities(),
		account:      core.WalletAccount{Address: "addr1"},
	}
	n := NewNegotiator(nil)
	n.Register(w)

	account, err := n.Connect(context.Background(), w.Descriptor())
	require.NoError(t, err)

	_, err = n.MessageSigner(account)
	require.NoError(t, err)

	// The wallet loses the capability after a reconnect; the next resolution
	// must observe the new set rather than a cached one.
	w.capabilities = []core.Capability{core.CapabilityConnect}
	_, err = n.MessageSigner(account)
	assert.ErrorIs(t, err, core.ErrCapabilityMissing)
}

func TestSignerAfterWalletUnregistered(t *testing.T) {
	w := &fakeWallet{
		id:           "phantom",
		capabilities: allCapabilities(),
		account:      core.WalletAccount{Address: "addr1"},
	}
	n := NewNegotiator(nil)
	n.Register(w)

	account, err := n.Connect(context.Background(), w.Descriptor())
	require.NoError(t, err)

	n.Unregister("phantom")
	_, err = n.MessageSigner(account)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestDisconnectDropsBinding(t *testing.T) {
	w := &fakeWallet{
		id:           "phantom",
		capabilities: allCapabilities(),
		account:      core.WalletAccount{Address: "addr1"},
	}
	n := NewNegotiator(nil)
	n.Register(w)

	account, err := n.Connect(context.Background(), w.Descriptor())
	require.NoError(t, err)

	require.NoError(t, n.Disconnect(context.Background(), account))
	assert.Equal(t, 1, w.disconnects)
}

func TestSignMessageDelegates(t *testing.T) {
	w := &fakeWallet{
		id:           "phantom",
		capabilities: allCapabilities(),
		account:      core.WalletAccount{Address: "addr1"},
	}
	n := NewNegotiator(nil)
	n.Register(w)

	account, err := n.Connect(context.Background(), w.Descriptor())
	require.NoError(t, err)

	signer, err := n.MessageSigner(account)
	require.NoError(t, err)
	assert.Equal(t, "addr1", signer.Address())

	sig, err := signer.SignMessage(context.Background(), []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("signed:hello"), sig)
}
