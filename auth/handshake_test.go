package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
	"github.com/courseledger/walletgate/wallet"
)

type stubWallet struct {
	id           string
	capabilities []core.Capability
	account      core.WalletAccount
	connectErr   error
	signErr      error
	signFn       func(ctx context.Context, msg []byte) ([]byte, error)

	mu          sync.Mutex
	disconnects int
}

func (w *stubWallet) Descriptor() core.WalletDescriptor {
	return core.WalletDescriptor{ID: w.id, Name: w.id}
}

func (w *stubWallet) Capabilities() []core.Capability { return w.capabilities }

func (w *stubWallet) Connect(ctx context.Context) (core.WalletAccount, error) {
	if w.connectErr != nil {
		return core.WalletAccount{}, w.connectErr
	}
	return w.account, nil
}

func (w *stubWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnects++
	return nil
}

func (w *stubWallet) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if w.signFn != nil {
		return w.signFn(ctx, msg)
	}
	if w.signErr != nil {
		return nil, w.signErr
	}
	return append([]byte("sig:"), msg...), nil
}

func (w *stubWallet) SignTransaction(ctx context.Context, tx []byte) ([]byte, error) {
	return tx, nil
}

func (w *stubWallet) disconnectCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disconnects
}

type stubBackend struct {
	mu            sync.Mutex
	nonceSeq      int
	issuedNonces  []string
	verifyErr     error
	verifyCalls   int
	logoutCalls   int
	balancesCalls int
	balances      []core.TokenInfo
	balancesErr   error
	nonceDelay    time.Duration
}

func (b *stubBackend) RequestNonce(ctx context.Context, address string) (string, error) {
	if b.nonceDelay > 0 {
		select {
		case <-time.After(b.nonceDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonceSeq++
	nonce := fmt.Sprintf("nonce-%d", b.nonceSeq)
	b.issuedNonces = append(b.issuedNonces, nonce)
	return nonce, nil
}

func (b *stubBackend) VerifyLogin(ctx context.Context, address, nonce string, signature []byte) (*ports.AuthResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifyCalls++
	if b.verifyErr != nil {
		return nil, b.verifyErr
	}
	return &ports.AuthResult{
		User:        core.User{ID: "user-1", Address: address},
		AccessToken: "token-for-" + nonce,
		ExpiresIn:   3600,
	}, nil
}

func (b *stubBackend) Logout(ctx context.Context, accessToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logoutCalls++
	return nil
}

func (b *stubBackend) BuildTransaction(ctx context.Context, intent core.PaymentIntent) (core.UnsignedTransaction, error) {
	return core.UnsignedTransaction{}, errors.New("not implemented")
}

func (b *stubBackend) SendTransaction(ctx context.Context, signed core.SignedTransaction, ref core.PaymentReference) (string, error) {
	return "", errors.New("not implemented")
}

func (b *stubBackend) Balances(ctx context.Context, address string) ([]core.TokenInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balancesCalls++
	return b.balances, b.balancesErr
}

func newTestHandshake(w *stubWallet, b *stubBackend) (*Handshake, *SessionManager) {
	n := wallet.NewNegotiator(nil)
	n.Register(w)
	sessions := NewSessionManager()
	return NewHandshake(n, b, sessions, nil), sessions
}

func signingWallet(address string) *stubWallet {
	return &stubWallet{
		id: "phantom",
		capabilities: []core.Capability{
			core.CapabilityConnect,
			core.CapabilityDisconnect,
			core.CapabilitySignMessage,
			core.CapabilitySignTransaction,
		},
		account: core.WalletAccount{Address: address},
	}
}

func TestLoginHappyPath(t *testing.T) {
	w := signingWallet("addr1")
	backend := &stubBackend{balances: []core.TokenInfo{{Symbol: "SOL", Amount: "1"}}}
	h, sessions := newTestHandshake(w, backend)

	var states []State
	h.OnState = func(s State) { states = append(states, s) }

	balancesCh := make(chan []core.TokenInfo, 1)
	h.OnBalances = func(address string, balances []core.TokenInfo, err error) {
		balancesCh <- balances
	}

	session, err := h.Login(context.Background(), w.Descriptor())
	require.NoError(t, err)
	assert.True(t, session.Authenticated())
	assert.Equal(t, "user-1", session.User.ID)
	assert.Equal(t, "token-for-nonce-1", session.AccessToken)
	assert.True(t, sessions.Snapshot().Authenticated())

	assert.Equal(t, []State{
		StateConnecting,
		StateNonceRequested,
		StateAwaitingSignature,
		StateVerifying,
		StateAuthenticated,
	}, states)

	// Balance fetch runs off the handshake path.
	select {
	case balances := <-balancesCh:
		require.Len(t, balances, 1)
		assert.Equal(t, "SOL", balances[0].Symbol)
	case <-time.After(2 * time.Second):
		t.Fatal("balance fetch did not complete")
	}
}

func TestLoginSignsExactChallengeMessage(t *testing.T) {
	w := signingWallet("addr1")
	var signedMsg []byte
	w.signFn = func(ctx context.Context, msg []byte) ([]byte, error) {
		signedMsg = append([]byte(nil), msg...)
		return []byte("sig"), nil
	}
	backend := &stubBackend{}
	h, _ := newTestHandshake(w, backend)

	_, err := h.Login(context.Background(), w.Descriptor())
	require.NoError(t, err)
	assert.Equal(t, core.ChallengeMessage("nonce-1"), signedMsg)
}

func TestLoginUserRejectsSigning(t *testing.T) {
	w := signingWallet("addr1")
	w.signErr = core.ErrUserRejected
	backend := &stubBackend{}
	h, sessions := newTestHandshake(w, backend)

	_, err := h.Login(context.Background(), w.Descriptor())
	assert.ErrorIs(t, err, core.ErrUserRejected)
	assert.Equal(t, core.StatusUnauthenticated, sessions.Snapshot().Status)
	// No signature ever reached the backend.
	assert.Equal(t, 0, backend.verifyCalls)
}

func TestLoginVerificationFailureResetsAndDisconnects(t *testing.T) {
	w := signingWallet("addr1")
	backend := &stubBackend{verifyErr: core.ErrInvalidSignature}
	h, sessions := newTestHandshake(w, backend)

	_, err := h.Login(context.Background(), w.Descriptor())
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
	assert.Equal(t, core.StatusUnauthenticated, sessions.Snapshot().Status)
	assert.Empty(t, sessions.Snapshot().AccessToken)
	assert.Equal(t, 1, w.disconnectCount())
}

func TestRetryAfterFailureUsesFreshNonce(t *testing.T) {
	w := signingWallet("addr1")
	backend := &stubBackend{verifyErr: core.ErrInvalidSignature}
	h, _ := newTestHandshake(w, backend)

	_, err := h.Login(context.Background(), w.Descriptor())
	require.Error(t, err)

	backend.mu.Lock()
	backend.verifyErr = nil
	backend.mu.Unlock()

	session, err := h.Login(context.Background(), w.Descriptor())
	require.NoError(t, err)
	assert.Equal(t, "token-for-nonce-2", session.AccessToken)
	assert.Equal(t, []string{"nonce-1", "nonce-2"}, backend.issuedNonces)
}

func TestConcurrentLoginSameAccountRejected(t *testing.T) {
	w := signingWallet("addr1")
	backend := &stubBackend{nonceDelay: 200 * time.Millisecond}
	h, _ := newTestHandshake(w, backend)

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := h.Login(context.Background(), w.Descriptor())
			errCh <- err
		}()
	}

	var failures []error
	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				failures = append(failures, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("login did not return")
		}
	}

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], core.ErrHandshakeInProgress)
}

func TestLoginCancelledDuringSigning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := signingWallet("addr1")
	w.signFn = func(ctx context.Context, msg []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	backend := &stubBackend{}
	h, sessions := newTestHandshake(w, backend)

	done := make(chan error, 1)
	go func() {
		_, err := h.Login(ctx, w.Descriptor())
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, core.StatusUnauthenticated, sessions.Snapshot().Status)
		assert.Equal(t, 0, backend.verifyCalls)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled login did not return")
	}
}

func TestLogoutClearsSessionEvenIfBackendFails(t *testing.T) {
	w := signingWallet("addr1")
	backend := &stubBackend{}
	h, sessions := newTestHandshake(w, backend)

	_, err := h.Login(context.Background(), w.Descriptor())
	require.NoError(t, err)

	require.NoError(t, h.Logout(context.Background()))
	assert.Equal(t, core.StatusIdle, sessions.Snapshot().Status)
	assert.Empty(t, sessions.Snapshot().AccessToken)
	assert.Equal(t, 1, backend.logoutCalls)
}

func TestLogoutWithoutSessionIsNoop(t *testing.T) {
	w := signingWallet("addr1")
	backend := &stubBackend{}
	h, _ := newTestHandshake(w, backend)

	require.NoError(t, h.Logout(context.Background()))
	assert.Equal(t, 0, backend.logoutCalls)
}

func TestSessionSubscribersObserveTransitions(t *testing.T) {
	w := signingWallet("addr1")
	backend := &stubBackend{}
	h, sessions := newTestHandshake(w, backend)

	var mu sync.Mutex
	var statuses []core.LoginStatus
	cancel := sessions.Subscribe(func(s core.Session) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})
	defer cancel()

	_, err := h.Login(context.Background(), w.Descriptor())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, statuses)
	assert.Equal(t, core.StatusLoading, statuses[0])
	assert.Equal(t, core.StatusAuthenticated, statuses[len(statuses)-1])
}
