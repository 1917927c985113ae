// Package auth runs the wallet authentication handshake and owns the
// process-wide session.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
	"github.com/courseledger/walletgate/wallet"
)

// State labels one step of the handshake for observers.
type State string

const (
	StateIdle              State = "idle"
	StateConnecting        State = "connecting"
	StateNonceRequested    State = "nonce-requested"
	StateAwaitingSignature State = "awaiting-signature"
	StateVerifying         State = "verifying"
	StateAuthenticated     State = "authenticated"
	StateFailed            State = "failed"
)

const balanceFetchTimeout = 15 * time.Second

// Handshake orchestrates connect, nonce request, signing, verification and
// session establishment. Steps within one run are strictly sequential; across
// runs, at most one handshake may be in flight per wallet account.
type Handshake struct {
	negotiator *wallet.Negotiator
	backend    ports.Backend
	sessions   *SessionManager
	log        *zap.Logger

	// OnState, when set, observes every state transition of a run.
	OnState func(State)

	// OnBalances, when set, receives the result of the asynchronous balance
	// fetch triggered by a successful login.
	OnBalances func(address string, balances []core.TokenInfo, err error)

	mu       sync.Mutex
	inflight map[string]struct{} // addresses with an active handshake
}

// NewHandshake wires a handshake over a negotiator, a backend client and the
// session manager. Pass nil for log to disable logging.
func NewHandshake(n *wallet.Negotiator, backend ports.Backend, sessions *SessionManager, log *zap.Logger) *Handshake {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handshake{
		negotiator: n,
		backend:    backend,
		sessions:   sessions,
		log:        log,
		inflight:   make(map[string]struct{}),
	}
}

// Login runs the full handshake against the described wallet. On any failure
// the session resets cleanly: no partial authentication state survives, and a
// submitted nonce is never retried — a new attempt requests a fresh one.
func (h *Handshake) Login(ctx context.Context, desc core.WalletDescriptor) (core.Session, error) {
	h.transition(StateConnecting)
	h.sessions.setStatus(core.StatusLoading)

	account, err := h.negotiator.Connect(ctx, desc)
	if err != nil {
		return h.fail(fmt.Errorf("connect wallet: %w", err))
	}

	// Two concurrent nonce requests for one address would race the nonce's
	// single-use invariant, so the account is locked from here until the
	// handshake resolves.
	if !h.acquire(account.Address) {
		h.sessions.setStatus(core.StatusIdle)
		return h.sessions.Snapshot(), fmt.Errorf("account %s: %w", account.Address, core.ErrHandshakeInProgress)
	}
	defer h.release(account.Address)

	h.transition(StateNonceRequested)
	nonce, err := h.backend.RequestNonce(ctx, account.Address)
	if err != nil {
		return h.fail(fmt.Errorf("request nonce: %w", err))
	}

	signer, err := h.negotiator.MessageSigner(account)
	if err != nil {
		return h.fail(fmt.Errorf("resolve message signer: %w", err))
	}

	h.transition(StateAwaitingSignature)
	signature, err := signer.SignMessage(ctx, core.ChallengeMessage(nonce))
	if err != nil {
		return h.fail(fmt.Errorf("sign challenge: %w", err))
	}

	h.transition(StateVerifying)
	result, err := h.backend.VerifyLogin(ctx, account.Address, nonce, signature)
	if err != nil {
		// Verification failure after a signature was submitted must fully
		// reset the local binding: that nonce is spent either way.
		_ = h.negotiator.Disconnect(context.WithoutCancel(ctx), account)
		return h.fail(fmt.Errorf("verify login: %w", err))
	}

	now := time.Now()
	session := core.Session{
		ID:          result.User.ID,
		User:        result.User,
		Status:      core.StatusAuthenticated,
		AccessToken: result.AccessToken,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Duration(result.ExpiresIn) * time.Second),
	}
	h.sessions.set(session)
	h.transition(StateAuthenticated)
	h.log.Info("handshake authenticated",
		zap.String("address", account.Address), zap.String("user", result.User.ID))

	go h.fetchBalances(account.Address)

	return session, nil
}

// Logout revokes the session with the backend and resets local state. The
// session is cleared even when the backend call fails: local state must not
// outlive the user's decision to leave.
func (h *Handshake) Logout(ctx context.Context) error {
	session := h.sessions.Snapshot()
	h.sessions.set(core.Session{Status: core.StatusIdle})

	if !session.Authenticated() {
		return nil
	}
	if err := h.backend.Logout(ctx, session.AccessToken); err != nil {
		h.log.Warn("backend logout failed", zap.Error(err))
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (h *Handshake) fetchBalances(address string) {
	ctx, cancel := context.WithTimeout(context.Background(), balanceFetchTimeout)
	defer cancel()

	balances, err := h.backend.Balances(ctx, address)
	if err != nil {
		h.log.Warn("balance fetch failed", zap.String("address", address), zap.Error(err))
	}
	if h.OnBalances != nil {
		h.OnBalances(address, balances, err)
	}
}

func (h *Handshake) fail(err error) (core.Session, error) {
	h.transition(StateFailed)
	h.sessions.set(core.Session{Status: core.StatusUnauthenticated})
	// The generic failure is what the UI shows; detail stays in the log.
	h.log.Warn("handshake failed", zap.Error(err))
	return h.sessions.Snapshot(), err
}

func (h *Handshake) acquire(address string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inflight[address]; busy {
		return false
	}
	h.inflight[address] = struct{}{}
	return true
}

func (h *Handshake) release(address string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, address)
}

func (h *Handshake) transition(s State) {
	if h.OnState != nil {
		h.OnState(s)
	}
}
