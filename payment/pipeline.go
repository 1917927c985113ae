package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
)

const (
	defaultPollAttempts = 30
	defaultPollInterval = 2 * time.Second
)

// Pipeline hands an unsigned transaction to a wallet signer, re-encodes the
// result, submits it, and polls the ledger for confirmation.
//
// The pipeline does not serialize runs across intents. Callers that depend on
// account-level ordering at the ledger must not submit two intents from the
// same signer concurrently.
type Pipeline struct {
	backend ports.Backend
	ledger  ports.Ledger
	events  ports.EventPublisher // optional
	log     *zap.Logger

	pollAttempts  int
	pollInterval  time.Duration
	waitFinalized bool

	mu        sync.Mutex
	confirmed map[string]string // intent ID -> ledger signature
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPollBudget caps confirmation polling at attempts ticks of interval.
func WithPollBudget(attempts int, interval time.Duration) Option {
	return func(p *Pipeline) {
		p.pollAttempts = attempts
		p.pollInterval = interval
	}
}

// WithWaitFinalized keeps polling past "confirmed" until the ledger reports
// "finalized", for callers that need strict durability. If the budget runs
// out after confirmation, "confirmed" is still returned as success.
func WithWaitFinalized() Option {
	return func(p *Pipeline) { p.waitFinalized = true }
}

// WithEvents publishes a payment-confirmed event after a successful run.
func WithEvents(events ports.EventPublisher) Option {
	return func(p *Pipeline) { p.events = events }
}

// NewPipeline creates a Pipeline. Pass nil for log to disable logging.
func NewPipeline(backend ports.Backend, ledger ports.Ledger, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		backend:      backend,
		ledger:       ledger,
		log:          log,
		pollAttempts: defaultPollAttempts,
		pollInterval: defaultPollInterval,
		confirmed:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs sign, submit and confirm for one unsigned transaction.
//
// Error kinds callers branch on: core.ErrUserRejected when the wallet
// declines, core.ErrSubmissionFailed when submission fails after signing,
// core.ErrConfirmationTimeout when the transaction was submitted but
// confirmation was not observed within the budget — an ambiguous outcome the
// caller must surface as "unknown, check explorer", never as success or
// failure. Cancellation during the signing wait aborts cleanly; cancellation
// after submission cannot retract the ledger effect and is reported with the
// same ambiguity as a timeout.
func (p *Pipeline) Execute(ctx context.Context, unsigned core.UnsignedTransaction, signer ports.TransactionSigner, ref core.PaymentReference) (core.ConfirmationResult, error) {
	if sig, done := p.alreadyConfirmed(unsigned.IntentID); done {
		return core.ConfirmationResult{Status: core.StatusConfirmed, Signature: sig},
			fmt.Errorf("intent %s already confirmed as %s: %w", unsigned.IntentID, sig, core.ErrIntentConsumed)
	}

	// The builder's wire format (base64 on the HTTP contract) and the wallet's
	// (raw transaction bytes) are distinct by contract. Decode here, and
	// re-encode after signing; the signed bytes are also parsed once to catch
	// wallets that hand back a different layout than they consumed.
	raw, err := base64.StdEncoding.DecodeString(unsigned.Base64)
	if err != nil {
		return core.ConfirmationResult{}, fmt.Errorf("%w: unsigned payload is not base64: %v", core.ErrInvalidInput, err)
	}

	signedRaw, err := signer.SignTransaction(ctx, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.ConfirmationResult{}, fmt.Errorf("signing cancelled: %w", ctxErr)
		}
		if errors.Is(err, core.ErrUserRejected) {
			return core.ConfirmationResult{}, fmt.Errorf("intent %s: %w", unsigned.IntentID, err)
		}
		return core.ConfirmationResult{}, fmt.Errorf("intent %s: sign transaction: %w", unsigned.IntentID, err)
	}

	signed, err := reencode(unsigned.IntentID, signedRaw)
	if err != nil {
		return core.ConfirmationResult{}, err
	}

	signature, err := p.backend.SendTransaction(ctx, signed, ref)
	if err != nil {
		return core.ConfirmationResult{}, fmt.Errorf("intent %s: %w: %v", unsigned.IntentID, core.ErrSubmissionFailed, err)
	}
	p.log.Info("transaction submitted",
		zap.String("intent", unsigned.IntentID), zap.String("signature", signature))

	result, err := p.awaitConfirmation(ctx, signature)
	if err != nil {
		return result, fmt.Errorf("intent %s: %w", unsigned.IntentID, err)
	}
	if result.Status.Success() {
		p.markConfirmed(unsigned.IntentID, signature)
		p.publishConfirmed(signer.Address(), signature)
	}
	return result, nil
}

// awaitConfirmation polls the ledger until the status is terminal or the
// budget is spent. Each tick is a cancellation point.
func (p *Pipeline) awaitConfirmation(ctx context.Context, signature string) (core.ConfirmationResult, error) {
	result := core.ConfirmationResult{Status: core.StatusUnconfirmed, Signature: signature}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < p.pollAttempts; attempt++ {
		status, err := p.ledger.SignatureStatus(ctx, signature)
		if err != nil {
			// Transient: the next tick retries within the same budget.
			p.log.Debug("confirmation poll failed", zap.String("signature", signature), zap.Error(err))
		} else {
			switch status {
			case core.StatusFailed:
				result.Status = core.StatusFailed
				return result, fmt.Errorf("%w: transaction failed on ledger", core.ErrSubmissionFailed)
			case core.StatusFinalized:
				result.Status = core.StatusFinalized
				return result, nil
			case core.StatusConfirmed:
				result.Status = core.StatusConfirmed
				if !p.waitFinalized {
					return result, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			// The transaction is already out; local cancellation cannot
			// retract it. Unknown outcome, same contract as a timeout.
			if result.Status.Success() {
				return result, nil
			}
			return result, errors.Join(core.ErrConfirmationTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	if result.Status.Success() {
		// Budget ran out while waiting for finalization; confirmed is success.
		return result, nil
	}
	return result, core.ErrConfirmationTimeout
}

// reencode parses the wallet's signed bytes and marshals them back into the
// submission encoding, rejecting anything that is not a well-formed signed
// transaction.
func reencode(intentID string, signedRaw []byte) (core.SignedTransaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signedRaw))
	if err != nil {
		return core.SignedTransaction{}, fmt.Errorf("%w: signed bytes do not decode as a transaction: %v", core.ErrInvalidInput, err)
	}
	if len(tx.Signatures) == 0 {
		return core.SignedTransaction{}, fmt.Errorf("%w: wallet returned an unsigned transaction", core.ErrInvalidInput)
	}
	wire, err := tx.MarshalBinary()
	if err != nil {
		return core.SignedTransaction{}, fmt.Errorf("re-encode signed transaction: %w", err)
	}
	return core.SignedTransaction{
		IntentID: intentID,
		Base64:   base64.StdEncoding.EncodeToString(wire),
	}, nil
}

func (p *Pipeline) alreadyConfirmed(intentID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sig, ok := p.confirmed[intentID]
	return sig, ok
}

func (p *Pipeline) markConfirmed(intentID, signature string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed[intentID] = signature
}

func (p *Pipeline) publishConfirmed(address, signature string) {
	if p.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.events.PublishPaymentConfirmed(ctx, address, signature); err != nil {
		p.log.Warn("payment event publish failed", zap.Error(err))
	}
}
