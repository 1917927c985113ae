// Package payment turns payment intents into confirmed on-chain transfers.
package payment

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
)

// TokenRegistry maps mint addresses to their declared decimals. Intents
// claiming other decimals for a known mint are rejected before any network
// call.
type TokenRegistry map[string]int

// Builder converts a payment intent into an unsigned serialized transaction.
// The instruction encoding itself is the backend's responsibility; the
// builder's contract is local validation plus the request/response shape.
type Builder struct {
	backend ports.Backend
	tokens  TokenRegistry
	log     *zap.Logger
}

// NewBuilder creates a Builder. Pass nil for log to disable logging.
func NewBuilder(backend ports.Backend, tokens TokenRegistry, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{backend: backend, tokens: tokens, log: log}
}

// Build validates the intent locally and asks the backend for the unsigned
// transaction. Malformed intents fail fast with core.ErrInvalidIntent and
// never reach the network; a backend response without a payload is
// core.ErrBuildFailed and is not retryable with the same intent.
func (b *Builder) Build(ctx context.Context, intent core.PaymentIntent) (core.UnsignedTransaction, error) {
	if err := b.validate(intent); err != nil {
		return core.UnsignedTransaction{}, err
	}

	unsigned, err := b.backend.BuildTransaction(ctx, intent)
	if err != nil {
		return core.UnsignedTransaction{}, fmt.Errorf("build intent %s: %w", intent.ID, err)
	}
	if unsigned.Base64 == "" {
		return core.UnsignedTransaction{}, fmt.Errorf("intent %s: backend returned no payload: %w", intent.ID, core.ErrBuildFailed)
	}
	unsigned.IntentID = intent.ID

	b.log.Debug("transaction built",
		zap.String("intent", intent.ID), zap.String("kind", string(intent.Kind)))
	return unsigned, nil
}

func (b *Builder) validate(intent core.PaymentIntent) error {
	if _, err := solana.PublicKeyFromBase58(intent.Signer); err != nil {
		return fmt.Errorf("%w: signer address: %v", core.ErrInvalidIntent, err)
	}
	if _, err := core.AtomicAmount(intent.Amount, intent.Decimals); err != nil {
		return err
	}

	switch intent.Kind {
	case core.IntentTransfer:
		if _, err := solana.PublicKeyFromBase58(intent.Recipient); err != nil {
			return fmt.Errorf("%w: recipient address: %v", core.ErrInvalidIntent, err)
		}
		if _, err := solana.PublicKeyFromBase58(intent.Mint); err != nil {
			return fmt.Errorf("%w: mint: %v", core.ErrInvalidIntent, err)
		}
		if err := b.checkDecimals(intent.Mint, intent.Decimals); err != nil {
			return err
		}
	case core.IntentSwap:
		if _, err := solana.PublicKeyFromBase58(intent.SourceMint); err != nil {
			return fmt.Errorf("%w: source mint: %v", core.ErrInvalidIntent, err)
		}
		if _, err := solana.PublicKeyFromBase58(intent.DestMint); err != nil {
			return fmt.Errorf("%w: destination mint: %v", core.ErrInvalidIntent, err)
		}
		if intent.SourceMint == intent.DestMint {
			return fmt.Errorf("%w: swap source and destination mints are identical", core.ErrInvalidIntent)
		}
		if intent.SlippageBps < 0 || intent.SlippageBps > core.MaxSlippageBps {
			return fmt.Errorf("%w: slippage %d bps outside [0, %d]", core.ErrInvalidIntent, intent.SlippageBps, core.MaxSlippageBps)
		}
		if err := b.checkDecimals(intent.SourceMint, intent.Decimals); err != nil {
			return err
		}
	default:
		// Unknown kinds are a programming error upstream; reject rather than
		// guess what the backend would do with them.
		return fmt.Errorf("%w: unknown intent kind %q", core.ErrInvalidIntent, intent.Kind)
	}
	return nil
}

func (b *Builder) checkDecimals(mint string, claimed int) error {
	declared, known := b.tokens[mint]
	if !known {
		return fmt.Errorf("%w: unknown mint %s", core.ErrInvalidIntent, mint)
	}
	if declared != claimed {
		return fmt.Errorf("%w: mint %s has %d decimals, intent claims %d", core.ErrInvalidIntent, mint, declared, claimed)
	}
	return nil
}
