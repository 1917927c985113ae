package core

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentKind discriminates the payment intent variants. Switches over it must
// be exhaustive with an explicit default rejecting unknown kinds.
type IntentKind string

const (
	IntentTransfer IntentKind = "transfer"
	IntentSwap     IntentKind = "swap"
)

// PriorityTier selects the compute-unit price attached to a built transaction.
type PriorityTier string

const (
	PriorityLow    PriorityTier = "low"
	PriorityMedium PriorityTier = "medium"
	PriorityHigh   PriorityTier = "high"
)

// MaxSlippageBps is the upper bound for swap slippage tolerance (100%).
const MaxSlippageBps = 10000

// PaymentIntent is a high-level payment request. An intent is constructed
// fresh per payment action and never reused across attempts: transactions are
// not idempotent by content, so a retried payment must build a new intent.
type PaymentIntent struct {
	ID          string       // Unique per action, assigned at construction
	Kind        IntentKind   // transfer or swap
	Signer      string       // Base58 address that will sign
	Recipient   string       // Transfer destination wallet (transfer only)
	Amount      string       // Decimal amount in token units
	Mint        string       // Token mint (transfer only)
	Decimals    int          // Claimed decimals, checked against the registry
	SourceMint  string       // Swap input mint (swap only)
	DestMint    string       // Swap output mint (swap only)
	SlippageBps int          // Swap slippage tolerance in basis points
	Priority    PriorityTier // Fee priority tier
}

// NewTransferIntent builds a transfer intent with a fresh identity.
func NewTransferIntent(signer, recipient, mint, amount string, decimals int) PaymentIntent {
	return PaymentIntent{
		ID:        uuid.New().String(),
		Kind:      IntentTransfer,
		Signer:    signer,
		Recipient: recipient,
		Mint:      mint,
		Amount:    amount,
		Decimals:  decimals,
		Priority:  PriorityMedium,
	}
}

// NewSwapIntent builds a swap intent with a fresh identity.
func NewSwapIntent(signer, sourceMint, destMint, amount string, decimals, slippageBps int) PaymentIntent {
	return PaymentIntent{
		ID:          uuid.New().String(),
		Kind:        IntentSwap,
		Signer:      signer,
		SourceMint:  sourceMint,
		DestMint:    destMint,
		Amount:      amount,
		Decimals:    decimals,
		SlippageBps: slippageBps,
		Priority:    PriorityMedium,
	}
}

// AtomicAmount converts a decimal token amount to atomic units for the given
// decimals. The conversion is exact: amounts with more fractional digits than
// the token carries are rejected rather than rounded.
func AtomicAmount(amount string, decimals int) (uint64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", ErrInvalidIntent, amount)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidIntent, amount)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidIntent, amount, decimals)
	}
	atomic := shifted.BigInt()
	if !atomic.IsUint64() {
		return 0, fmt.Errorf("%w: amount %s overflows atomic units", ErrInvalidIntent, amount)
	}
	return atomic.Uint64(), nil
}

// UnsignedTransaction is the serialized transaction returned by the builder.
// On the HTTP contract transactions travel base64-encoded; IntentID ties the
// payload back to the intent that produced it.
type UnsignedTransaction struct {
	IntentID string
	Base64   string
}

// SignedTransaction is an unsigned transaction plus the wallet's signatures,
// re-encoded into the submission format. It is submitted at most once
// successfully; resubmission on an ambiguous network failure is safe only at
// the ledger level, keyed by the transaction's own signature.
type SignedTransaction struct {
	IntentID string
	Base64   string
}

// PaymentReference carries the marketplace bookkeeping fields the submit
// endpoint records alongside a transaction.
type PaymentReference struct {
	UserID   string
	CourseID string
}

// ConfirmationStatus is the durability level the ledger reports for a
// submitted transaction. It only ever moves forward.
type ConfirmationStatus string

const (
	StatusUnconfirmed ConfirmationStatus = "unconfirmed"
	StatusConfirmed   ConfirmationStatus = "confirmed"
	StatusFinalized   ConfirmationStatus = "finalized"
	StatusFailed      ConfirmationStatus = "failed"
)

// Success reports whether the status counts as a successful inclusion.
// Both confirmed and finalized qualify.
func (s ConfirmationStatus) Success() bool {
	return s == StatusConfirmed || s == StatusFinalized
}

// ConfirmationResult is the outcome of a signing pipeline run.
type ConfirmationResult struct {
	Status    ConfirmationStatus
	Signature string // Base58 transaction signature, empty before submission
}
