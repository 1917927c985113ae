package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/courseledger/walletgate/core"
)

// ComputeBudgetProgramID is the Solana Compute Budget program ID.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// DefaultComputeUnits is the compute unit limit attached to built transactions.
const DefaultComputeUnits uint32 = 200_000

// Compute unit prices in microlamports per priority tier.
const (
	computeUnitPriceLow    uint64 = 1_000
	computeUnitPriceMedium uint64 = 10_000
	computeUnitPriceHigh   uint64 = 100_000
)

// RPCClient is the subset of the Solana RPC surface the payment service
// needs, extracted so tests can inject a fake.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// TokenMeta describes one registry entry for a supported SPL token.
type TokenMeta struct {
	Symbol   string
	Decimals int
}

// PaymentService builds, submits and reports on payment transactions.
type PaymentService struct {
	rpc         RPCClient
	log         *zap.Logger
	swapProgram solana.PublicKey
	registry    map[string]TokenMeta
}

// NewPaymentService creates a new payment service. The registry maps base58
// mint addresses to token metadata; intents naming unregistered mints are
// rejected.
func NewPaymentService(rpcClient RPCClient, swapProgram solana.PublicKey, registry map[string]TokenMeta, log *zap.Logger) *PaymentService {
	return &PaymentService{
		rpc:         rpcClient,
		log:         log,
		swapProgram: swapProgram,
		registry:    registry,
	}
}

// BuildTransaction turns a validated payment intent into an unsigned,
// base64-encoded transaction anchored to a fresh blockhash.
func (s *PaymentService) BuildTransaction(ctx context.Context, intent core.PaymentIntent) (*core.UnsignedTransaction, error) {
	signer, err := solana.PublicKeyFromBase58(intent.Signer)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid signer address", core.ErrInvalidIntent)
	}

	var instructions []solana.Instruction
	switch intent.Kind {
	case core.IntentTransfer:
		instructions, err = s.transferInstructions(intent, signer)
	case core.IntentSwap:
		instructions, err = s.swapInstructions(intent, signer)
	default:
		return nil, fmt.Errorf("%w: unknown intent kind %q", core.ErrInvalidIntent, intent.Kind)
	}
	if err != nil {
		return nil, err
	}

	budget := []solana.Instruction{
		buildSetComputeUnitLimitInstruction(DefaultComputeUnits),
		buildSetComputeUnitPriceInstruction(computeUnitPrice(intent.Priority)),
	}
	instructions = append(budget, instructions...)

	recent, err := s.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", core.ErrBuildFailed)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(signer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble transaction: %w", core.ErrBuildFailed)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", core.ErrBuildFailed)
	}

	return &core.UnsignedTransaction{
		IntentID: intent.ID,
		Base64:   base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (s *PaymentService) transferInstructions(intent core.PaymentIntent, signer solana.PublicKey) ([]solana.Instruction, error) {
	recipient, err := solana.PublicKeyFromBase58(intent.Recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid recipient address", core.ErrInvalidIntent)
	}
	mint, meta, err := s.lookupMint(intent.Mint, intent.Decimals)
	if err != nil {
		return nil, err
	}
	amount, err := core.AtomicAmount(intent.Amount, meta.Decimals)
	if err != nil {
		return nil, err
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(signer, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", core.ErrBuildFailed)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", core.ErrBuildFailed)
	}

	transfer := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(uint8(meta.Decimals)).
		SetSourceAccount(sourceATA).
		SetDestinationAccount(destATA).
		SetMintAccount(mint).
		SetOwnerAccount(signer).
		Build()

	return []solana.Instruction{
		buildCreateIdempotentATAInstruction(signer, recipient, mint, destATA),
		transfer,
	}, nil
}

func (s *PaymentService) swapInstructions(intent core.PaymentIntent, signer solana.PublicKey) ([]solana.Instruction, error) {
	sourceMint, meta, err := s.lookupMint(intent.SourceMint, intent.Decimals)
	if err != nil {
		return nil, err
	}
	destMint, _, err := s.lookupMint(intent.DestMint, -1)
	if err != nil {
		return nil, err
	}
	if sourceMint.Equals(destMint) {
		return nil, fmt.Errorf("%w: source and destination mint are identical", core.ErrInvalidIntent)
	}
	if intent.SlippageBps < 0 || intent.SlippageBps > core.MaxSlippageBps {
		return nil, fmt.Errorf("%w: slippage %d bps out of range", core.ErrInvalidIntent, intent.SlippageBps)
	}

	amountIn, err := core.AtomicAmount(intent.Amount, meta.Decimals)
	if err != nil {
		return nil, err
	}
	minAmountOut := amountIn - amountIn*uint64(intent.SlippageBps)/uint64(core.MaxSlippageBps)

	sourceATA, _, err := solana.FindAssociatedTokenAddress(signer, sourceMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", core.ErrBuildFailed)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(signer, destMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", core.ErrBuildFailed)
	}

	data, err := encodeSwapData(amountIn, minAmountOut)
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap data: %w", core.ErrBuildFailed)
	}

	accounts := solana.AccountMetaSlice{
		{PublicKey: signer, IsSigner: true, IsWritable: true},
		{PublicKey: sourceATA, IsSigner: false, IsWritable: true},
		{PublicKey: destATA, IsSigner: false, IsWritable: true},
		{PublicKey: sourceMint, IsSigner: false, IsWritable: false},
		{PublicKey: destMint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	return []solana.Instruction{
		buildCreateIdempotentATAInstruction(signer, signer, destMint, destATA),
		solana.NewInstruction(s.swapProgram, accounts, data),
	}, nil
}

// SendTransaction submits a signed transaction to the cluster and returns
// its base58 signature. The payment reference is recorded for bookkeeping.
func (s *PaymentService) SendTransaction(ctx context.Context, signed core.SignedTransaction, ref core.PaymentReference) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(signed.Base64)
	if err != nil {
		return "", fmt.Errorf("%w: transaction is not valid base64", core.ErrInvalidInput)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("%w: transaction is not decodable", core.ErrInvalidInput)
	}
	if len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		return "", fmt.Errorf("%w: transaction carries no signature", core.ErrInvalidInput)
	}

	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", core.ErrSubmissionFailed)
	}

	s.log.Info("transaction submitted",
		zap.String("signature", sig.String()),
		zap.String("user_id", ref.UserID),
		zap.String("course_id", ref.CourseID),
	)

	return sig.String(), nil
}

// Balances reports the SOL balance plus every registry token balance held by
// an address. Missing token accounts count as zero.
func (s *PaymentService) Balances(ctx context.Context, address string) ([]core.TokenInfo, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid address", core.ErrInvalidInput)
	}

	solBalance, err := s.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", core.ErrNetworkFailure)
	}
	lamports := decimal.NewFromUint64(solBalance.Value).Shift(-9)

	infos := []core.TokenInfo{{
		Mint:     "",
		Symbol:   "SOL",
		Amount:   lamports.String(),
		Decimals: 9,
		Value:    lamports.String(),
	}}

	for mintStr, meta := range s.registry {
		mint, err := solana.PublicKeyFromBase58(mintStr)
		if err != nil {
			continue
		}
		ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			continue
		}
		amount := "0"
		balance, err := s.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
		if err == nil && balance.Value != nil && balance.Value.UiAmountString != "" {
			amount = balance.Value.UiAmountString
		}
		infos = append(infos, core.TokenInfo{
			Mint:     mintStr,
			Symbol:   meta.Symbol,
			Amount:   amount,
			Decimals: meta.Decimals,
			Value:    amount,
		})
	}

	return infos, nil
}

// lookupMint resolves a mint against the registry. When claimedDecimals is
// non-negative it must match the registry entry.
func (s *PaymentService) lookupMint(mintStr string, claimedDecimals int) (solana.PublicKey, TokenMeta, error) {
	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		return solana.PublicKey{}, TokenMeta{}, fmt.Errorf("%w: invalid mint address %q", core.ErrInvalidIntent, mintStr)
	}
	meta, ok := s.registry[mintStr]
	if !ok {
		return solana.PublicKey{}, TokenMeta{}, fmt.Errorf("%w: unsupported mint %s", core.ErrInvalidIntent, mintStr)
	}
	if claimedDecimals >= 0 && claimedDecimals != meta.Decimals {
		return solana.PublicKey{}, TokenMeta{}, fmt.Errorf("%w: decimals mismatch for mint %s: got %d, want %d",
			core.ErrInvalidIntent, mintStr, claimedDecimals, meta.Decimals)
	}
	return mint, meta, nil
}

func computeUnitPrice(tier core.PriorityTier) uint64 {
	switch tier {
	case core.PriorityLow:
		return computeUnitPriceLow
	case core.PriorityHigh:
		return computeUnitPriceHigh
	default:
		return computeUnitPriceMedium
	}
}

// buildSetComputeUnitLimitInstruction encodes a SetComputeUnitLimit
// instruction: discriminator 2 followed by a little-endian u32.
func buildSetComputeUnitLimitInstruction(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	data[1] = byte(units)
	data[2] = byte(units >> 8)
	data[3] = byte(units >> 16)
	data[4] = byte(units >> 24)

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// buildSetComputeUnitPriceInstruction encodes a SetComputeUnitPrice
// instruction: discriminator 3 followed by a little-endian u64.
func buildSetComputeUnitPriceInstruction(microlamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	for i := 0; i < 8; i++ {
		data[1+i] = byte(microlamports >> (8 * i))
	}

	return solana.NewInstruction(ComputeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// buildCreateIdempotentATAInstruction creates an associated token account
// creation instruction that succeeds even when the account already exists
// (CreateIdempotent, instruction index 1).
func buildCreateIdempotentATAInstruction(payer, owner, mint, ata solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{1})
}

// encodeSwapData serializes the swap instruction payload with Borsh:
// discriminator 1, amount in, minimum amount out.
func encodeSwapData(amountIn, minAmountOut uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteByte(1); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(amountIn, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(minAmountOut, binary.LittleEndian); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
