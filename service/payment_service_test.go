package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courseledger/walletgate/core"
)

// mockRPC implements RPCClient without touching the network.
type mockRPC struct {
	blockhash    solana.Hash
	blockhashErr error
	sendSig      solana.Signature
	sendErr      error
	sendCalls    int
	lamports     uint64
	tokenAmount  string
}

func newMockRPC() *mockRPC {
	return &mockRPC{
		blockhash: solana.MustHashFromBase58("4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZAMdL4VZHirAn"),
		sendSig:   solana.Signature{1, 2, 3},
		lamports:  2_500_000_000,
	}
}

func (m *mockRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if m.blockhashErr != nil {
		return nil, m.blockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.blockhash,
			LastValidBlockHeight: 100000,
		},
	}, nil
}

func (m *mockRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.sendCalls++
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	return m.sendSig, nil
}

func (m *mockRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: m.lamports}, nil
}

func (m *mockRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	if m.tokenAmount == "" {
		return nil, errors.New("account not found")
	}
	return &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{UiAmountString: m.tokenAmount},
	}, nil
}

var testSwapProgram = solana.MustPublicKeyFromBase58("SwaPpA9LAaLfeLi3a68M4DjnLqgtticKg6CnyNwgAC8")

func newTestPaymentService(m *mockRPC) (*PaymentService, string, string) {
	mintA := solana.NewWallet().PublicKey().String()
	mintB := solana.NewWallet().PublicKey().String()
	registry := map[string]TokenMeta{
		mintA: {Symbol: "USDC", Decimals: 6},
		mintB: {Symbol: "LRN", Decimals: 9},
	}
	return NewPaymentService(m, testSwapProgram, registry, zap.NewNop()), mintA, mintB
}

func decodeTx(t *testing.T, b64 string) *solana.Transaction {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	return tx
}

func TestBuildTransferTransaction(t *testing.T) {
	m := newMockRPC()
	svc, mintA, _ := newTestPaymentService(m)

	signer := solana.NewWallet().PublicKey().String()
	intent := core.NewTransferIntent(signer, solana.NewWallet().PublicKey().String(), mintA, "12.5", 6)

	unsigned, err := svc.BuildTransaction(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, unsigned.IntentID)

	tx := decodeTx(t, unsigned.Base64)
	// Compute budget limit + price, ATA creation, transfer.
	require.Len(t, tx.Message.Instructions, 4)
	payer, err := solana.PublicKeyFromBase58(signer)
	require.NoError(t, err)
	assert.True(t, tx.Message.AccountKeys[0].Equals(payer))
	assert.Equal(t, m.blockhash.String(), tx.Message.RecentBlockhash.String())
}

func TestBuildSwapTransaction(t *testing.T) {
	m := newMockRPC()
	svc, mintA, mintB := newTestPaymentService(m)

	signer := solana.NewWallet().PublicKey().String()
	intent := core.NewSwapIntent(signer, mintA, mintB, "3", 6, 50)

	unsigned, err := svc.BuildTransaction(context.Background(), intent)
	require.NoError(t, err)

	tx := decodeTx(t, unsigned.Base64)
	require.Len(t, tx.Message.Instructions, 4)
}

func TestBuildRejectsInvalidIntents(t *testing.T) {
	m := newMockRPC()
	svc, mintA, mintB := newTestPaymentService(m)
	signer := solana.NewWallet().PublicKey().String()
	recipient := solana.NewWallet().PublicKey().String()

	tests := []struct {
		name   string
		intent core.PaymentIntent
	}{
		{"bad signer", core.NewTransferIntent("???", recipient, mintA, "1", 6)},
		{"unknown mint", core.NewTransferIntent(signer, recipient, solana.NewWallet().PublicKey().String(), "1", 6)},
		{"decimals mismatch", core.NewTransferIntent(signer, recipient, mintA, "1", 9)},
		{"zero amount", core.NewTransferIntent(signer, recipient, mintA, "0", 6)},
		{"excess precision", core.NewTransferIntent(signer, recipient, mintA, "0.0000001", 6)},
		{"same swap mints", core.NewSwapIntent(signer, mintA, mintA, "1", 6, 50)},
		{"slippage out of range", core.NewSwapIntent(signer, mintA, mintB, "1", 6, core.MaxSlippageBps+1)},
		{"unknown kind", core.PaymentIntent{ID: "x", Kind: "donate", Signer: signer, Amount: "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BuildTransaction(context.Background(), tt.intent)
			assert.ErrorIs(t, err, core.ErrInvalidIntent)
		})
	}
}

func TestBuildFailsWhenBlockhashUnavailable(t *testing.T) {
	m := newMockRPC()
	m.blockhashErr = errors.New("rpc down")
	svc, mintA, _ := newTestPaymentService(m)

	intent := core.NewTransferIntent(
		solana.NewWallet().PublicKey().String(),
		solana.NewWallet().PublicKey().String(),
		mintA, "1", 6,
	)
	_, err := svc.BuildTransaction(context.Background(), intent)
	assert.ErrorIs(t, err, core.ErrBuildFailed)
}

func signedTestTransaction(t *testing.T) string {
	t.Helper()
	m := newMockRPC()
	svc, mintA, _ := newTestPaymentService(m)

	w := solana.NewWallet()
	intent := core.NewTransferIntent(w.PublicKey().String(), solana.NewWallet().PublicKey().String(), mintA, "1", 6)
	unsigned, err := svc.BuildTransaction(context.Background(), intent)
	require.NoError(t, err)

	tx := decodeTx(t, unsigned.Base64)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey()) {
			return &w.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestSendTransaction(t *testing.T) {
	m := newMockRPC()
	svc, _, _ := newTestPaymentService(m)

	sig, err := svc.SendTransaction(context.Background(),
		core.SignedTransaction{Base64: signedTestTransaction(t)},
		core.PaymentReference{UserID: "u1", CourseID: "c1"},
	)
	require.NoError(t, err)
	assert.Equal(t, m.sendSig.String(), sig)
	assert.Equal(t, 1, m.sendCalls)
}

func TestSendRejectsMalformedPayload(t *testing.T) {
	m := newMockRPC()
	svc, _, _ := newTestPaymentService(m)

	_, err := svc.SendTransaction(context.Background(),
		core.SignedTransaction{Base64: "&&&"}, core.PaymentReference{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, 0, m.sendCalls)
}

func TestSendRejectsUnsignedTransaction(t *testing.T) {
	m := newMockRPC()
	svc, mintA, _ := newTestPaymentService(m)

	intent := core.NewTransferIntent(
		solana.NewWallet().PublicKey().String(),
		solana.NewWallet().PublicKey().String(),
		mintA, "1", 6,
	)
	unsigned, err := svc.BuildTransaction(context.Background(), intent)
	require.NoError(t, err)

	_, err = svc.SendTransaction(context.Background(),
		core.SignedTransaction{Base64: unsigned.Base64}, core.PaymentReference{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, 0, m.sendCalls)
}

func TestSendMapsRPCFailure(t *testing.T) {
	m := newMockRPC()
	m.sendErr = errors.New("blockhash not found")
	svc, _, _ := newTestPaymentService(m)

	_, err := svc.SendTransaction(context.Background(),
		core.SignedTransaction{Base64: signedTestTransaction(t)}, core.PaymentReference{})
	assert.ErrorIs(t, err, core.ErrSubmissionFailed)
}

func TestBalances(t *testing.T) {
	m := newMockRPC()
	m.tokenAmount = "42.5"
	svc, _, _ := newTestPaymentService(m)

	balances, err := svc.Balances(context.Background(), solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	require.Len(t, balances, 3)

	assert.Equal(t, "SOL", balances[0].Symbol)
	assert.Equal(t, "2.5", balances[0].Amount)
	for _, b := range balances[1:] {
		assert.Equal(t, "42.5", b.Amount)
	}
}

func TestBalancesMissingTokenAccountsAreZero(t *testing.T) {
	m := newMockRPC()
	svc, _, _ := newTestPaymentService(m)

	balances, err := svc.Balances(context.Background(), solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	require.Len(t, balances, 3)
	for _, b := range balances[1:] {
		assert.Equal(t, "0", b.Amount)
	}
}

func TestBalancesInvalidAddress(t *testing.T) {
	m := newMockRPC()
	svc, _, _ := newTestPaymentService(m)

	_, err := svc.Balances(context.Background(), "not an address")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
