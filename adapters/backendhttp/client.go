// Package backendhttp implements the client side of the platform backend's
// HTTP contract.
package backendhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mr-tron/base58"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
)

const defaultTimeout = 30 * time.Second

// Client talks to the backend over HTTP. Transport-level failures are
// reported as core.ErrNetworkFailure; application-level rejections carry the
// backend's error message.
type Client struct {
	// BaseURL is the backend root, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient is used for requests. http.DefaultClient when nil.
	HTTPClient *http.Client

	// Timeout bounds each request when the caller's context has no deadline.
	Timeout time.Duration
}

var _ ports.Backend = (*Client)(nil)

// New creates a client with the default timeout.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, Timeout: defaultTimeout}
}

type nonceRequest struct {
	Address string `json:"address"`
}

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

type verifyRequest struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"` // base58
}

type verifyResponse struct {
	User        core.User `json:"user"`
	AccessToken string    `json:"access_token"`
	ExpiresIn   int       `json:"expires_in"`
}

type buildResponse struct {
	Transaction string `json:"transaction"` // base64
}

type sendRequest struct {
	Transaction string `json:"transaction"` // base64
	UserID      string `json:"userId"`
	CourseID    string `json:"courseId"`
}

type sendResponse struct {
	Signature string `json:"signature"`
}

type intentRequest struct {
	ID          string `json:"id"`
	Kind        string `json:"type"`
	Signer      string `json:"signer"`
	Recipient   string `json:"recipient,omitempty"`
	Amount      string `json:"amount"`
	Mint        string `json:"mint,omitempty"`
	Decimals    int    `json:"decimals"`
	SourceMint  string `json:"sourceMint,omitempty"`
	DestMint    string `json:"destMint,omitempty"`
	SlippageBps int    `json:"slippageBps,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// RequestNonce implements ports.Backend.
func (c *Client) RequestNonce(ctx context.Context, address string) (string, error) {
	var resp nonceResponse
	if err := c.post(ctx, "/auth/nonce", nonceRequest{Address: address}, &resp, nil); err != nil {
		return "", err
	}
	if resp.Nonce == "" {
		return "", fmt.Errorf("%w: backend returned empty nonce", core.ErrInvalidInput)
	}
	return resp.Nonce, nil
}

// VerifyLogin implements ports.Backend. The signature travels base58-encoded.
func (c *Client) VerifyLogin(ctx context.Context, address, nonce string, signature []byte) (*ports.AuthResult, error) {
	req := verifyRequest{
		Address:   address,
		Nonce:     nonce,
		Signature: base58.Encode(signature),
	}
	var resp verifyResponse
	if err := c.post(ctx, "/auth/verify", req, &resp, map[int]error{
		http.StatusUnauthorized: core.ErrInvalidSignature,
		http.StatusConflict:     core.ErrNonceConsumed,
		http.StatusGone:         core.ErrNonceExpired,
	}); err != nil {
		return nil, err
	}
	return &ports.AuthResult{
		User:        resp.User,
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
	}, nil
}

// Logout implements ports.Backend.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.postAuthorized(ctx, "/auth/logout", accessToken, struct{}{}, &struct {
		Message string `json:"message"`
	}{}, nil)
}

// BuildTransaction implements ports.Backend.
func (c *Client) BuildTransaction(ctx context.Context, intent core.PaymentIntent) (core.UnsignedTransaction, error) {
	req := intentRequest{
		ID:          intent.ID,
		Kind:        string(intent.Kind),
		Signer:      intent.Signer,
		Recipient:   intent.Recipient,
		Amount:      intent.Amount,
		Mint:        intent.Mint,
		Decimals:    intent.Decimals,
		SourceMint:  intent.SourceMint,
		DestMint:    intent.DestMint,
		SlippageBps: intent.SlippageBps,
		Priority:    string(intent.Priority),
	}
	var resp buildResponse
	if err := c.post(ctx, "/transactions/build", req, &resp, map[int]error{
		http.StatusBadRequest:          core.ErrInvalidIntent,
		http.StatusUnprocessableEntity: core.ErrBuildFailed,
	}); err != nil {
		return core.UnsignedTransaction{}, err
	}
	return core.UnsignedTransaction{IntentID: intent.ID, Base64: resp.Transaction}, nil
}

// SendTransaction implements ports.Backend.
func (c *Client) SendTransaction(ctx context.Context, signed core.SignedTransaction, ref core.PaymentReference) (string, error) {
	req := sendRequest{
		Transaction: signed.Base64,
		UserID:      ref.UserID,
		CourseID:    ref.CourseID,
	}
	var resp sendResponse
	if err := c.post(ctx, "/transactions/send", req, &resp, nil); err != nil {
		return "", err
	}
	if resp.Signature == "" {
		return "", fmt.Errorf("%w: backend returned no transaction signature", core.ErrSubmissionFailed)
	}
	return resp.Signature, nil
}

// Balances implements ports.Backend.
func (c *Client) Balances(ctx context.Context, address string) ([]core.TokenInfo, error) {
	endpoint := c.BaseURL + "/balances?user=" + url.QueryEscape(address)

	ctx, cancel := c.bound(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var balances []core.TokenInfo
	if err := c.do(httpReq, &balances, nil); err != nil {
		return nil, err
	}
	return balances, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any, statusErrs map[int]error) error {
	return c.postAuthorized(ctx, path, "", body, out, statusErrs)
}

func (c *Client) postAuthorized(ctx context.Context, path, accessToken string, body, out any, statusErrs map[int]error) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.do(httpReq, out, statusErrs)
}

func (c *Client) do(req *http.Request, out any, statusErrs map[int]error) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind, ok := statusErrs[resp.StatusCode]
		if !ok {
			if resp.StatusCode >= http.StatusInternalServerError {
				kind = core.ErrNetworkFailure
			} else {
				kind = core.ErrInvalidInput
			}
		}
		return fmt.Errorf("%s %s: %w: %s", req.Method, req.URL.Path, kind, readErrorMessage(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// bound applies the client timeout when the caller set no deadline.
func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); has || c.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func readErrorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Error == "" {
		return "request failed"
	}
	return payload.Error
}
