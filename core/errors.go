package core

import "errors"

var (
	// ErrInvalidInput is returned for malformed addresses, signatures or payloads.
	// Code on the auth path fails closed on it and never retries.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidIntent is returned when a payment intent fails local validation
	// and must not reach the network.
	ErrInvalidIntent = errors.New("invalid payment intent")

	// ErrIntentConsumed is returned when a payment intent has already produced
	// a confirmed transaction. A retried payment needs a fresh intent.
	ErrIntentConsumed = errors.New("payment intent already confirmed")

	// ErrCapabilityMissing is returned when a wallet does not advertise the
	// requested capability.
	ErrCapabilityMissing = errors.New("wallet capability missing")

	// ErrConnectionRejected is returned when the user declines the wallet
	// connection prompt.
	ErrConnectionRejected = errors.New("wallet connection rejected")

	// ErrUserRejected is returned when the user declines a signing prompt.
	// Retryable immediately at the user's discretion.
	ErrUserRejected = errors.New("user rejected signing request")

	// ErrNetworkFailure is returned for transient transport errors. The whole
	// step is safe to retry; an already-signed transaction is not safe to
	// resubmit blindly without checking confirmation first.
	ErrNetworkFailure = errors.New("network failure")

	// ErrBuildFailed is returned when the backend produced no transaction
	// payload for an intent. Not retryable with the same intent.
	ErrBuildFailed = errors.New("transaction build failed")

	// ErrSubmissionFailed is returned when a signed transaction could not be
	// submitted or was rejected by the ledger.
	ErrSubmissionFailed = errors.New("transaction submission failed")

	// ErrConfirmationTimeout is returned when a submitted transaction was not
	// observed as confirmed within the polling budget. The outcome is unknown,
	// not a failure: the transaction may still land.
	ErrConfirmationTimeout = errors.New("confirmation not observed within retry budget")

	// ErrHandshakeInProgress is returned when a second handshake is started
	// for an account whose first handshake has not resolved yet.
	ErrHandshakeInProgress = errors.New("handshake already in progress")

	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrNonceConsumed is returned when a nonce is verified a second time or
	// was never issued.
	ErrNonceConsumed = errors.New("nonce already consumed or unknown")

	// ErrNonceExpired is returned when a nonce is past its validity window.
	ErrNonceExpired = errors.New("nonce has expired")

	// ErrInvalidToken is returned when a session token is malformed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a session token has expired.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalidated is returned when a session token has been revoked.
	ErrTokenInvalidated = errors.New("token has been invalidated")
)
