// Package sigverify checks detached ed25519 signatures produced by wallets.
//
// The verifier sits on the authentication path and therefore fails closed:
// any malformed input — bad base58, wrong key or signature length — is a
// verification failure, never a panic or an error. The boolean result is the
// only contract surface; failure reasons are logged for observability.
package sigverify

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

// Verifier validates that a purported signer produced a signature over an
// exact message. The zero-cost nop logger is used when log is nil.
type Verifier struct {
	log *zap.Logger
}

// New creates a Verifier. Pass nil to disable logging.
func New(log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{log: log}
}

// Verify reports whether signature is a valid detached ed25519 signature by
// address over exactly message. An empty message is valid input; the
// signature is then checked against empty bytes. Signature length mismatches
// are verification failures, not distinct errors, because callers uniformly
// react to "not authenticated".
func (v *Verifier) Verify(address string, signature, message []byte) bool {
	pub, err := base58.Decode(address)
	if err != nil {
		v.log.Debug("signature rejected: address is not base58",
			zap.String("address", address), zap.Error(err))
		return false
	}
	// ed25519.Verify panics on keys of the wrong size, so gate the length
	// before handing the key over.
	if len(pub) != ed25519.PublicKeySize {
		v.log.Debug("signature rejected: decoded address is not a 32-byte key",
			zap.String("address", address), zap.Int("len", len(pub)))
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		v.log.Debug("signature rejected: bad signature length",
			zap.String("address", address), zap.Int("len", len(signature)))
		return false
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, signature) {
		v.log.Debug("signature rejected: verification failed",
			zap.String("address", address))
		return false
	}
	return true
}
