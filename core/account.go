package core

// Capability identifies one operation a wallet may support. Wallets are
// discovered at runtime with inconsistent feature sets, so every signer
// resolution is gated on an explicit capability check instead of assuming a
// method exists.
type Capability string

const (
	CapabilityConnect         Capability = "connect"
	CapabilityDisconnect      Capability = "disconnect"
	CapabilitySignMessage     Capability = "sign-message"
	CapabilitySignTransaction Capability = "sign-transaction"
)

// WalletDescriptor identifies an available wallet implementation.
type WalletDescriptor struct {
	ID   string // Stable identifier used to look the wallet up again
	Name string // Human-readable wallet name
}

// WalletAccount is a connected account as reported by a wallet. The
// application only ever holds a read reference: the account is looked up by
// address and never mutated here.
type WalletAccount struct {
	Address      string       // Base58-encoded ed25519 public key
	WalletID     string       // Descriptor ID of the wallet that produced it
	Capabilities []Capability // Capability set advertised at connect time
}

// HasCapability reports whether the account's wallet advertised the given
// capability when it connected. Capability sets can change after reconnect,
// so long-lived callers should re-resolve through the negotiator instead of
// relying on a cached account.
func (a WalletAccount) HasCapability(c Capability) bool {
	for _, have := range a.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
