package core

import "time"

// challengeMessagePrefix is the fixed prefix prepended to the nonce to form
// the exact byte sequence the wallet signs. Client and backend must agree on
// it byte for byte.
const challengeMessagePrefix = "Sign in to Walletgate\nNonce: "

// ChallengeMessage returns the exact message bytes to sign for a nonce.
func ChallengeMessage(nonce string) []byte {
	return []byte(challengeMessagePrefix + nonce)
}

// Challenge is a single-use authentication challenge bound to an address.
// It is invalidated after one verify attempt or on expiry, whichever first.
type Challenge struct {
	ID        string    // Unique identifier for the challenge
	Address   string    // Base58 address the nonce is bound to
	Nonce     string    // Random nonce to be signed
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Expired reports whether the challenge is past its validity window.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// LoginStatus is the lifecycle state of the application session.
type LoginStatus string

const (
	StatusIdle            LoginStatus = "idle"
	StatusLoading         LoginStatus = "loading"
	StatusAuthenticated   LoginStatus = "authenticated"
	StatusUnauthenticated LoginStatus = "unauthenticated"
)

// User is the backend's identity record for an authenticated wallet.
type User struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Session is the process-wide authentication state. Exactly one Session is
// live per application instance; only the authentication handshake and the
// logout path mutate it, everyone else reads snapshots.
type Session struct {
	ID          string      // Unique session identifier
	User        User        // Identity established by the backend
	Status      LoginStatus // Current lifecycle state
	AccessToken string      // Opaque credential issued by the backend
	IssuedAt    time.Time   // When the session was created
	ExpiresAt   time.Time   // When the access credential expires
}

// Authenticated reports whether the session carries an established identity.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// TokenInfo describes one token balance held by an address.
type TokenInfo struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
	Value    string `json:"value"`
}
