package ports

import "github.com/courseledger/walletgate/core"

// Tokenizer converts sessions to and from signed access tokens.
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
