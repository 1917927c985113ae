package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are the JWT claims carried by an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}
