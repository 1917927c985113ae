package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/courseledger/walletgate/core"
	"github.com/courseledger/walletgate/ports"
	"github.com/courseledger/walletgate/sigverify"
)

// userNamespace derives stable user IDs from wallet addresses, so the same
// wallet maps to the same user across logins and instances.
var userNamespace = uuid.MustParse("9f1c1d3e-4b1a-4bfb-9f44-0c6a4de1c9aa")

// AuthService handles wallet authentication business logic
type AuthService struct {
	verifier  *sigverify.Verifier
	tokenizer ports.Tokenizer
	store     ports.Store
	eventPub  ports.EventPublisher
	log       *zap.Logger

	challengeTTL time.Duration
	accessTTL    time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	verifier *sigverify.Verifier,
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		verifier:     verifier,
		tokenizer:    tokenizer,
		store:        store,
		eventPub:     eventPub,
		log:          log,
		challengeTTL: 5 * time.Minute,
		accessTTL:    1 * time.Hour,
	}
}

// CreateNonce generates a new single-use authentication challenge bound to
// the given address and returns the nonce the wallet must sign.
func (s *AuthService) CreateNonce(ctx context.Context, address string) (*core.Challenge, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required: %w", core.ErrInvalidInput)
	}

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Address:   address,
		Nonce:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
	}

	if err := s.store.PutNonce(ctx, challenge, s.challengeTTL); err != nil {
		return nil, fmt.Errorf("failed to store nonce: %w", err)
	}

	return challenge, nil
}

// VerifyLogin consumes the nonce, verifies the signature over the challenge
// message and issues an access token. The nonce is burned by this call even
// when verification fails, so a failed attempt requires a fresh challenge.
func (s *AuthService) VerifyLogin(ctx context.Context, address, nonce string, signature []byte) (*core.Session, error) {
	challenge, err := s.store.ConsumeNonce(ctx, nonce)
	if err != nil {
		return nil, err
	}

	if challenge.Address != address {
		s.log.Warn("nonce address mismatch", zap.String("address", address))
		return nil, core.ErrInvalidSignature
	}

	if !s.verifier.Verify(address, signature, core.ChallengeMessage(nonce)) {
		return nil, core.ErrInvalidSignature
	}

	now := time.Now()
	session := &core.Session{
		ID: uuid.New().String(),
		User: core.User{
			ID:      uuid.NewSHA1(userNamespace, []byte(address)).String(),
			Address: address,
		},
		Status:    core.StatusAuthenticated,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.accessTTL),
	}

	accessToken, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	session.AccessToken = accessToken

	if err := s.eventPub.PublishLogin(ctx, address, session.ID); err != nil {
		// The session is already established; cross-instance notification is
		// best effort.
		s.log.Warn("failed to publish login event", zap.Error(err))
	}

	return session, nil
}

// Logout invalidates an access token for the remainder of its lifetime.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	session, err := s.tokenizer.TokenToSession(accessToken)
	if err != nil {
		return fmt.Errorf("invalid access token: %w", err)
	}

	// Even if the token is expired, we still want to record the
	// invalidation so it can't be replayed on a skewed clock.
	remainingTime := time.Until(session.ExpiresAt)
	if remainingTime <= 0 {
		remainingTime = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.ID, remainingTime); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.User.Address, session.ID); err != nil {
		// The token is already invalidated in the store, which is the
		// critical part.
		s.log.Warn("failed to publish logout event", zap.Error(err))
	}

	return nil
}

// ValidateAccessToken parses and validates an access token, checking both
// its signature and the invalidation list.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	return session, nil
}
