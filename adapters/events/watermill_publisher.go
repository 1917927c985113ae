package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/courseledger/walletgate/ports"
)

// LoginEvent represents a successful wallet login
type LoginEvent struct {
	Address   string `json:"address"`
	SessionID string `json:"session_id"`
}

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address string `json:"address"`
	TokenID string `json:"token_id"`
}

// PaymentConfirmedEvent represents a payment confirmed on chain
type PaymentConfirmedEvent struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher    message.Publisher
	loginTopic   string
	logoutTopic  string
	paymentTopic string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher:    publisher,
		loginTopic:   "walletgate.login",
		logoutTopic:  "walletgate.logout",
		paymentTopic: "walletgate.payment.confirmed",
	}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, address string, sessionID string) error {
	return p.publish(p.loginTopic, sessionID, LoginEvent{
		Address:   address,
		SessionID: sessionID,
	})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, tokenID string) error {
	return p.publish(p.logoutTopic, tokenID, LogoutEvent{
		Address: address,
		TokenID: tokenID,
	})
}

// PublishPaymentConfirmed publishes a payment confirmation event keyed by the
// transaction signature.
func (p *WatermillPublisher) PublishPaymentConfirmed(ctx context.Context, address string, signature string) error {
	return p.publish(p.paymentTopic, uuid.NewString(), PaymentConfirmedEvent{
		Address:   address,
		Signature: signature,
	})
}

func (p *WatermillPublisher) publish(topic string, messageID string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(messageID, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
