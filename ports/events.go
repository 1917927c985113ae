package ports

import "context"

// EventPublisher publishes session and payment lifecycle events so other
// services and instances can react.
type EventPublisher interface {
	PublishLogin(ctx context.Context, address string, sessionID string) error
	PublishLogout(ctx context.Context, address string, tokenID string) error
	PublishPaymentConfirmed(ctx context.Context, address string, signature string) error
}
