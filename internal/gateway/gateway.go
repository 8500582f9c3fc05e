// Package gateway sends individual WhatsApp messages through an external
// provider.
//
// A Sender returns an error only for transport failures (no definitive
// answer from the provider). When the provider answers, the outcome is a
// SendResult whose Class tells the dispatcher whether the failure may be
// retried. Callers never inspect error text.
package gateway

import (
	"context"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Sender delivers one message to one phone.
type Sender interface {
	Send(ctx context.Context, phone, content string) (*domain.SendResult, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, phone, content string) (*domain.SendResult, error)

func (f SenderFunc) Send(ctx context.Context, phone, content string) (*domain.SendResult, error) {
	return f(ctx, phone, content)
}

// Limiter gates sends across every campaign and process. Allow consumes one
// slot when it returns true.
type Limiter interface {
	Allow(ctx context.Context) (bool, error)
}

// Unlimited is a Limiter that never denies.
type Unlimited struct{}

func (Unlimited) Allow(context.Context) (bool, error) { return true, nil }
