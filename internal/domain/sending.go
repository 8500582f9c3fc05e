package domain

import (
	"encoding/json"
	"time"
)

// FailureClass tells the dispatcher whether a failed send may be retried.
// The gateway decides; the dispatcher never inspects error text.
type FailureClass string

const (
	FailurePermanent FailureClass = "permanent"
	FailureTransient FailureClass = "transient"
)

// SendResult is returned by a gateway after it obtained a definitive answer
// from the provider.
type SendResult struct {
	Success           bool            `json:"success"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	Error             string          `json:"error,omitempty"`
	Class             FailureClass    `json:"class,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// Retryable reports whether a non-successful result should be retried. Only
// an explicit permanent class stops retries; an unclassified failure is
// treated as transient.
func (r *SendResult) Retryable() bool {
	return !r.Success && r.Class != FailurePermanent
}

// DeliveryStatus is the state reported by a provider delivery receipt.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryOptOut    DeliveryStatus = "opt_out"
)

// DeliveryEvent is an asynchronous receipt pushed by the gateway provider.
type DeliveryEvent struct {
	ProviderMessageID string         `json:"message_id"`
	Status            DeliveryStatus `json:"status"`
	Phone             string         `json:"phone,omitempty"`
	TenantID          string         `json:"tenant_id,omitempty"`
	OccurredAt        time.Time      `json:"timestamp"`
}
