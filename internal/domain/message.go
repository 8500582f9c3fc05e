package domain

import (
	"encoding/json"
	"time"
)

// MessageStatus enumerates the lifecycle of a single outbound message.
// The only transitions are pending -> sent and pending -> failed.
type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// Message is one per-recipient unit of a campaign. Content is rendered once,
// when the campaign is first started, and never re-rendered.
type Message struct {
	ID            string        `json:"id" db:"id"`
	CampaignID    string        `json:"campaign_id" db:"campaign_id"`
	Position      int           `json:"position" db:"position"`
	Phone         string        `json:"phone" db:"phone"`
	RecipientName string        `json:"recipient_name" db:"recipient_name"`
	Content       string        `json:"content" db:"content"`
	Status        MessageStatus `json:"status" db:"status"`

	SentAt            *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	ProviderMessageID string          `json:"provider_message_id,omitempty" db:"provider_message_id"`
	ProviderResponse  json.RawMessage `json:"provider_response,omitempty" db:"provider_response"`
	Error             string          `json:"error,omitempty" db:"error"`
	RetryCount        int             `json:"retry_count" db:"retry_count"`

	// Claim bookkeeping. A claim is only meaningful to the worker holding it.
	ClaimedBy string     `json:"-" db:"claimed_by"`
	ClaimedAt *time.Time `json:"-" db:"claimed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
