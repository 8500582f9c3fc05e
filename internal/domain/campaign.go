package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Valid reports whether s is one of the known campaign states.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignRunning, CampaignPaused, CampaignCompleted:
		return true
	}
	return false
}

// TargetingRule selects which customers of a tenant receive a campaign.
type TargetingRule string

const (
	TargetAll        TargetingRule = "all"
	TargetIndividual TargetingRule = "individual"
	TargetPeriod     TargetingRule = "period"
)

// MinRecipientDelay is the smallest allowed spacing between two sends of the
// same campaign.
const MinRecipientDelay = 30 * time.Second

// Campaign is a bulk WhatsApp messaging job owned by a tenant.
type Campaign struct {
	ID       string         `json:"id" db:"id"`
	TenantID string         `json:"tenant_id" db:"tenant_id"`
	Name     string         `json:"name" db:"name"`
	Template string         `json:"template" db:"template"`
	Status   CampaignStatus `json:"status" db:"status"`

	Targeting    TargetingRule `json:"targeting" db:"targeting"`
	RecipientIDs []string      `json:"recipient_ids,omitempty" db:"recipient_ids"`
	PeriodStart  *time.Time    `json:"period_start,omitempty" db:"period_start"`
	PeriodEnd    *time.Time    `json:"period_end,omitempty" db:"period_end"`

	ServiceID  *string          `json:"service_id,omitempty" db:"service_id"`
	PromoPrice *decimal.Decimal `json:"promo_price,omitempty" db:"promo_price"`

	// DelaySeconds is the minimum spacing between two consecutive sends.
	DelaySeconds int `json:"delay_seconds" db:"delay_seconds"`

	// Counters are a cache of the message records, rewritten by the
	// statistics aggregator. Never increment them directly.
	SentCount      int `json:"sent_count" db:"sent_count"`
	DeliveredCount int `json:"delivered_count" db:"delivered_count"`
	FailedCount    int `json:"failed_count" db:"failed_count"`
	QueuedCount    int `json:"queued_count" db:"queued_count"`

	LastDispatchedAt *time.Time `json:"last_dispatched_at,omitempty" db:"last_dispatched_at"`
	StartedAt        *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Delay returns the per-recipient pacing interval.
func (c *Campaign) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// Deletable returns true if the campaign may be removed in its current state.
func (c *Campaign) Deletable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignPaused || c.Status == CampaignCompleted
}

// PaceElapsed reports whether a new send is allowed at the given instant.
func (c *Campaign) PaceElapsed(at time.Time) bool {
	if c.LastDispatchedAt == nil {
		return true
	}
	return at.Sub(*c.LastDispatchedAt) >= c.Delay()
}

// Stats are the campaign counters derived from its message records.
// Sent + Failed + Queued always equals Total; Delivered is a subset of Sent.
type Stats struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Queued    int `json:"queued"`
	Total     int `json:"total"`
}
