package domain

import "time"

// OptOutReason enumerates why a phone was excluded from campaigns.
type OptOutReason string

const (
	OptOutReplyStop    OptOutReason = "reply_stop"
	OptOutManual       OptOutReason = "manual"
	OptOutGatewayBlock OptOutReason = "gateway_block"
)

// OptOutSource indicates where the opt-out signal originated.
type OptOutSource string

const (
	OptOutSourceWebhook OptOutSource = "gateway_webhook"
	OptOutSourceAPI     OptOutSource = "api"
)

// OptOut is a phone a tenant must not message again.
type OptOut struct {
	ID         string       `json:"id" db:"id"`
	TenantID   string       `json:"tenant_id" db:"tenant_id"`
	Phone      string       `json:"phone" db:"phone"`
	Reason     OptOutReason `json:"reason" db:"reason"`
	Source     OptOutSource `json:"source" db:"source"`
	CampaignID string       `json:"campaign_id,omitempty" db:"campaign_id"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}
