package campaign

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Repository defines the data access contract for campaigns and their
// messages. Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, ordered by created_at DESC,
	// with the total number of matches.
	List(ctx context.Context, tenantID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new draft campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// Delete removes a draft, paused or completed campaign and its messages.
	// Returns ErrInvalidCampaignState if the campaign is running.
	Delete(ctx context.Context, tenantID, id string) error

	// Transition moves a campaign from one status to another only if it is
	// currently in from. Returns ErrInvalidCampaignState otherwise.
	Transition(ctx context.Context, tenantID, id string, from, to domain.CampaignStatus, at time.Time) error

	// Materialize inserts the campaign's messages and moves it from draft to
	// running in one atomic step. Returns ErrInvalidCampaignState and writes
	// nothing if the campaign is no longer a draft.
	Materialize(ctx context.Context, tenantID, id string, msgs []domain.Message, at time.Time) error

	// ListMessages returns the campaign's messages ordered by position.
	ListMessages(ctx context.Context, campaignID string, filter MessageFilter) ([]domain.Message, int, error)

	// MarkDelivered records a delivery receipt on the sent message with the
	// given provider id and returns its campaign id. Returns
	// ErrMessageNotFound if no sent message carries that id.
	MarkDelivered(ctx context.Context, providerMessageID string, at time.Time) (string, error)
}

// ServiceCatalog looks up the tenant's bookable services.
type ServiceCatalog interface {
	// GetService returns ErrServiceNotFound if the service doesn't exist.
	GetService(ctx context.Context, tenantID, id string) (*domain.Service, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status domain.CampaignStatus
	Limit  int
	Offset int
}

// MessageFilter controls pagination and filtering for message lists.
type MessageFilter struct {
	Status domain.MessageStatus
	Limit  int
	Offset int
}
