package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository in memory.
type CampaignRepo struct{ s *Store }

func (r *CampaignRepo) Get(_ context.Context, tenantID, id string) (*domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return nil, campaign.ErrNotFound
	}
	return copyCampaign(c), nil
}

func (r *CampaignRepo) List(_ context.Context, tenantID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.s.campaigns {
		if c.TenantID != tenantID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, *copyCampaign(c))
	}
	sortCampaignsNewestFirst(out)
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r *CampaignRepo) Create(_ context.Context, c *domain.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == "" {
		return fmt.Errorf("id required")
	}
	if _, exists := r.s.campaigns[c.ID]; exists {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	r.s.campaigns[c.ID] = copyCampaign(c)
	return nil
}

func (r *CampaignRepo) Delete(_ context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return campaign.ErrNotFound
	}
	if !c.Deletable() {
		return fmt.Errorf("%w: cannot delete a %s campaign", campaign.ErrInvalidCampaignState, c.Status)
	}
	for _, m := range r.s.messages[id] {
		delete(r.s.byID, m.ID)
	}
	delete(r.s.messages, id)
	delete(r.s.campaigns, id)
	return nil
}

func (r *CampaignRepo) Transition(_ context.Context, tenantID, id string, from, to domain.CampaignStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return campaign.ErrNotFound
	}
	if c.Status != from {
		return fmt.Errorf("%w: campaign is %s, expected %s", campaign.ErrInvalidCampaignState, c.Status, from)
	}
	applyStatus(c, to, at)
	return nil
}

func applyStatus(c *domain.Campaign, to domain.CampaignStatus, at time.Time) {
	c.Status = to
	c.UpdatedAt = at
	switch to {
	case domain.CampaignRunning:
		if c.StartedAt == nil {
			c.StartedAt = &at
		}
	case domain.CampaignCompleted:
		c.CompletedAt = &at
	}
}

func (r *CampaignRepo) Materialize(_ context.Context, tenantID, id string, msgs []domain.Message, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignDraft {
		return fmt.Errorf("%w: campaign is %s, expected draft", campaign.ErrInvalidCampaignState, c.Status)
	}
	if len(r.s.messages[id]) > 0 {
		return fmt.Errorf("%w: campaign already has messages", campaign.ErrInvalidCampaignState)
	}

	phones := make(map[string]struct{}, len(msgs))
	stored := make([]*domain.Message, 0, len(msgs))
	for i := range msgs {
		if _, dup := phones[msgs[i].Phone]; dup {
			return fmt.Errorf("duplicate phone in campaign %s", id)
		}
		phones[msgs[i].Phone] = struct{}{}
		m := msgs[i]
		m.CampaignID = id
		stored = append(stored, &m)
	}

	r.s.messages[id] = stored
	for _, m := range stored {
		r.s.byID[m.ID] = m
	}
	applyStatus(c, domain.CampaignRunning, at)
	return nil
}

func (r *CampaignRepo) ListMessages(_ context.Context, campaignID string, f campaign.MessageFilter) ([]domain.Message, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Message
	for _, m := range r.s.messages[campaignID] {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		out = append(out, *m)
	}
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r *CampaignRepo) MarkDelivered(_ context.Context, providerMessageID string, at time.Time) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.byID {
		if m.ProviderMessageID != providerMessageID || m.Status != domain.MessageSent {
			continue
		}
		if m.DeliveredAt == nil {
			m.DeliveredAt = &at
		}
		return m.CampaignID, nil
	}
	return "", campaign.ErrMessageNotFound
}

// GetService implements campaign.ServiceCatalog.
func (r *CampaignRepo) GetService(_ context.Context, tenantID, id string) (*domain.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[id]
	if !ok || svc.TenantID != tenantID {
		return nil, campaign.ErrServiceNotFound
	}
	return &svc, nil
}
