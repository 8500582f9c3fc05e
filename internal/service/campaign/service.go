package campaign

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/messaging"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/recipient"
)

const maxNameLength = 200

// Resolver turns a campaign's targeting rule into recipients.
type Resolver interface {
	Resolve(ctx context.Context, c *domain.Campaign) ([]domain.Recipient, error)
}

// Renderer renders the campaign template for one recipient.
type Renderer interface {
	Validate(tpl string) error
	Render(cacheKey, tpl string, vars messaging.Vars) (string, error)
	Forget(cacheKey string)
}

// StatsAggregator recomputes a campaign's counters from its messages.
type StatsAggregator interface {
	Recompute(ctx context.Context, campaignID string) (domain.Stats, error)
}

// Dependencies are the collaborators of the campaign service.
type Dependencies struct {
	Resolver Resolver
	Renderer Renderer
	Catalog  ServiceCatalog
	Stats    StatsAggregator
	Now      func() time.Time
}

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo     Repository
	resolver Resolver
	renderer Renderer
	catalog  ServiceCatalog
	stats    StatsAggregator
	now      func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, d Dependencies) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		resolver: d.Resolver,
		renderer: d.Renderer,
		catalog:  d.Catalog,
		stats:    d.Stats,
		now:      now,
	}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name         string           `json:"name"`
	Template     string           `json:"template"`
	Targeting    string           `json:"targeting"`
	RecipientIDs []string         `json:"recipient_ids"`
	PeriodStart  *time.Time       `json:"period_start"`
	PeriodEnd    *time.Time       `json:"period_end"`
	ServiceID    string           `json:"service_id"`
	PromoPrice   *decimal.Decimal `json:"promo_price"`
	DelayMinutes float64          `json:"delay_minutes"`
}

// DelaySeconds converts a delay in minutes to whole seconds, rejecting
// anything under the minimum spacing.
func DelaySeconds(minutes float64) (int, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0, invalidInput("delay must be a number")
	}
	secs := math.Round(minutes * 60)
	if secs < domain.MinRecipientDelay.Seconds() {
		return 0, invalidInput("delay must be at least %.1f minutes", domain.MinRecipientDelay.Minutes())
	}
	if secs > math.MaxInt32 {
		return 0, invalidInput("delay is too large")
	}
	return int(secs), nil
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*domain.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidInput("name is required")
	}
	if len(name) > maxNameLength {
		return nil, invalidInput("name exceeds %d characters", maxNameLength)
	}
	if strings.TrimSpace(in.Template) == "" {
		return nil, invalidInput("template is required")
	}
	if err := s.renderer.Validate(in.Template); err != nil {
		return nil, err
	}
	delay, err := DelaySeconds(in.DelayMinutes)
	if err != nil {
		return nil, err
	}
	if in.PromoPrice != nil && in.PromoPrice.IsNegative() {
		return nil, invalidInput("promo price cannot be negative")
	}

	now := s.now().UTC()
	c := &domain.Campaign{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Name:         name,
		Template:     in.Template,
		Status:       domain.CampaignDraft,
		Targeting:    domain.TargetingRule(strings.ToLower(strings.TrimSpace(in.Targeting))),
		RecipientIDs: dedupe(in.RecipientIDs),
		PeriodStart:  in.PeriodStart,
		PeriodEnd:    in.PeriodEnd,
		PromoPrice:   in.PromoPrice,
		DelaySeconds: delay,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := recipient.Validate(c); err != nil {
		return nil, err
	}

	if id := strings.TrimSpace(in.ServiceID); id != "" && s.catalog != nil {
		if _, err := s.catalog.GetService(ctx, tenantID, id); err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				return nil, invalidInput("unknown service %q", id)
			}
			return nil, fmt.Errorf("lookup service: %w", err)
		}
		c.ServiceID = &id
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	logger.Info("campaign created", "tenant_id", tenantID, "campaign_id", c.ID, "targeting", string(c.Targeting))
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]domain.Campaign, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, invalidInput("unknown status %q", f.Status)
	}
	return s.repo.List(ctx, tenantID, f)
}

// Start moves a draft or paused campaign to running. Starting a draft
// resolves its recipients once and materializes one pending Message per
// recipient; starting a paused campaign reuses the existing messages.
func (s *Service) Start(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case domain.CampaignDraft:
		if err := s.materialize(ctx, c); err != nil {
			return nil, err
		}
	case domain.CampaignPaused:
		if err := s.repo.Transition(ctx, tenantID, id, domain.CampaignPaused, domain.CampaignRunning, s.now().UTC()); err != nil {
			return nil, err
		}
		logger.Info("campaign resumed", "tenant_id", tenantID, "campaign_id", id)
	default:
		return nil, invalidState("start", c.Status)
	}

	return s.repo.Get(ctx, tenantID, id)
}

// Resume continues a paused campaign from where it stopped.
func (s *Service) Resume(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignPaused {
		return nil, invalidState("resume", c.Status)
	}
	return s.Start(ctx, tenantID, id)
}

// Pause stops a running campaign. A send already in flight finishes and
// records its outcome; no further message is claimed.
func (s *Service) Pause(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignRunning {
		return nil, invalidState("pause", c.Status)
	}
	if err := s.repo.Transition(ctx, tenantID, id, domain.CampaignRunning, domain.CampaignPaused, s.now().UTC()); err != nil {
		return nil, err
	}
	logger.Info("campaign paused", "tenant_id", tenantID, "campaign_id", id)
	return s.repo.Get(ctx, tenantID, id)
}

// Delete removes a campaign that is not running, with all its messages.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	c, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !c.Deletable() {
		return invalidState("delete", c.Status)
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.renderer.Forget(id)
	logger.Info("campaign deleted", "tenant_id", tenantID, "campaign_id", id)
	return nil
}

// Stats recomputes and returns the campaign's counters.
func (s *Service) Stats(ctx context.Context, tenantID, id string) (domain.Stats, error) {
	if _, err := s.repo.Get(ctx, tenantID, id); err != nil {
		return domain.Stats{}, err
	}
	return s.stats.Recompute(ctx, id)
}

// Messages lists a campaign's messages, including error text for failed
// ones.
func (s *Service) Messages(ctx context.Context, tenantID, id string, f MessageFilter) ([]domain.Message, int, error) {
	if _, err := s.repo.Get(ctx, tenantID, id); err != nil {
		return nil, 0, err
	}
	switch f.Status {
	case "", domain.MessagePending, domain.MessageSent, domain.MessageFailed:
	default:
		return nil, 0, invalidInput("unknown message status %q", f.Status)
	}
	return s.repo.ListMessages(ctx, id, f)
}

// RecordDelivery applies a delivery receipt to the sent message it refers
// to and refreshes the campaign's counters.
func (s *Service) RecordDelivery(ctx context.Context, providerMessageID string, at time.Time) error {
	if providerMessageID == "" {
		return invalidInput("message id is required")
	}
	if at.IsZero() {
		at = s.now()
	}
	campaignID, err := s.repo.MarkDelivered(ctx, providerMessageID, at.UTC())
	if err != nil {
		return err
	}
	if _, err := s.stats.Recompute(ctx, campaignID); err != nil {
		return fmt.Errorf("recompute stats: %w", err)
	}
	return nil
}

func (s *Service) materialize(ctx context.Context, c *domain.Campaign) error {
	recipients, err := s.resolver.Resolve(ctx, c)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if len(recipients) == 0 {
		if err := s.repo.Transition(ctx, c.TenantID, c.ID, domain.CampaignDraft, domain.CampaignCompleted, now); err != nil {
			return err
		}
		logger.Info("campaign completed with no recipients", "tenant_id", c.TenantID, "campaign_id", c.ID)
		return nil
	}

	serviceName, err := s.serviceName(ctx, c)
	if err != nil {
		return err
	}

	defer s.renderer.Forget(c.ID)
	msgs := make([]domain.Message, 0, len(recipients))
	for i, r := range recipients {
		content, err := s.renderer.Render(c.ID, c.Template, messaging.Vars{
			Name:    r.Name,
			Service: serviceName,
			Price:   c.PromoPrice,
		})
		if err != nil {
			if !errors.Is(err, ErrInvalidTemplate) {
				err = fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
			}
			return fmt.Errorf("render message for customer %s: %w", r.CustomerID, err)
		}
		msgs = append(msgs, domain.Message{
			ID:            uuid.NewString(),
			CampaignID:    c.ID,
			Position:      i,
			Phone:         r.Phone,
			RecipientName: r.Name,
			Content:       content,
			Status:        domain.MessagePending,
			CreatedAt:     now,
		})
	}

	if err := s.repo.Materialize(ctx, c.TenantID, c.ID, msgs, now); err != nil {
		return err
	}
	if _, err := s.stats.Recompute(ctx, c.ID); err != nil {
		logger.Warn("stats recompute after start failed", "campaign_id", c.ID, "error", err)
	}

	logger.Info("campaign started", "tenant_id", c.TenantID, "campaign_id", c.ID, "messages", len(msgs))
	return nil
}

// serviceName returns the linked service's name, or "" when the campaign
// has none or it has since been removed.
func (s *Service) serviceName(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ServiceID == nil || s.catalog == nil {
		return "", nil
	}
	svc, err := s.catalog.GetService(ctx, c.TenantID, *c.ServiceID)
	if errors.Is(err, ErrServiceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup service: %w", err)
	}
	return svc.Name, nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
