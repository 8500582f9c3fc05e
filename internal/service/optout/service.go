package optout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Normalizer canonicalizes raw phone input.
type Normalizer interface {
	Normalize(raw string) (string, error)
}

// Service implements opt-out business logic. It is safe for concurrent use.
type Service struct {
	repo  Repository
	phone Normalizer
}

// NewService creates an opt-out service backed by the given repository.
func NewService(repo Repository, phone Normalizer) *Service {
	return &Service{repo: repo, phone: phone}
}

func (s *Service) normalize(raw string) (string, error) {
	p, err := s.phone.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return p, nil
}

// IsOptedOut checks whether a phone should be excluded from campaigns.
func (s *Service) IsOptedOut(ctx context.Context, tenantID, rawPhone string) (bool, error) {
	p, err := s.normalize(rawPhone)
	if err != nil {
		return false, err
	}
	return s.repo.IsOptedOut(ctx, tenantID, p)
}

// Add records an opt-out. Idempotent.
func (s *Service) Add(ctx context.Context, tenantID, rawPhone string, reason domain.OptOutReason, source domain.OptOutSource, campaignID string) (*domain.OptOut, error) {
	p, err := s.normalize(rawPhone)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = domain.OptOutManual
	}
	o := &domain.OptOut{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Phone:      p,
		Reason:     reason,
		Source:     source,
		CampaignID: campaignID,
	}
	if err := s.repo.Add(ctx, o); err != nil {
		return nil, fmt.Errorf("add opt-out: %w", err)
	}
	return o, nil
}

// Remove deletes an opt-out so the phone may be messaged again.
func (s *Service) Remove(ctx context.Context, tenantID, rawPhone string) error {
	p, err := s.normalize(rawPhone)
	if err != nil {
		return err
	}
	return s.repo.Remove(ctx, tenantID, p)
}

// List returns opt-outs matching the filter.
func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]domain.OptOut, int, error) {
	return s.repo.List(ctx, tenantID, f)
}

// PhoneSet returns the tenant's opted-out phones as a lookup set.
func (s *Service) PhoneSet(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	phones, err := s.repo.AllPhones(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(phones))
	for _, p := range phones {
		set[p] = struct{}{}
	}
	return set, nil
}
