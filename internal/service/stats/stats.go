// Package stats derives campaign counters from message records.
//
// Counters are never incremented in place. Every recompute counts the
// Message records and overwrites the cached values on the campaign, so the
// operation is idempotent and converges after any partial failure.
package stats

import (
	"context"
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Repository counts messages and persists the counter cache.
type Repository interface {
	// CountByStatus counts the campaign's messages. Delivered counts sent
	// messages that carry a delivery receipt.
	CountByStatus(ctx context.Context, campaignID string) (domain.Stats, error)

	// SaveStats overwrites the campaign's cached counters.
	SaveStats(ctx context.Context, campaignID string, s domain.Stats) error
}

// Aggregator recomputes campaign statistics.
type Aggregator struct {
	repo Repository
}

// NewAggregator creates an aggregator backed by repo.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Recompute counts the campaign's messages and stores the result.
func (a *Aggregator) Recompute(ctx context.Context, campaignID string) (domain.Stats, error) {
	s, err := a.repo.CountByStatus(ctx, campaignID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count messages: %w", err)
	}
	if s.Sent+s.Failed+s.Queued != s.Total {
		return domain.Stats{}, fmt.Errorf("inconsistent counts for campaign %s: %+v", campaignID, s)
	}
	if err := a.repo.SaveStats(ctx, campaignID, s); err != nil {
		return domain.Stats{}, fmt.Errorf("save stats: %w", err)
	}
	return s, nil
}
