package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Claim describes one attempt to take the next message of a campaign.
type Claim struct {
	CampaignID string
	WorkerID   string
	ClaimedAt  time.Time
	// StaleBefore: claims older than this are considered abandoned.
	StaleBefore time.Time
	// PacedBefore: the claim only succeeds if the campaign's last dispatch
	// happened at or before this instant (or never).
	PacedBefore time.Time
}

// Store is the durable message queue the dispatcher works against.
// Every outcome write is conditional on the message still being pending
// and claimed by the caller; the boolean result reports whether it applied.
type Store interface {
	ListRunning(ctx context.Context) ([]domain.Campaign, error)
	CountPending(ctx context.Context, campaignID string) (int, error)

	// ClaimNext claims the lowest-position pending message of a running
	// campaign. Returns nil, nil when nothing is claimable.
	ClaimNext(ctx context.Context, c Claim) (*domain.Message, error)

	// MarkSent records a successful send and, in the same write, advances
	// the campaign's pacing cursor to the message's claim time.
	MarkSent(ctx context.Context, messageID, workerID string, at time.Time, providerID string, payload json.RawMessage) (bool, error)
	MarkFailed(ctx context.Context, messageID, workerID, errText string, retryCount int, payload json.RawMessage) (bool, error)
	Release(ctx context.Context, messageID, workerID string, retryCount int, errText string) (bool, error)

	// Complete moves a running campaign with no pending messages to
	// completed. Returns false if the campaign was not eligible.
	Complete(ctx context.Context, campaignID string, at time.Time) (bool, error)

	// ReleaseStale clears claims older than staleBefore.
	ReleaseStale(ctx context.Context, staleBefore time.Time) (int, error)

	// Report returns the campaign and all its messages for archiving.
	Report(ctx context.Context, campaignID string) (*domain.Campaign, []domain.Message, error)
}

// StatsAggregator recomputes a campaign's counters from its messages.
type StatsAggregator interface {
	Recompute(ctx context.Context, campaignID string) (domain.Stats, error)
}
