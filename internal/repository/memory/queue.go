package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

// QueueRepo implements the dispatch worker's store and the statistics
// repository in memory.
type QueueRepo struct{ s *Store }

func (q *QueueRepo) ListRunning(_ context.Context) ([]domain.Campaign, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range q.s.campaigns {
		if c.Status == domain.CampaignRunning {
			out = append(out, *copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (q *QueueRepo) CountPending(_ context.Context, campaignID string) (int, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	return q.s.pending(campaignID), nil
}

// ClaimNext claims the lowest-position pending message of a running,
// paced campaign if it is unclaimed or its claim went stale. Returns nil
// when nothing is claimable.
func (q *QueueRepo) ClaimNext(_ context.Context, cl worker.Claim) (*domain.Message, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.campaigns[cl.CampaignID]
	if !ok || c.Status != domain.CampaignRunning {
		return nil, nil
	}
	if c.LastDispatchedAt != nil && c.LastDispatchedAt.After(cl.PacedBefore) {
		return nil, nil
	}
	for _, m := range q.s.messages[cl.CampaignID] {
		if m.Status != domain.MessagePending {
			continue
		}
		if m.ClaimedBy != "" && m.ClaimedAt != nil && !m.ClaimedAt.Before(cl.StaleBefore) {
			// oldest pending is held by a live claim; never skip ahead of it
			return nil, nil
		}
		at := cl.ClaimedAt
		m.ClaimedBy = cl.WorkerID
		m.ClaimedAt = &at
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (q *QueueRepo) owned(messageID, workerID string) (*domain.Message, bool) {
	m, ok := q.s.byID[messageID]
	if !ok || m.Status != domain.MessagePending || m.ClaimedBy != workerID {
		return nil, false
	}
	return m, true
}

func (q *QueueRepo) MarkSent(_ context.Context, messageID, workerID string, at time.Time, providerID string, payload json.RawMessage) (bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	m, ok := q.owned(messageID, workerID)
	if !ok {
		return false, nil
	}
	if c, ok := q.s.campaigns[m.CampaignID]; ok && m.ClaimedAt != nil {
		dispatched := *m.ClaimedAt
		c.LastDispatchedAt = &dispatched
	}
	m.Status = domain.MessageSent
	m.SentAt = &at
	m.ProviderMessageID = providerID
	m.ProviderResponse = payload
	m.Error = ""
	m.ClaimedBy, m.ClaimedAt = "", nil
	return true, nil
}

func (q *QueueRepo) MarkFailed(_ context.Context, messageID, workerID, errText string, retryCount int, payload json.RawMessage) (bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	m, ok := q.owned(messageID, workerID)
	if !ok {
		return false, nil
	}
	m.Status = domain.MessageFailed
	m.Error = errText
	m.RetryCount = retryCount
	if payload != nil {
		m.ProviderResponse = payload
	}
	m.ClaimedBy, m.ClaimedAt = "", nil
	return true, nil
}

func (q *QueueRepo) Release(_ context.Context, messageID, workerID string, retryCount int, errText string) (bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	m, ok := q.owned(messageID, workerID)
	if !ok {
		return false, nil
	}
	m.RetryCount = retryCount
	m.Error = errText
	m.ClaimedBy, m.ClaimedAt = "", nil
	return true, nil
}

// Complete moves a running campaign with no pending messages to completed.
func (q *QueueRepo) Complete(_ context.Context, campaignID string, at time.Time) (bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.campaigns[campaignID]
	if !ok || c.Status != domain.CampaignRunning || q.s.pending(campaignID) > 0 {
		return false, nil
	}
	applyStatus(c, domain.CampaignCompleted, at)
	return true, nil
}

func (q *QueueRepo) ReleaseStale(_ context.Context, staleBefore time.Time) (int, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	n := 0
	for _, m := range q.s.byID {
		if m.Status == domain.MessagePending && m.ClaimedBy != "" && m.ClaimedAt != nil && m.ClaimedAt.Before(staleBefore) {
			m.ClaimedBy, m.ClaimedAt = "", nil
			n++
		}
	}
	return n, nil
}

func (q *QueueRepo) Report(_ context.Context, campaignID string) (*domain.Campaign, []domain.Message, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.campaigns[campaignID]
	if !ok {
		return nil, nil, fmt.Errorf("campaign %s not found", campaignID)
	}
	msgs := make([]domain.Message, 0, len(q.s.messages[campaignID]))
	for _, m := range q.s.messages[campaignID] {
		msgs = append(msgs, *m)
	}
	return copyCampaign(c), msgs, nil
}

func (q *QueueRepo) CountByStatus(_ context.Context, campaignID string) (domain.Stats, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var st domain.Stats
	for _, m := range q.s.messages[campaignID] {
		st.Total++
		switch m.Status {
		case domain.MessagePending:
			st.Queued++
		case domain.MessageSent:
			st.Sent++
			if m.DeliveredAt != nil {
				st.Delivered++
			}
		case domain.MessageFailed:
			st.Failed++
		}
	}
	return st, nil
}

func (q *QueueRepo) SaveStats(_ context.Context, campaignID string, st domain.Stats) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.campaigns[campaignID]
	if !ok {
		return nil
	}
	c.SentCount = st.Sent
	c.DeliveredCount = st.Delivered
	c.FailedCount = st.Failed
	c.QueuedCount = st.Queued
	return nil
}
