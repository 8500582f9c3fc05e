package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

// QueueRepo implements worker.Store and stats.Repository against
// PostgreSQL. Every outcome write is conditional on the message still being
// pending and claimed by the caller.
type QueueRepo struct{ db *sql.DB }

// NewQueueRepo creates a Postgres-backed dispatch queue.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

func (q *QueueRepo) ListRunning(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE status = 'running' ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list running campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (q *QueueRepo) CountPending(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_messages WHERE campaign_id = $1 AND status = 'pending'`,
		campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// ClaimNext locks the lowest-position pending message and claims it if it
// is unclaimed or its claim is stale, the campaign is running, and the
// campaign's pacing window has elapsed. The head row is locked without
// SKIP LOCKED so a busy head is never skipped in favor of a later message.
func (q *QueueRepo) ClaimNext(ctx context.Context, cl worker.Claim) (*domain.Message, error) {
	m, err := scanMessage(q.db.QueryRowContext(ctx, `
		WITH head AS (
			SELECT id FROM campaign_messages
			WHERE campaign_id = $1 AND status = 'pending'
			ORDER BY position
			LIMIT 1
			FOR UPDATE
		)
		UPDATE campaign_messages m
		SET claimed_by = $2, claimed_at = $3
		FROM head, campaigns c
		WHERE m.id = head.id
		  AND c.id = m.campaign_id
		  AND c.status = 'running'
		  AND (c.last_dispatched_at IS NULL OR c.last_dispatched_at <= $5)
		  AND (m.claimed_by IS NULL OR m.claimed_at < $4)
		RETURNING `+messageColumns("m."),
		cl.CampaignID, cl.WorkerID, cl.ClaimedAt, cl.StaleBefore, cl.PacedBefore))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim message: %w", err)
	}
	return m, nil
}

// MarkSent records the send and advances the campaign's pacing cursor to
// the claim time in one transaction.
func (q *QueueRepo) MarkSent(ctx context.Context, messageID, workerID string, at time.Time, providerID string, payload json.RawMessage) (bool, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		campaignID string
		claimedAt  time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT campaign_id, claimed_at FROM campaign_messages
		WHERE id = $1 AND claimed_by = $2 AND status = 'pending'
		FOR UPDATE
	`, messageID, workerID).Scan(&campaignID, &claimedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE campaign_messages
		SET status = 'sent', sent_at = $2, provider_message_id = NULLIF($3, ''),
		    provider_response = $4, error = NULL, claimed_by = NULL, claimed_at = NULL
		WHERE id = $1
	`, messageID, at, providerID, nullJSON(payload)); err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE campaigns SET last_dispatched_at = $2, updated_at = $3 WHERE id = $1`,
		campaignID, claimedAt, at); err != nil {
		return false, fmt.Errorf("advance pacing cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (q *QueueRepo) MarkFailed(ctx context.Context, messageID, workerID, errText string, retryCount int, payload json.RawMessage) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE campaign_messages
		SET status = 'failed', error = $3, retry_count = $4,
		    provider_response = COALESCE($5, provider_response),
		    claimed_by = NULL, claimed_at = NULL
		WHERE id = $1 AND claimed_by = $2 AND status = 'pending'
	`, messageID, workerID, errText, retryCount, nullJSON(payload))
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (q *QueueRepo) Release(ctx context.Context, messageID, workerID string, retryCount int, errText string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE campaign_messages
		SET retry_count = $3, error = $4, claimed_by = NULL, claimed_at = NULL
		WHERE id = $1 AND claimed_by = $2 AND status = 'pending'
	`, messageID, workerID, retryCount, errText)
	if err != nil {
		return false, fmt.Errorf("release message: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (q *QueueRepo) Complete(ctx context.Context, campaignID string, at time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'completed', completed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'running'
		  AND NOT EXISTS (
			SELECT 1 FROM campaign_messages
			WHERE campaign_id = $1 AND status = 'pending'
		  )
	`, campaignID, at)
	if err != nil {
		return false, fmt.Errorf("complete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (q *QueueRepo) ReleaseStale(ctx context.Context, staleBefore time.Time) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE campaign_messages
		SET claimed_by = NULL, claimed_at = NULL
		WHERE status = 'pending' AND claimed_by IS NOT NULL AND claimed_at < $1
	`, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (q *QueueRepo) Report(ctx context.Context, campaignID string) (*domain.Campaign, []domain.Message, error) {
	c, err := scanCampaign(q.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, campaignID))
	if err != nil {
		return nil, nil, fmt.Errorf("load campaign: %w", err)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+messageColumns("")+` FROM campaign_messages WHERE campaign_id = $1 ORDER BY position`, campaignID)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return c, msgs, rows.Err()
}

func (q *QueueRepo) CountByStatus(ctx context.Context, campaignID string) (domain.Stats, error) {
	var s domain.Stats
	err := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'sent' AND delivered_at IS NOT NULL),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*)
		FROM campaign_messages
		WHERE campaign_id = $1
	`, campaignID).Scan(&s.Sent, &s.Delivered, &s.Failed, &s.Queued, &s.Total)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count messages: %w", err)
	}
	return s, nil
}

func (q *QueueRepo) SaveStats(ctx context.Context, campaignID string, s domain.Stats) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE campaigns
		SET sent_count = $2, delivered_count = $3, failed_count = $4, queued_count = $5
		WHERE id = $1
	`, campaignID, s.Sent, s.Delivered, s.Failed, s.Queued)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// nullJSON passes a payload as text so lib/pq does not encode it as bytea.
func nullJSON(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
