package worker

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/storage"
)

// completer finishes drained campaigns and archives their reports. It is
// shared by the dispatcher and the recovery loop.
type completer struct {
	store   Store
	stats   StatsAggregator
	archive storage.Archive
	metrics *Metrics
}

// completeIfDrained moves the campaign to completed when no pending message
// remains. Archive failures are logged and never block completion.
func (c *completer) completeIfDrained(ctx context.Context, campaignID string, at time.Time) bool {
	done, err := c.store.Complete(ctx, campaignID, at)
	if err != nil {
		logger.Error("complete campaign failed", "campaign_id", campaignID, "error", err)
		return false
	}
	if !done {
		return false
	}
	c.metrics.Completed.Inc()

	st, err := c.stats.Recompute(ctx, campaignID)
	if err != nil {
		// the report would carry stats that disagree with its messages
		logger.Warn("stats recompute on completion failed, report not archived", "campaign_id", campaignID, "error", err)
		return true
	}
	logger.Info("campaign completed", "campaign_id", campaignID,
		"sent", st.Sent, "failed", st.Failed, "total", st.Total)

	if c.archive != nil {
		c.archiveReport(ctx, campaignID, st, at)
	}
	return true
}

func (c *completer) archiveReport(ctx context.Context, campaignID string, st domain.Stats, at time.Time) {
	camp, msgs, err := c.store.Report(ctx, campaignID)
	if err != nil {
		logger.Warn("load campaign report failed", "campaign_id", campaignID, "error", err)
		return
	}
	report := &storage.Report{
		Campaign:    *camp,
		Stats:       st,
		Messages:    msgs,
		GeneratedAt: at,
	}
	if err := c.archive.SaveReport(ctx, report); err != nil {
		logger.Warn("archive campaign report failed", "campaign_id", campaignID, "error", err)
		return
	}
	logger.Info("campaign report archived", "campaign_id", campaignID, "key", storage.ReportKey(camp.TenantID, camp.ID))
}
