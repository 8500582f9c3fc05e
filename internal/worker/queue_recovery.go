package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/storage"
)

// =============================================================================
// QUEUE RECOVERY WORKER
// =============================================================================
// If a dispatcher dies between claiming a message and recording its outcome,
// the message stays claimed and blocks its campaign, since claims never skip
// ahead of the oldest pending message. This worker periodically clears
// claims older than the stale age so the next tick can take them again, and
// completes running campaigns whose queue has drained.

const (
	// DefaultRecoveryInterval is how often we scan for stuck claims.
	DefaultRecoveryInterval = time.Minute

	recoveryQueryTimeout = 30 * time.Second
)

// QueueRecoveryWorker releases stale claims and finishes drained campaigns.
type QueueRecoveryWorker struct {
	store    Store
	interval time.Duration
	staleAge time.Duration
	now      func() time.Time
	*completer
}

// NewQueueRecoveryWorker creates a recovery worker. Zero durations fall back
// to the defaults.
func NewQueueRecoveryWorker(store Store, stats StatsAggregator, interval, staleAge time.Duration) *QueueRecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultClaimStaleAfter
	}
	return &QueueRecoveryWorker{
		store:    store,
		interval: interval,
		staleAge: staleAge,
		now:      time.Now,
		completer: &completer{
			store:   store,
			stats:   stats,
			metrics: NewMetrics(prometheus.NewRegistry()),
		},
	}
}

// SetArchive enables report archiving for campaigns completed here.
func (qr *QueueRecoveryWorker) SetArchive(a storage.Archive) { qr.archive = a }

// SetMetrics shares the dispatcher's collectors.
func (qr *QueueRecoveryWorker) SetMetrics(m *Metrics) { qr.metrics = m }

// SetClock overrides the time source.
func (qr *QueueRecoveryWorker) SetClock(now func() time.Time) { qr.now = now }

// Start begins the recovery loop. It blocks until ctx is cancelled.
func (qr *QueueRecoveryWorker) Start(ctx context.Context) {
	logger.Info("queue recovery starting", "interval", qr.interval.String(), "stale_age", qr.staleAge.String())

	ticker := time.NewTicker(qr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("queue recovery stopping")
			return
		case <-ticker.C:
			qr.RecoverOnce(ctx)
		}
	}
}

// RecoverOnce runs a single recovery pass and returns the number of claims
// released.
func (qr *QueueRecoveryWorker) RecoverOnce(ctx context.Context) int {
	queryCtx, cancel := context.WithTimeout(ctx, recoveryQueryTimeout)
	defer cancel()

	now := qr.now().UTC()
	n, err := qr.store.ReleaseStale(queryCtx, now.Add(-qr.staleAge))
	if err != nil {
		logger.Error("release stale claims failed", "error", err)
	} else if n > 0 {
		qr.metrics.Recovered.Add(float64(n))
		logger.Warn("released stale claims", "count", n)
	}

	campaigns, err := qr.store.ListRunning(queryCtx)
	if err != nil {
		logger.Error("list running campaigns failed", "error", err)
		return n
	}
	for _, c := range campaigns {
		pending, err := qr.store.CountPending(queryCtx, c.ID)
		if err != nil || pending > 0 {
			continue
		}
		qr.completeIfDrained(queryCtx, c.ID, now)
	}
	return n
}
