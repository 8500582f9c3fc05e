package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/gateway"
	"github.com/ignite/campaign-dispatch/internal/pkg/distlock"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/storage"
)

// =============================================================================
// CAMPAIGN DISPATCHER
// =============================================================================
// Every tick the dispatcher lists running campaigns and, for each one in
// parallel (bounded), sends at most one message:
//
//   - no pending messages left      -> campaign completed
//   - per-recipient delay not over  -> skip
//   - gateway rate limit reached    -> skip, nothing counted
//   - another process holds the campaign lock -> skip
//   - claim the oldest pending message and send it
//
// Transport errors and transient gateway failures are retried on later
// ticks until MaxAttempts; permanent failures are recorded immediately.

const (
	DefaultTick            = 60 * time.Second
	DefaultConcurrency     = 8
	DefaultMaxAttempts     = 3
	DefaultSendTimeout     = 30 * time.Second
	DefaultClaimStaleAfter = 5 * time.Minute

	outcomeWriteTimeout = 10 * time.Second
)

// Config tunes the dispatcher.
type Config struct {
	Tick            time.Duration
	Concurrency     int
	MaxAttempts     int
	SendTimeout     time.Duration
	ClaimStaleAfter time.Duration
	WorkerID        string
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.ClaimStaleAfter <= 0 {
		c.ClaimStaleAfter = DefaultClaimStaleAfter
	}
	if c.WorkerID == "" {
		c.WorkerID = newWorkerID("dispatch")
	}
	return c
}

func newWorkerID(role string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s-%s", role, host, uuid.NewString()[:8])
}

// CampaignDispatcher sends campaign messages on a fixed tick.
type CampaignDispatcher struct {
	cfg     Config
	store   Store
	sender  gateway.Sender
	limiter gateway.Limiter
	locks   distlock.Provider
	now     func() time.Time
	*completer

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewCampaignDispatcher creates a dispatcher. Locking defaults to an
// in-process table and rate limiting to unlimited; call the setters to
// share them across processes.
func NewCampaignDispatcher(store Store, sender gateway.Sender, stats StatsAggregator, cfg Config) *CampaignDispatcher {
	cfg = cfg.withDefaults()
	return &CampaignDispatcher{
		cfg:     cfg,
		store:   store,
		sender:  sender,
		limiter: gateway.Unlimited{},
		locks:   distlock.NewLocalTable().Lock,
		now:     time.Now,
		completer: &completer{
			store:   store,
			stats:   stats,
			metrics: NewMetrics(prometheus.NewRegistry()),
		},
	}
}

// SetLimiter sets the gateway-wide rate limiter.
func (d *CampaignDispatcher) SetLimiter(l gateway.Limiter) { d.limiter = l }

// SetLocks sets the per-campaign lock provider.
func (d *CampaignDispatcher) SetLocks(p distlock.Provider) { d.locks = p }

// SetArchive enables report archiving on completion.
func (d *CampaignDispatcher) SetArchive(a storage.Archive) { d.archive = a }

// SetMetrics replaces the default unregistered collectors.
func (d *CampaignDispatcher) SetMetrics(m *Metrics) { d.metrics = m }

// SetClock overrides the time source.
func (d *CampaignDispatcher) SetClock(now func() time.Time) { d.now = now }

// WorkerID identifies this dispatcher in message claims.
func (d *CampaignDispatcher) WorkerID() string { return d.cfg.WorkerID }

// Start begins the tick loop.
func (d *CampaignDispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.mu.Unlock()

	logger.Info("dispatcher starting", "worker_id", d.cfg.WorkerID,
		"tick", d.cfg.Tick.String(), "concurrency", d.cfg.Concurrency)

	d.wg.Add(1)
	go d.loop()
	return nil
}

// Stop waits for the current tick to finish. In-flight sends complete and
// record their outcome.
func (d *CampaignDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	logger.Info("dispatcher stopping", "worker_id", d.cfg.WorkerID)
	d.cancel()
	d.wg.Wait()
	logger.Info("dispatcher stopped", "worker_id", d.cfg.WorkerID)
}

func (d *CampaignDispatcher) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.Tick)
	defer ticker.Stop()

	d.tick()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *CampaignDispatcher) tick() {
	if err := d.RunOnce(d.ctx); err != nil && d.ctx.Err() == nil {
		logger.Error("dispatch tick failed", "error", err)
	}
}

// RunOnce executes a single tick. It only fails when running campaigns
// cannot be listed; per-campaign problems are logged and skipped.
func (d *CampaignDispatcher) RunOnce(ctx context.Context) error {
	tickAt := d.now().UTC()
	start := time.Now()
	defer func() {
		d.metrics.Ticks.Inc()
		d.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	campaigns, err := d.store.ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("list running campaigns: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i := range campaigns {
		c := campaigns[i]
		g.Go(func() error {
			d.dispatchCampaign(ctx, &c, tickAt)
			return nil
		})
	}
	return g.Wait()
}

func (d *CampaignDispatcher) skip(c *domain.Campaign, reason string) {
	d.metrics.Skips.WithLabelValues(reason).Inc()
	logger.Debug("campaign skipped", "campaign_id", c.ID, "reason", reason)
}

func (d *CampaignDispatcher) dispatchCampaign(ctx context.Context, c *domain.Campaign, tickAt time.Time) {
	pending, err := d.store.CountPending(ctx, c.ID)
	if err != nil {
		logger.Error("count pending failed", "campaign_id", c.ID, "error", err)
		return
	}
	if pending == 0 {
		d.completeIfDrained(ctx, c.ID, tickAt)
		return
	}

	if !c.PaceElapsed(tickAt) {
		d.skip(c, skipPaced)
		return
	}

	lock := d.locks("campaign:" + c.ID)
	locked, err := lock.Acquire(ctx)
	if err != nil {
		logger.Warn("campaign lock failed", "campaign_id", c.ID, "error", err)
		return
	}
	if !locked {
		d.skip(c, skipLocked)
		return
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("campaign lock release failed", "campaign_id", c.ID, "error", err)
		}
	}()

	msg, err := d.store.ClaimNext(ctx, Claim{
		CampaignID:  c.ID,
		WorkerID:    d.cfg.WorkerID,
		ClaimedAt:   tickAt,
		StaleBefore: tickAt.Add(-d.cfg.ClaimStaleAfter),
		PacedBefore: tickAt.Add(-c.Delay()),
	})
	if err != nil {
		logger.Error("claim failed", "campaign_id", c.ID, "error", err)
		return
	}
	if msg == nil {
		d.skip(c, skipNoClaim)
		return
	}

	// A gateway slot is only taken once there is a message to spend it on.
	allowed, err := d.limiter.Allow(ctx)
	if err != nil {
		// The provider still answers 429 when overloaded, which is retried.
		logger.Warn("rate limiter unavailable, sending anyway", "campaign_id", c.ID, "error", err)
		allowed = true
	}
	if !allowed {
		d.unclaim(ctx, msg)
		d.skip(c, skipRateLimited)
		return
	}

	d.send(ctx, c, msg)

	// outcome bookkeeping must survive shutdown of the tick context
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()
	if _, err := d.stats.Recompute(wctx, c.ID); err != nil {
		logger.Warn("stats recompute failed", "campaign_id", c.ID, "error", err)
	}
	if remaining, err := d.store.CountPending(wctx, c.ID); err == nil && remaining == 0 {
		d.completeIfDrained(wctx, c.ID, tickAt)
	}
}

// unclaim hands an unsent message back to the queue without counting an
// attempt.
func (d *CampaignDispatcher) unclaim(ctx context.Context, msg *domain.Message) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()
	if _, err := d.store.Release(wctx, msg.ID, d.cfg.WorkerID, msg.RetryCount, msg.Error); err != nil {
		// stale-claim recovery picks it up later
		logger.Warn("unclaim failed", "campaign_id", msg.CampaignID, "message_id", msg.ID, "error", err)
	}
}

func (d *CampaignDispatcher) send(ctx context.Context, c *domain.Campaign, msg *domain.Message) {
	sendCtx, cancelSend := context.WithTimeout(ctx, d.cfg.SendTimeout)
	res, err := d.sender.Send(sendCtx, msg.Phone, msg.Content)
	cancelSend()

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	switch {
	case err != nil:
		d.retryOrFail(wctx, msg, err.Error(), nil)
	case res.Success:
		applied, werr := d.store.MarkSent(wctx, msg.ID, d.cfg.WorkerID, d.now().UTC(), res.ProviderMessageID, res.Payload)
		if !d.recorded(msg, applied, werr) {
			return
		}
		d.metrics.Outcomes.WithLabelValues(outcomeSent).Inc()
		logger.Info("message sent", "campaign_id", c.ID, "message_id", msg.ID,
			"phone", msg.Phone, "provider_message_id", res.ProviderMessageID)
	case res.Retryable():
		d.retryOrFail(wctx, msg, res.Error, res.Payload)
	default:
		applied, werr := d.store.MarkFailed(wctx, msg.ID, d.cfg.WorkerID, res.Error, msg.RetryCount, res.Payload)
		if !d.recorded(msg, applied, werr) {
			return
		}
		d.metrics.Outcomes.WithLabelValues(outcomePermanent).Inc()
		logger.Warn("message failed permanently", "campaign_id", c.ID, "message_id", msg.ID,
			"phone", msg.Phone, "error", res.Error)
	}
}

func (d *CampaignDispatcher) retryOrFail(ctx context.Context, msg *domain.Message, errText string, payload json.RawMessage) {
	attempts := msg.RetryCount + 1
	if attempts >= d.cfg.MaxAttempts {
		applied, err := d.store.MarkFailed(ctx, msg.ID, d.cfg.WorkerID, errText, attempts, payload)
		if !d.recorded(msg, applied, err) {
			return
		}
		d.metrics.Outcomes.WithLabelValues(outcomeExhausted).Inc()
		logger.Warn("message failed after retries", "campaign_id", msg.CampaignID, "message_id", msg.ID,
			"phone", msg.Phone, "attempts", attempts, "error", errText)
		return
	}

	applied, err := d.store.Release(ctx, msg.ID, d.cfg.WorkerID, attempts, errText)
	if !d.recorded(msg, applied, err) {
		return
	}
	d.metrics.Outcomes.WithLabelValues(outcomeRetry).Inc()
	logger.Info("message send will be retried", "campaign_id", msg.CampaignID, "message_id", msg.ID,
		"attempts", attempts, "error", errText)
}

// recorded reports whether an outcome write applied. A write that did not
// apply means the claim was lost to stale-claim recovery.
func (d *CampaignDispatcher) recorded(msg *domain.Message, applied bool, err error) bool {
	if err != nil {
		logger.Error("record send outcome failed", "campaign_id", msg.CampaignID, "message_id", msg.ID, "error", err)
		return false
	}
	if !applied {
		d.metrics.Outcomes.WithLabelValues(outcomeLostClaim).Inc()
		logger.Warn("claim lost before outcome was recorded", "campaign_id", msg.CampaignID, "message_id", msg.ID)
		return false
	}
	return true
}
