package worker

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the dispatch worker's Prometheus collectors.
type Metrics struct {
	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Outcomes     *prometheus.CounterVec
	Skips        *prometheus.CounterVec
	Completed    prometheus.Counter
	Recovered    prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_ticks_total",
			Help: "Dispatch ticks executed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_tick_duration_seconds",
			Help:    "Wall time of one dispatch tick.",
			Buckets: prometheus.DefBuckets,
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_message_outcomes_total",
			Help: "Message send attempts by outcome.",
		}, []string{"outcome"}),
		Skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_campaign_skips_total",
			Help: "Campaigns skipped during a tick, by reason.",
		}, []string{"reason"}),
		Completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_campaigns_completed_total",
			Help: "Campaigns moved to completed.",
		}),
		Recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_stale_claims_released_total",
			Help: "Stale message claims released by the recovery loop.",
		}),
	}
	reg.MustRegister(m.Ticks, m.TickDuration, m.Outcomes, m.Skips, m.Completed, m.Recovered)
	return m
}

const (
	outcomeSent      = "sent"
	outcomePermanent = "failed_permanent"
	outcomeExhausted = "failed_exhausted"
	outcomeRetry     = "retry"
	outcomeLostClaim = "lost_claim"

	skipPaced       = "paced"
	skipRateLimited = "rate_limited"
	skipLocked      = "locked"
	skipNoClaim     = "nothing_claimable"
)
