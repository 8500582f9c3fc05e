package gateway

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Instrumented records Prometheus metrics around another Sender.
type Instrumented struct {
	next     Sender
	name     string
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewInstrumented wraps next and registers its collectors on reg.
func NewInstrumented(name string, next Sender, reg prometheus.Registerer) *Instrumented {
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_send_duration_seconds",
			Help:    "Latency of gateway send calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway", "outcome"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_send_total",
			Help: "Gateway send calls by outcome.",
		},
		[]string{"gateway", "outcome"},
	)
	reg.MustRegister(duration, outcomes)

	return &Instrumented{next: next, name: name, duration: duration, outcomes: outcomes}
}

// Send forwards to the wrapped Sender and records the outcome.
func (s *Instrumented) Send(ctx context.Context, phone, content string) (*domain.SendResult, error) {
	start := time.Now()
	res, err := s.next.Send(ctx, phone, content)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "transport_error"
	case !res.Success:
		outcome = string(res.Class)
	}

	s.outcomes.WithLabelValues(s.name, outcome).Inc()
	s.duration.WithLabelValues(s.name, outcome).Observe(time.Since(start).Seconds())
	return res, err
}
