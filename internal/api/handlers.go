package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/optout"
)

// CampaignService is the campaign lifecycle the API drives.
type CampaignService interface {
	Create(ctx context.Context, tenantID string, in campaign.CreateInput) (*domain.Campaign, error)
	Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error)
	List(ctx context.Context, tenantID string, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Start(ctx context.Context, tenantID, id string) (*domain.Campaign, error)
	Pause(ctx context.Context, tenantID, id string) (*domain.Campaign, error)
	Resume(ctx context.Context, tenantID, id string) (*domain.Campaign, error)
	Delete(ctx context.Context, tenantID, id string) error
	Stats(ctx context.Context, tenantID, id string) (domain.Stats, error)
	Messages(ctx context.Context, tenantID, id string, f campaign.MessageFilter) ([]domain.Message, int, error)
	RecordDelivery(ctx context.Context, providerMessageID string, at time.Time) error
}

// OptOutService manages the tenant's do-not-contact list.
type OptOutService interface {
	Add(ctx context.Context, tenantID, rawPhone string, reason domain.OptOutReason, source domain.OptOutSource, campaignID string) (*domain.OptOut, error)
	Remove(ctx context.Context, tenantID, rawPhone string) error
	List(ctx context.Context, tenantID string, f optout.ListFilter) ([]domain.OptOut, int, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	campaigns     CampaignService
	optOuts       OptOutService
	health        *HealthChecker
	webhookSecret string
	gatherer      prometheus.Gatherer
	metrics       *httpMetrics
}

// HandlerConfig wires the handlers.
type HandlerConfig struct {
	Campaigns     CampaignService
	OptOuts       OptOutService
	Health        *HealthChecker
	WebhookSecret string
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
}

// NewHandlers creates the handler set.
func NewHandlers(c HandlerConfig) *Handlers {
	reg := c.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	health := c.Health
	if health == nil {
		health = NewHealthChecker(nil, nil)
	}
	return &Handlers{
		campaigns:     c.Campaigns,
		optOuts:       c.OptOuts,
		health:        health,
		webhookSecret: c.WebhookSecret,
		gatherer:      reg,
		metrics:       newHTTPMetrics(reg),
	}
}

// respondServiceError maps service sentinels to HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrInvalidInput),
		errors.Is(err, campaign.ErrInvalidTargeting),
		errors.Is(err, campaign.ErrInvalidTemplate),
		errors.Is(err, optout.ErrInvalidPhone):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, campaign.ErrMessageNotFound),
		errors.Is(err, optout.ErrNotFound):
		httputil.ErrorCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, campaign.ErrInvalidCampaignState):
		httputil.ErrorCode(w, http.StatusConflict, "invalid_state", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newList[T any](items []T, total, limit, offset int) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: total, Limit: limit, Offset: offset}
}
