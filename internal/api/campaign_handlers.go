package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
)

// CreateCampaign creates a draft campaign.
//
//	POST /api/campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), tenantFrom(r), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// ListCampaigns lists the tenant's campaigns, newest first.
//
//	GET /api/campaigns?status=running&limit=50&offset=0
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Page(r, 50, 200)
	f := campaign.ListFilter{
		Status: domain.CampaignStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	items, total, err := h.campaigns.List(r.Context(), tenantFrom(r), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, newList(items, total, limit, offset))
}

// GetCampaign returns one campaign with its cached counters.
//
//	GET /api/campaigns/{id}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign removes a campaign that is not running.
//
//	DELETE /api/campaigns/{id}
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), tenantFrom(r), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// StartCampaign starts a draft or resumes a paused campaign.
//
//	POST /api/campaigns/{id}/start
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Start)
}

// PauseCampaign pauses a running campaign.
//
//	POST /api/campaigns/{id}/pause
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Pause)
}

// ResumeCampaign resumes a paused campaign.
//
//	POST /api/campaigns/{id}/resume
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Resume)
}

type transitionFunc func(ctx context.Context, tenantID, id string) (*domain.Campaign, error)

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, op transitionFunc) {
	c, err := op(r.Context(), tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// GetCampaignStats recomputes and returns the campaign's counters.
//
//	GET /api/campaigns/{id}/stats
func (h *Handlers) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.campaigns.Stats(r.Context(), tenantFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

// ListCampaignMessages lists a campaign's messages in send order.
//
//	GET /api/campaigns/{id}/messages?status=failed&limit=100&offset=0
func (h *Handlers) ListCampaignMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Page(r, 100, 500)
	f := campaign.MessageFilter{
		Status: domain.MessageStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	items, total, err := h.campaigns.Messages(r.Context(), tenantFrom(r), chi.URLParam(r, "id"), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, newList(items, total, limit, offset))
}
