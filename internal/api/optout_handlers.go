package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/optout"
)

type addOptOutRequest struct {
	Phone      string              `json:"phone"`
	Reason     domain.OptOutReason `json:"reason"`
	CampaignID string              `json:"campaign_id"`
}

// ListOptOuts lists the tenant's opted-out phones.
//
//	GET /api/opt-outs?reason=reply_stop&limit=50&offset=0
func (h *Handlers) ListOptOuts(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Page(r, 50, 500)
	f := optout.ListFilter{Reason: r.URL.Query().Get("reason"), Limit: limit, Offset: offset}
	items, total, err := h.optOuts.List(r.Context(), tenantFrom(r), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, newList(items, total, limit, offset))
}

// AddOptOut records that a phone must not be messaged again.
//
//	POST /api/opt-outs
func (h *Handlers) AddOptOut(w http.ResponseWriter, r *http.Request) {
	var req addOptOutRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	switch req.Reason {
	case "", domain.OptOutManual, domain.OptOutReplyStop, domain.OptOutGatewayBlock:
	default:
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_input", "unknown reason "+string(req.Reason))
		return
	}
	o, err := h.optOuts.Add(r.Context(), tenantFrom(r), req.Phone, req.Reason, domain.OptOutSourceAPI, req.CampaignID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, o)
}

// RemoveOptOut lets a phone be messaged again.
//
//	DELETE /api/opt-outs/{phone}
func (h *Handlers) RemoveOptOut(w http.ResponseWriter, r *http.Request) {
	phone, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil {
		httputil.BadRequest(w, "malformed phone")
		return
	}
	if err := h.optOuts.Remove(r.Context(), tenantFrom(r), phone); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}
