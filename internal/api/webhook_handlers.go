package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/optout"
)

const (
	webhookSecretHeader = "X-Webhook-Secret"
	maxWebhookBody      = 1 << 20
)

type webhookResult struct {
	Processed int `json:"processed"`
	Ignored   int `json:"ignored"`
}

// HandleGatewayStatus applies delivery receipts and opt-out notices pushed
// by the WhatsApp gateway. The body is one event or an array of events.
// Events that reference unknown messages are acknowledged and ignored so
// the provider does not retry them forever.
//
//	POST /webhooks/gateway/status
func (h *Handlers) HandleGatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			httputil.Unauthorized(w, "invalid webhook secret")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.BadRequest(w, "request body too large")
		return
	}
	events, err := decodeEvents(body)
	if err != nil {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	var res webhookResult
	for _, ev := range events {
		applied, err := h.applyEvent(r, ev)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		if applied {
			res.Processed++
		} else {
			res.Ignored++
		}
	}
	httputil.OK(w, res)
}

func decodeEvents(body []byte) ([]domain.DeliveryEvent, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var events []domain.DeliveryEvent
		err := json.Unmarshal(body, &events)
		return events, err
	}
	var ev domain.DeliveryEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return []domain.DeliveryEvent{ev}, nil
}

func (h *Handlers) applyEvent(r *http.Request, ev domain.DeliveryEvent) (bool, error) {
	switch ev.Status {
	case domain.DeliveryDelivered, domain.DeliveryRead:
		if ev.ProviderMessageID == "" {
			return false, nil
		}
		err := h.campaigns.RecordDelivery(r.Context(), ev.ProviderMessageID, ev.OccurredAt)
		if errors.Is(err, campaign.ErrMessageNotFound) {
			logger.Debug("delivery receipt for unknown message", "provider_message_id", ev.ProviderMessageID)
			return false, nil
		}
		return err == nil, err

	case domain.DeliveryOptOut:
		if ev.TenantID == "" || ev.Phone == "" {
			logger.Warn("opt-out event without tenant or phone", "provider_message_id", ev.ProviderMessageID)
			return false, nil
		}
		_, err := h.optOuts.Add(r.Context(), ev.TenantID, ev.Phone, domain.OptOutReplyStop, domain.OptOutSourceWebhook, "")
		if errors.Is(err, optout.ErrInvalidPhone) {
			logger.Warn("opt-out event with invalid phone", "phone", ev.Phone)
			return false, nil
		}
		if err == nil {
			logger.Info("recipient opted out", "tenant_id", ev.TenantID, "phone", ev.Phone)
		}
		return err == nil, err
	}

	logger.Debug("ignoring gateway event", "status", string(ev.Status))
	return false, nil
}
