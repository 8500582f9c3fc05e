package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Console is a development Sender that logs messages instead of sending them.
type Console struct{}

// Send logs the message and reports success with a generated id.
func (Console) Send(_ context.Context, phone, content string) (*domain.SendResult, error) {
	id := uuid.NewString()
	logger.Info("console gateway send", "phone", phone, "provider_message_id", id, "length", len(content))
	body, _ := json.Marshal(map[string]string{"id": id, "status": "accepted"})
	return &domain.SendResult{Success: true, ProviderMessageID: id, Payload: body}, nil
}
