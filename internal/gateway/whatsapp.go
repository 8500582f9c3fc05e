package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

const maxResponseBytes = 64 << 10

// WhatsAppClient talks to the HTTP messaging provider:
//
//	POST {base}/messages  {"phone": "...", "message": "..."}
//
// 2xx is a success carrying the provider id, 429 and 5xx are transient
// failures, any other status is permanent.
type WhatsAppClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewWhatsAppClient creates a client. A zero timeout defaults to 20s.
func NewWhatsAppClient(baseURL, token string, timeout time.Duration) *WhatsAppClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &WhatsAppClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// Send posts one message to the provider.
func (c *WhatsAppClient) Send(ctx context.Context, phone, content string) (*domain.SendResult, error) {
	body, err := json.Marshal(sendRequest{Phone: phone, Message: content})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	var parsed sendResponse
	_ = json.Unmarshal(raw, &parsed)

	result := &domain.SendResult{Payload: payload(raw)}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Success = true
		result.ProviderMessageID = parsed.ID
		if result.ProviderMessageID == "" {
			result.ProviderMessageID = parsed.MessageID
		}
		return result, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		result.Class = domain.FailureTransient
	default:
		result.Class = domain.FailurePermanent
	}

	result.Error = describe(resp.StatusCode, parsed)
	return result, nil
}

func describe(status int, r sendResponse) string {
	msg := r.Error
	if msg == "" {
		msg = r.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Sprintf("gateway returned %d: %s", status, msg)
}

// payload keeps the provider body for audit when it is valid JSON and wraps
// it as a JSON string otherwise.
func payload(raw []byte) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return json.RawMessage(quoted)
}
