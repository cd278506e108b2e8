package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Template identifies a notification template rendered by the mail provider.
type Template string

const (
	TemplateBookingConfirmation Template = "booking_confirmation"
	TemplateCancellation        Template = "cancellation"
	TemplateAutoCancellation    Template = "auto_cancellation"
	TemplateCompletion          Template = "completion"
	TemplateReminder            Template = "reminder"
)

// Notifier delivers a templated notification to one recipient. Delivery is
// best-effort everywhere it is used: callers never roll back a committed
// state change because a send failed.
type Notifier interface {
	Send(ctx context.Context, recipient string, template Template, data map[string]any) error
}

// MailNotifier posts send requests to a transactional email API.
type MailNotifier struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

func NewMailNotifier(baseURL, apiKey, from string) *MailNotifier {
	return &MailNotifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		httpClient: http.DefaultClient,
	}
}

func (n *MailNotifier) Send(ctx context.Context, recipient string, template Template, data map[string]any) error {
	payload := map[string]any{
		"from":     n.from,
		"to":       recipient,
		"template": string(template),
		"params":   data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("api-key", n.apiKey)
	req.Header.Set("Content-Type", "application/json")
	// Retried sends after transport errors must not double-deliver.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send notification: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
