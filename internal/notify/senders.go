package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Sender delivers a rendered reminder over one channel.
type Sender interface {
	// Channel returns the channel this sender serves.
	Channel() Channel

	// Send delivers the reminder. A nil error means the channel accepted it.
	Send(ctx context.Context, receipt *DeliveryReceipt) error
}

// WebhookConfig configures an outbound webhook sender.
type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// WebhookSender posts reminders to an external gateway endpoint. Email, SMS,
// and phone channels all go through provider webhooks in this deployment.
type WebhookSender struct {
	channel Channel
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookSender creates a webhook sender for the given channel.
func NewWebhookSender(channel Channel, cfg WebhookConfig) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		channel: channel,
		url:     cfg.URL,
		headers: cfg.Headers,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Channel returns the channel this sender serves.
func (s *WebhookSender) Channel() Channel {
	return s.channel
}

// webhookPayload is the body posted to the channel gateway.
type webhookPayload struct {
	EventType string    `json:"event_type"`
	Channel   Channel   `json:"channel"`
	PatientID string    `json:"patient_id"`
	Type      string    `json:"reminder_type"`
	Priority  string    `json:"priority"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Send posts the reminder to the gateway. An unset URL disables the channel
// without error; the dispatcher records it as not delivered.
func (s *WebhookSender) Send(ctx context.Context, receipt *DeliveryReceipt) error {
	if s.url == "" {
		return fmt.Errorf("%s gateway not configured", s.channel)
	}

	payload := webhookPayload{
		EventType: "reminder",
		Channel:   s.channel,
		PatientID: receipt.PatientID,
		Type:      string(receipt.Type),
		Priority:  string(receipt.Priority),
		Message:   receipt.Message,
		Timestamp: receipt.FiredAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s gateway returned status %d", s.channel, resp.StatusCode)
	}

	return nil
}

// ConsoleSender prints reminders to stdout. The standalone MCP server uses
// it for every non-portal channel so demos work without provider gateways.
type ConsoleSender struct {
	channel Channel
}

// NewConsoleSender creates a console sender for the given channel.
func NewConsoleSender(channel Channel) *ConsoleSender {
	return &ConsoleSender{channel: channel}
}

// Channel returns the channel this sender serves.
func (s *ConsoleSender) Channel() Channel {
	return s.channel
}

// Send prints the reminder.
func (s *ConsoleSender) Send(ctx context.Context, receipt *DeliveryReceipt) error {
	fmt.Printf("[REMINDER] [%s] [%s] patient=%s type=%s: %s\n",
		s.channel, receipt.Priority, receipt.PatientID, receipt.Type, receipt.Message)
	return nil
}
