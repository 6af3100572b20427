package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// EventForcedAction is the webhook event type for owner notifications.
const EventForcedAction = "FORCED_ACTION"

// HeaderWebhookSignature carries the HMAC of the request body.
const HeaderWebhookSignature = "X-Splatchain-Signature"

// WebhookPayload is the JSON structure sent to the chat bridge.
type WebhookPayload struct {
	EventType string             `json:"event_type"`
	Data      WebhookPayloadData `json:"data"`
	Signature string             `json:"signature"`
}

// WebhookPayloadData holds the notification details in the webhook.
type WebhookPayloadData struct {
	NotificationID string `json:"notification_id"`
	Owner          string `json:"owner"`
	OwnerHandle    string `json:"owner_handle"`
	Actor          string `json:"actor"`
	Action         string `json:"action"`
	Address        string `json:"address"`
	Message        string `json:"message"`
	Timestamp      int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier implements ports.Notifier by POSTing a signed payload to the
// chat bridge, which messages the owner. It makes exactly one attempt.
type WebhookNotifier struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(url, secret string, sigSvc ports.SignatureService, httpClient HTTPClient, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
	}
}

// Deliver sends n to the chat bridge.
func (w *WebhookNotifier) Deliver(ctx context.Context, n *domain.Notification) error {
	data := WebhookPayloadData{
		NotificationID: n.ID.String(),
		Owner:          n.Owner,
		OwnerHandle:    n.OwnerHandle(),
		Actor:          n.Actor,
		Action:         string(n.Action),
		Address:        n.Address,
		Message:        n.Message,
		Timestamp:      n.CreatedAt.Unix(),
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling webhook data: %w", err)
	}
	signature := w.sigSvc.Sign(w.secret, string(dataBytes))

	payloadBytes, err := json.Marshal(WebhookPayload{
		EventType: EventForcedAction,
		Data:      data,
		Signature: signature,
	})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookSignature, signature)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.log.Info().
		Str("notification_id", data.NotificationID).
		Str("owner", n.Owner).
		Int("status", resp.StatusCode).
		Msg("notification delivered")
	return nil
}

// LogNotifier implements ports.Notifier when no chat bridge is configured.
// The notification is only logged.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier that writes notifications to the log.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Deliver logs n.
func (l *LogNotifier) Deliver(_ context.Context, n *domain.Notification) error {
	l.log.Info().
		Str("owner", n.Owner).
		Str("actor", n.Actor).
		Str("action", string(n.Action)).
		Str("address", n.Address).
		Time("created_at", n.CreatedAt).
		Msg(n.Message)
	return nil
}

// NewNotificationHTTPClient returns the client used for webhook delivery.
func NewNotificationHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
