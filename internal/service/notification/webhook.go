package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier posts notices to an email/SMS relay
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier returns nil when url is empty
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type webhookEnvelope struct {
	Event      string       `json:"event"`
	OccurredAt time.Time    `json:"occurredAt"`
	Data       BreachNotice `json:"data"`
}

func (w *WebhookNotifier) NotifyBreachConfirmed(ctx context.Context, notice BreachNotice) error {
	body, err := json.Marshal(webhookEnvelope{
		Event:      "breach.confirmed",
		OccurredAt: time.Now().UTC(),
		Data:       notice,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", "breach.confirmed")
	req.Header.Set("Idempotency-Key", notice.BreachID.String())

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	w.logger.Debug("webhook delivered", zap.String("breach_id", notice.BreachID.String()))
	return nil
}
