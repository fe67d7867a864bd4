package notify

import (
	"context"
	"fmt"
	"time"

	"basisarb/internal/httpclient"
)

// WebhookSender posts messages as JSON to an arbitrary HTTP endpoint.
type WebhookSender struct {
	url    string
	client httpclient.Client
}

// NewWebhookSender creates a WebhookSender for the given URL.
func NewWebhookSender(url string) (*WebhookSender, error) {
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("webhook"),
		httpclient.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("webhook: build client: %w", err)
	}
	return &WebhookSender{url: url, client: client}, nil
}

// Send posts {"text": ...} to the endpoint.
func (w *WebhookSender) Send(ctx context.Context, text string) error {
	resp, err := w.client.NewRequest().
		SetBody(map[string]string{"text": text}).
		Post(ctx, w.url)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Name returns the channel identifier.
func (w *WebhookSender) Name() string {
	return "webhook"
}
