package notify

import (
	"context"
	"fmt"
	"time"

	"basisarb/internal/httpclient"
)

// TelegramSender delivers messages via the Telegram Bot API.
type TelegramSender struct {
	token  string
	chatID string
	client httpclient.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat id.
func NewTelegramSender(token, chatID string) (*TelegramSender, error) {
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("telegram"),
		httpclient.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: build client: %w", err)
	}
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: client,
	}, nil
}

// Send posts text to the configured chat using the sendMessage API.
func (t *TelegramSender) Send(ctx context.Context, text string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	resp, err := t.client.NewRequest().
		SetBody(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Post(ctx, url)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, resp.String())
	}
	return nil
}

// Name returns the channel identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
