// Package notify provides a best-effort notification sink. Delivery failures
// are logged and never propagated into the trading path.
package notify

import (
	"context"
	"time"

	"basisarb/internal/config"
	"basisarb/internal/logger"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a message. Implementations apply their own timeouts.
	Send(ctx context.Context, text string) error

	// Name identifies the channel in logs.
	Name() string
}

// Notifier is the sink handed to the trading components. A nil-safe no-op
// Notifier is returned when no channels are configured.
type Notifier struct {
	senders []Sender
	log     logger.LoggerInterface
	timeout time.Duration
}

// New builds a Notifier from configuration, enabling every channel that has
// credentials.
func New(cfg config.NotificationsConfig, log logger.LoggerInterface) *Notifier {
	var senders []Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		if s, err := NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID); err != nil {
			log.Warn(context.Background(), "telegram channel disabled", "error", err)
		} else {
			senders = append(senders, s)
		}
	}
	if cfg.WebhookURL != "" {
		if s, err := NewWebhookSender(cfg.WebhookURL); err != nil {
			log.Warn(context.Background(), "webhook channel disabled", "error", err)
		} else {
			senders = append(senders, s)
		}
	}
	return &Notifier{
		senders: senders,
		log:     log,
		timeout: 10 * time.Second,
	}
}

// Send fans text out to every configured channel. Individual failures are
// logged; Send itself never returns an error.
func (n *Notifier) Send(ctx context.Context, text string) {
	if n == nil || len(n.senders) == 0 {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	for _, s := range n.senders {
		if err := s.Send(sendCtx, text); err != nil {
			n.log.Warn(ctx, "notification delivery failed", "channel", s.Name(), "error", err)
		}
	}
}
