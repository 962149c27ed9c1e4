// Package publish delivers written issues to chat channels.
package publish

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/platform/htmlutils"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

// MaxMessageSize is the Telegram message limit in UTF-16 code units.
const MaxMessageSize = 4096

const (
	statusSent   = "sent"
	statusFailed = "failed"
)

// Sender sends one Telegram message. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPublisher posts issues to a single chat.
type TelegramPublisher struct {
	sender Sender
	chatID int64
	logger *zerolog.Logger
}

// NewTelegramPublisher connects to the Bot API with token.
func NewTelegramPublisher(token string, chatID int64, logger *zerolog.Logger) (*TelegramPublisher, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}

	return NewTelegramPublisherWithSender(api, chatID, logger), nil
}

// NewTelegramPublisherWithSender creates a publisher over an existing sender.
func NewTelegramPublisherWithSender(sender Sender, chatID int64, logger *zerolog.Logger) *TelegramPublisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &TelegramPublisher{sender: sender, chatID: chatID, logger: logger}
}

// Publish sends markdown as plain text, split on section and paragraph
// boundaries to fit the message limit. It stops at the first failed part.
func (p *TelegramPublisher) Publish(ctx context.Context, markdown string) error {
	parts := htmlutils.SplitMessage(markdown, MaxMessageSize)

	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			observability.DigestsPosted.WithLabelValues(statusFailed).Inc()
			return err
		}

		msg := tgbotapi.NewMessage(p.chatID, part)
		msg.DisableWebPagePreview = true

		if _, err := p.sender.Send(msg); err != nil {
			observability.DigestsPosted.WithLabelValues(statusFailed).Inc()
			return fmt.Errorf("send part %d/%d: %w", i+1, len(parts), err)
		}
	}

	observability.DigestsPosted.WithLabelValues(statusSent).Inc()

	p.logger.Info().Int64("chat_id", p.chatID).Int("parts", len(parts)).Msg("digest posted to telegram")

	return nil
}
