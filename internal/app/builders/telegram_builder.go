package builders

import (
	"fmt"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/notify"
)

type TelegramBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewTelegramBuilder(cfg *config.Config, log *logger.Logger) *TelegramBuilder {
	return &TelegramBuilder{
		config: cfg,
		logger: log,
	}
}

// Build returns the operator notifier, notify.Nop when Telegram is off.
func (b *TelegramBuilder) Build() (notify.Notifier, error) {
	tg := b.config.Notify.Telegram
	if !tg.Enabled {
		return notify.Nop{}, nil
	}

	notifier, err := notify.NewTelegram(notify.TelegramConfig{
		Token:   tg.Token,
		ChatIDs: tg.ChatIDs,
		Handle:  b.config.Agent.Handle,
	}, b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram notifier: %w", err)
	}
	b.logger.Info("telegram notifications enabled", logger.Field{Key: "chats", Value: len(tg.ChatIDs)})
	return notifier, nil
}
