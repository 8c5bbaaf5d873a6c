package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/mymmrac/telego"

	"github.com/aatumaykin/cryptopilot/internal/logger"
)

// Sender is the part of telego.Bot used here.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Token   string
	ChatIDs []int64
	Handle  string // shown in message headers
	Timeout time.Duration
}

// Telegram delivers notifications to every configured chat.
type Telegram struct {
	cfg    TelegramConfig
	bot    Sender
	logger *logger.Logger
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram creates the bot client for cfg.Token.
func NewTelegram(cfg TelegramConfig, log *logger.Logger) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return NewTelegramWithSender(cfg, bot, log), nil
}

// NewTelegramWithSender uses an existing sender, e.g. a test fake.
func NewTelegramWithSender(cfg TelegramConfig, bot Sender, log *logger.Logger) *Telegram {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Handle == "" {
		cfg.Handle = "cryptopilot"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Telegram{cfg: cfg, bot: bot, logger: log.Component("notify_telegram")}
}

// CycleFailed alerts about a failed or panicked cycle. Delivery errors are
// only logged.
func (t *Telegram) CycleFailed(ctx context.Context, name string, err error) {
	if sendErr := t.broadcast(ctx, formatFailure(t.cfg.Handle, name, err)); sendErr != nil {
		t.logger.ErrorCtx(ctx, "failed to send cycle alert", sendErr,
			logger.Field{Key: "cycle", Value: name})
	}
}

// DailySummary sends s to every chat.
func (t *Telegram) DailySummary(ctx context.Context, s Summary) error {
	return t.broadcast(ctx, formatSummary(t.cfg.Handle, s))
}

// Send delivers a plain text message, e.g. the startup notice.
func (t *Telegram) Send(ctx context.Context, text string) error {
	return t.broadcast(ctx, html.EscapeString(text))
}

func (t *Telegram) broadcast(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range t.cfg.ChatIDs {
		sendCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
		_, err := t.bot.SendMessage(sendCtx, &telego.SendMessageParams{
			ChatID:    telego.ChatID{ID: chatID},
			Text:      text,
			ParseMode: telego.ModeHTML,
		})
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		t.logger.DebugCtx(ctx, "notification sent", logger.Field{Key: "chat_id", Value: chatID})
	}
	return errors.Join(errs...)
}
