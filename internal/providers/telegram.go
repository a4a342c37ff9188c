package providers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"intel-correlation-service/internal/config"
)

// Telegram is the optional urgent channel for critical alerts. Message
// sends share a rate limiter to stay under the bot API limits.
type Telegram struct {
	chatID  int64
	bot     *bot.Bot
	limiter *rate.Limiter
	logger  *logrus.Logger
}

func NewTelegram(cfg config.Config, logger *logrus.Logger) (*Telegram, error) {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		return nil, nil
	}
	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	rps := cfg.Telegram.RatePerS
	return &Telegram{
		chatID:  cfg.Telegram.ChatID,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(float64(rps)), rps),
		logger:  logger,
	}, nil
}

// Send posts one urgent message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.logger.Debugf("Telegram alert delivered to chat %d", t.chatID)
	return nil
}
