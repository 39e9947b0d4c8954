package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/newsagent/internal/config"
	"github.com/newsagent/internal/publish"
	"github.com/newsagent/pkg/logger"
	"github.com/newsagent/pkg/ratelimit"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Publisher posts generated text to a Telegram channel via the Bot API
type Publisher struct {
	api            telegramAPI
	defaultChannel string
	limiter        *ratelimit.MultiLimiter
	log            *logger.Logger
}

// New creates a Telegram publisher. A missing bot token is a configuration
// error surfaced at startup rather than per-publish.
func New(cfg config.TelegramConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) (*Publisher, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is not configured")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Publisher{
		api:            api,
		defaultChannel: cfg.Channel,
		limiter:        limiter,
		log:            log.WithComponent("publish.telegram"),
	}, nil
}

// NewWithAPI creates a publisher around an existing API client (useful for testing).
func NewWithAPI(api telegramAPI, defaultChannel string, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Publisher {
	return &Publisher{
		api:            api,
		defaultChannel: defaultChannel,
		limiter:        limiter,
		log:            log.WithComponent("publish.telegram"),
	}
}

// Publish sends the text to the destination channel, falling back to the
// configured default when destination is empty.
func (p *Publisher) Publish(ctx context.Context, text, destination string) error {
	channel := destination
	if channel == "" {
		channel = p.defaultChannel
	}
	if channel == "" {
		return fmt.Errorf("telegram channel is not configured")
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}

	if err := p.limiter.Wait(ctx, ratelimit.LimiterTelegram); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	msg := tgbotapi.NewMessageToChannel(channel, text)
	if _, err := p.api.Send(msg); err != nil {
		return fmt.Errorf("send to %s: %w", channel, err)
	}

	p.log.Info().Str("channel", channel).Int("length", len(text)).Msg("Post published")
	return nil
}

// Ensure Publisher implements publish.Publisher
var _ publish.Publisher = (*Publisher)(nil)
