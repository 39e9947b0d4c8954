package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/newsagent/internal/config"
	"github.com/newsagent/internal/models"
	"github.com/newsagent/pkg/logger"
	"github.com/newsagent/pkg/ratelimit"
)

const requestTimeout = 60 * time.Second

const systemPrompt = `Вы являетесь профессиональным новостным агентом, специализирующимся на создании привлекательных и информативных новостей.
Сделай краткое, интересное описание новости для Telegram-канала, добавь emoji, call to action.`

// Claude generates posts through the Anthropic API
type Claude struct {
	client      anthropic.Client
	apiKey      string
	model       string
	maxTokens   int
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClaude creates a new Claude generator
func NewClaude(cfg config.AnthropicConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Claude {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	return &Claude{
		client:      client,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		rateLimiter: limiter,
		log:         log.WithComponent("generate.claude"),
	}
}

// Generate composes a post for the item. Provider failures and a missing API
// key yield ("", nil) so the caller can fall back; the missing-key case
// never touches the network.
func (c *Claude) Generate(ctx context.Context, item *models.Item) (string, error) {
	if c.apiKey == "" {
		c.log.Warn().Msg("Anthropic API key not configured, skipping")
		return "", nil
	}

	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterAnthropic); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	c.log.Debug().
		Str("model", c.model).
		Uint("item_id", item.ID).
		Msg("Sending request to Claude")

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		},
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(itemPrompt(item)),
				},
			},
		},
	})

	if err != nil {
		c.log.Warn().Err(err).Uint("item_id", item.ID).Msg("Claude request failed")
		return "", nil
	}

	var response string
	for _, block := range message.Content {
		textBlock := block.AsText()
		if textBlock.Text != "" {
			response += textBlock.Text
		}
	}

	c.log.Debug().
		Int("input_tokens", int(message.Usage.InputTokens)).
		Int("output_tokens", int(message.Usage.OutputTokens)).
		Msg("Received Claude response")

	return response, nil
}

// itemPrompt builds the user message describing the news item
func itemPrompt(item *models.Item) string {
	url := ""
	if item.URL != nil {
		url = *item.URL
	}
	return fmt.Sprintf(`Source: %s
News: %s
Summary: %s
Link: %s
Author: %s
Published at: %s`,
		item.Source, item.Title, item.Summary, url, item.Author,
		item.PublishedAt.Format(time.RFC3339))
}

// Ensure Claude implements Generator
var _ Generator = (*Claude)(nil)
