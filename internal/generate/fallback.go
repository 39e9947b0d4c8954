package generate

import (
	"context"
	"strings"

	"github.com/newsagent/internal/models"
	"github.com/newsagent/pkg/logger"
)

const summaryLimit = 200

// categoryEmoji maps a title keyword to the post emoji; first match wins.
var categoryEmoji = []struct {
	keyword string
	emoji   string
}{
	{"технолог", "💻"},
	{"программ", "💻"},
	{"игр", "🎮"},
	{"бизнес", "💼"},
}

// Fallback composes a post locally without any network calls. It is
// deterministic: the same item always yields the same text.
type Fallback struct {
	log *logger.Logger
}

// NewFallback creates a new fallback generator
func NewFallback(log *logger.Logger) *Fallback {
	return &Fallback{log: log.WithComponent("generate.fallback")}
}

// Generate builds a short post from the item's title, truncated summary,
// link and a category tag.
func (f *Fallback) Generate(_ context.Context, item *models.Item) (string, error) {
	title := item.Title
	if title == "" {
		title = "Новости"
	}

	summary := item.Summary
	if runes := []rune(summary); len(runes) > summaryLimit {
		summary = string(runes[:summaryLimit]) + "..."
	}

	emoji := "📰"
	lowerTitle := strings.ToLower(item.Title)
	for _, cat := range categoryEmoji {
		if strings.Contains(lowerTitle, cat.keyword) {
			emoji = cat.emoji
			break
		}
	}

	parts := []string{emoji + " " + title}
	if summary != "" {
		parts = append(parts, summary)
	}
	if item.URL != nil && *item.URL != "" {
		parts = append(parts, "📖 Читать полностью: "+*item.URL)
	}
	parts = append(parts, "#новости #технологии")

	f.log.Debug().Uint("item_id", item.ID).Msg("Composed fallback post")

	return strings.Join(parts, "\n\n"), nil
}

// Ensure Fallback implements Generator
var _ Generator = (*Fallback)(nil)
