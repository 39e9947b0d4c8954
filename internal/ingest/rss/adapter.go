package rss

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/models"
	"github.com/newsagent/pkg/logger"
	"github.com/newsagent/pkg/ratelimit"
)

const fetchTimeout = 30 * time.Second

// Adapter ingests website sources whose address points at an RSS/Atom feed
type Adapter struct {
	parser  *gofeed.Parser
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
}

// New creates a new RSS adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		parser:  gofeed.NewParser(),
		limiter: limiter,
		log:     log.WithComponent("ingest.rss"),
	}
}

// Name returns "rss"
func (a *Adapter) Name() string {
	return "rss"
}

// Matches reports whether the source address looks like a feed URL
func (a *Adapter) Matches(src *models.Source) bool {
	if src.Kind != models.SourceKindWebsite {
		return false
	}
	addr := strings.ToLower(src.Address)
	return strings.HasSuffix(addr, ".xml") ||
		strings.HasSuffix(addr, ".rss") ||
		strings.HasSuffix(addr, ".atom") ||
		strings.Contains(addr, "/rss") ||
		strings.Contains(addr, "/feed")
}

// Fetch retrieves candidates from the feed
func (a *Adapter) Fetch(ctx context.Context, src *models.Source, limit int) ([]ingest.Candidate, error) {
	if err := a.limiter.Wait(ctx, ratelimit.LimiterRSS); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	a.log.Debug().Str("url", src.Address).Msg("Fetching feed")

	feed, err := a.parser.ParseURLWithContext(src.Address, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", src.Name, err)
	}

	candidates := make([]ingest.Candidate, 0, len(feed.Items))

	for _, item := range feed.Items {
		if limit > 0 && len(candidates) >= limit {
			break
		}

		title := cleanText(item.Title)
		if title == "" {
			continue
		}

		publishedAt := time.Now()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		}

		candidate := ingest.Candidate{
			Source:      src.Name,
			Title:       title,
			Summary:     cleanText(item.Description),
			URL:         item.Link,
			PublishedAt: publishedAt,
			RawText:     cleanText(item.Content),
		}
		if item.Image != nil {
			candidate.Image = item.Image.URL
		}
		if item.Author != nil {
			candidate.Author = item.Author.Name
		}

		candidates = append(candidates, candidate)
	}

	a.log.Info().
		Int("count", len(candidates)).
		Str("source", src.Name).
		Msg("Fetched feed candidates")

	return candidates, nil
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "</p>", " ")
	text = strings.ReplaceAll(text, "<p>", "")

	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(result.String()), " ")
}

// Ensure Adapter implements ingest.Adapter
var _ ingest.Adapter = (*Adapter)(nil)
