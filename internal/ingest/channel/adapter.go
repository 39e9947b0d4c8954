package channel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/models"
	"github.com/newsagent/pkg/logger"
	"github.com/newsagent/pkg/ratelimit"
)

const (
	previewBaseURL = "https://t.me/s/"
	maxMessageAge  = 24 * time.Hour
	titleLimit     = 100
	summaryLimit   = 500
)

// Adapter ingests public Telegram channels through their t.me/s/ web preview,
// which exposes recent messages without any API credentials.
type Adapter struct {
	client  *http.Client
	baseURL string
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
}

// New creates a channel adapter; a nil client gets a 15s-timeout default
func New(client *http.Client, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Adapter{
		client:  client,
		baseURL: previewBaseURL,
		limiter: limiter,
		log:     log.WithComponent("ingest.channel"),
	}
}

// SetBaseURL overrides the preview base URL (useful for testing).
func (a *Adapter) SetBaseURL(u string) {
	a.baseURL = u
}

// Name returns "channel"
func (a *Adapter) Name() string {
	return "channel"
}

// Matches accepts channel sources
func (a *Adapter) Matches(src *models.Source) bool {
	return src.Kind == models.SourceKindChannel
}

// Fetch retrieves candidates from the channel preview page
func (a *Adapter) Fetch(ctx context.Context, src *models.Source, limit int) ([]ingest.Candidate, error) {
	if err := a.limiter.Wait(ctx, ratelimit.LimiterChannel); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	handle := strings.TrimPrefix(strings.TrimSpace(src.Address), "@")
	if handle == "" {
		return nil, fmt.Errorf("source %q has no channel handle", src.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+handle, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch channel %s: %w", handle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel %s: unexpected status %d", handle, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse channel page: %w", err)
	}

	var candidates []ingest.Candidate

	doc.Find(".tgme_widget_message").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if limit > 0 && len(candidates) >= limit {
			return false
		}

		candidate, ok := a.messageToCandidate(sel, src.Name, handle)
		if ok {
			candidates = append(candidates, candidate)
		}
		return true
	})

	a.log.Info().
		Int("count", len(candidates)).
		Str("channel", handle).
		Msg("Fetched channel candidates")

	return candidates, nil
}

// messageToCandidate converts one preview message block. Empty messages and
// messages older than a day are skipped so repeated passes do not keep
// re-offering stale posts to the dedup gate.
func (a *Adapter) messageToCandidate(sel *goquery.Selection, sourceName, handle string) (ingest.Candidate, bool) {
	text := strings.TrimSpace(sel.Find(".tgme_widget_message_text").First().Text())
	if text == "" {
		return ingest.Candidate{}, false
	}

	publishedAt := time.Now()
	if datetime, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, datetime); err == nil {
			publishedAt = parsed
		}
	}
	if time.Since(publishedAt) > maxMessageAge {
		return ingest.Candidate{}, false
	}

	author := strings.TrimSpace(sel.Find(".tgme_widget_message_owner_name").First().Text())
	if author == "" {
		author = handle
	}

	candidate := ingest.Candidate{
		Source:      sourceName,
		Title:       makeTitle(text),
		Summary:     truncate(text, summaryLimit),
		Author:      author,
		PublishedAt: publishedAt,
		RawText:     text,
	}
	if href, ok := sel.Find(".tgme_widget_message_date").First().Attr("href"); ok {
		candidate.URL = href
	}

	return candidate, true
}

// makeTitle derives a headline from the first 100 characters of the message,
// cut back to the last word boundary when that leaves at least half of it.
func makeTitle(text string) string {
	runes := []rune(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(text[:idx])
		if firstLine != "" {
			runes = []rune(firstLine)
		}
	}
	if len(runes) <= titleLimit {
		return string(runes)
	}

	title := string(runes[:titleLimit])
	if lastSpace := strings.LastIndex(title, " "); lastSpace > titleLimit/2 {
		title = title[:lastSpace]
	}
	return title + "..."
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// Ensure Adapter implements ingest.Adapter
var _ ingest.Adapter = (*Adapter)(nil)
