package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/models"
	"github.com/newsagent/pkg/logger"
	"github.com/newsagent/pkg/ratelimit"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0 Safari/537.36"

// Adapter scrapes article listings from plain website sources. It extracts
// one candidate per <article> element, which covers the common news-site
// layout without per-site selectors.
type Adapter struct {
	client  *http.Client
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
}

// New creates a web adapter; a nil client gets a 20s-timeout default
func New(client *http.Client, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Adapter{
		client:  client,
		limiter: limiter,
		log:     log.WithComponent("ingest.web"),
	}
}

// Name returns "web"
func (a *Adapter) Name() string {
	return "web"
}

// Matches accepts any website source; register after the RSS adapter so feed
// addresses are claimed first.
func (a *Adapter) Matches(src *models.Source) bool {
	return src.Kind == models.SourceKindWebsite
}

// Fetch retrieves candidates from the page
func (a *Adapter) Fetch(ctx context.Context, src *models.Source, limit int) ([]ingest.Candidate, error) {
	if err := a.limiter.Wait(ctx, ratelimit.LimiterWeb); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	doc, base, err := a.fetchDocument(ctx, src.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src.Name, err)
	}

	var candidates []ingest.Candidate

	doc.Find("article").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if limit > 0 && len(candidates) >= limit {
			return false
		}

		candidate := a.extractCandidate(sel, base, src.Name)
		if candidate.Title == "" {
			return true
		}
		candidates = append(candidates, candidate)
		return true
	})

	a.log.Info().
		Int("count", len(candidates)).
		Str("source", src.Name).
		Msg("Scraped page candidates")

	return candidates, nil
}

func (a *Adapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, resp.Request.URL, nil
}

func (a *Adapter) extractCandidate(sel *goquery.Selection, base *url.URL, sourceName string) ingest.Candidate {
	heading := sel.Find("h1, h2, h3").First()

	candidate := ingest.Candidate{
		Source:      sourceName,
		Title:       strings.TrimSpace(heading.Text()),
		Summary:     strings.TrimSpace(sel.Find("p").First().Text()),
		Author:      strings.TrimSpace(sel.Find("[rel=author], .author").First().Text()),
		PublishedAt: time.Now(),
	}

	link := heading.Find("a").First()
	if link.Length() == 0 {
		link = sel.Find("a[href]").First()
	}
	if href, ok := link.Attr("href"); ok {
		candidate.URL = resolveURL(base, href)
	}

	if img, ok := sel.Find("img").First().Attr("src"); ok {
		candidate.Image = resolveURL(base, img)
	}

	if datetime, ok := sel.Find("time").First().Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, datetime); err == nil {
			candidate.PublishedAt = parsed
		}
	}

	return candidate
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Ensure Adapter implements ingest.Adapter
var _ ingest.Adapter = (*Adapter)(nil)
