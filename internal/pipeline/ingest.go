package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/models"
	"github.com/newsagent/internal/storage"
)

// IngestResult contains the results of an ingest pass
type IngestResult struct {
	SourcesProcessed int
	CandidatesFound  int
	Saved            int
	Duplicates       int
	Errors           []error
	Duration         time.Duration
}

// RunIngest fetches candidates from every enabled source, passes them
// through the dedup gate and stores admitted ones as item + unit pairs. A
// failing source never aborts the remaining sources.
func (p *Pipeline) RunIngest(ctx context.Context) (*IngestResult, error) {
	startTime := time.Now()
	result := &IngestResult{}
	log := p.log.WithPass(PassIngest)

	sources, err := p.repo.ListSources(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		log.Warn().Msg("No enabled sources configured")
		result.Duration = time.Since(startTime)
		return result, nil
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		result.SourcesProcessed++

		adapter, err := p.registry.ForSource(src)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name).Msg("No adapter for source")
			result.Errors = append(result.Errors, err)
			continue
		}

		candidates, err := adapter.Fetch(ctx, src, p.fetchLimit)
		if err != nil {
			log.Error().Err(err).Str("source", src.Name).Str("adapter", adapter.Name()).Msg("Source fetch failed")
			result.Errors = append(result.Errors, err)
			continue
		}
		result.CandidatesFound += len(candidates)

		saved, dups := p.storeCandidates(ctx, candidates, result)
		result.Saved += saved
		result.Duplicates += dups

		log.Info().
			Str("source", src.Name).
			Int("candidates", len(candidates)).
			Int("saved", saved).
			Int("duplicates", dups).
			Msg("Source processed")
	}

	result.Duration = time.Since(startTime)

	log.Info().
		Int("sources", result.SourcesProcessed).
		Int("saved", result.Saved).
		Int("duplicates", result.Duplicates).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Ingest completed")

	return result, nil
}

func (p *Pipeline) storeCandidates(ctx context.Context, candidates []ingest.Candidate, result *IngestResult) (saved, dups int) {
	log := p.log.WithPass(PassIngest)

	for _, c := range candidates {
		if ctx.Err() != nil {
			return saved, dups
		}
		// Adapter hygiene should already guarantee this.
		if c.Title == "" {
			continue
		}

		exists, err := p.repo.ItemExists(ctx, c.URL, c.Title)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if exists {
			dups++
			continue
		}

		item := &models.Item{
			Source:      c.Source,
			Title:       c.Title,
			Summary:     c.Summary,
			Image:       c.Image,
			Author:      c.Author,
			PublishedAt: c.PublishedAt,
			RawText:     c.RawText,
		}
		if c.URL != "" {
			url := c.URL
			item.URL = &url
		}

		_, err = p.repo.CreateItemWithUnit(ctx, item)
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			// Lost the race to a concurrent insert; same outcome as the gate.
			dups++
		case err != nil:
			log.Warn().Err(err).Str("title", c.Title).Msg("Failed to save item")
			result.Errors = append(result.Errors, err)
		default:
			saved++
		}
	}
	return saved, dups
}
