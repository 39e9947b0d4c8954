package pipeline

import (
	"context"
	"time"

	"github.com/newsagent/internal/classifier"
	"github.com/newsagent/internal/models"
)

// GenerateResult contains the results of a generate pass
type GenerateResult struct {
	Processed int
	Generated int
	Rejected  int
	Failed    int
	Duration  time.Duration
}

// RunGenerate processes every unit in status new: rejected units (ads, no
// keyword match) and generation failures go to failed, the rest get their
// text and move to generated. Every outcome is committed individually.
func (p *Pipeline) RunGenerate(ctx context.Context) (*GenerateResult, error) {
	startTime := time.Now()
	result := &GenerateResult{}
	log := p.log.WithPass(PassGenerate)

	units, err := p.repo.FindUnitsByStatus(ctx, models.UnitStatusNew)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		log.Debug().Msg("No new units to generate")
		result.Duration = time.Since(startTime)
		return result, nil
	}

	keywords, err := p.repo.ListKeywords(ctx)
	if err != nil {
		return nil, err
	}
	words := make([]string, 0, len(keywords))
	for _, k := range keywords {
		words = append(words, k.Word)
	}

	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		result.Processed++

		item := unit.Item
		if item == nil {
			log.Warn().Uint("unit_id", unit.ID).Msg("Unit has no item, marking failed")
			p.failUnit(ctx, unit, "item record missing")
			result.Failed++
			continue
		}

		if classifier.IsAdvertisement(item.Title, item.Summary, item.Author) {
			log.Info().Uint("item_id", item.ID).Str("title", item.Title).Msg("Rejected as advertisement")
			p.failUnit(ctx, unit, "rejected: advertisement")
			result.Rejected++
			continue
		}
		if !classifier.MatchesKeywords(item.Title, item.Summary, words) {
			log.Info().Uint("item_id", item.ID).Str("title", item.Title).Msg("Rejected by keyword filter")
			p.failUnit(ctx, unit, "rejected: no keyword match")
			result.Rejected++
			continue
		}

		text, err := p.generator.Generate(ctx, item)
		if err != nil {
			log.Error().Err(err).Uint("item_id", item.ID).Msg("Generation failed")
			p.failUnit(ctx, unit, "generation error: "+err.Error())
			result.Failed++
			continue
		}
		if text == "" {
			log.Warn().Uint("item_id", item.ID).Msg("No generator produced text")
			p.failUnit(ctx, unit, "no text produced")
			result.Failed++
			continue
		}

		unit.GeneratedText = text
		unit.Status = models.UnitStatusGenerated
		unit.ErrorMessage = ""
		if err := p.repo.UpdateUnit(ctx, unit); err != nil {
			log.Error().Err(err).Uint("unit_id", unit.ID).Msg("Failed to persist generated unit")
			result.Failed++
			continue
		}
		result.Generated++

		log.Info().Uint("unit_id", unit.ID).Uint("item_id", item.ID).Msg("Unit generated")
	}

	result.Duration = time.Since(startTime)

	log.Info().
		Int("processed", result.Processed).
		Int("generated", result.Generated).
		Int("rejected", result.Rejected).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Generate completed")

	return result, nil
}

// failUnit moves a unit to the terminal failed state and commits it. A
// failed commit is logged and left alone; the unit stays new and the next
// pass retries the same decision.
func (p *Pipeline) failUnit(ctx context.Context, unit *models.ContentUnit, reason string) {
	unit.Status = models.UnitStatusFailed
	unit.ErrorMessage = reason
	if err := p.repo.UpdateUnit(ctx, unit); err != nil {
		p.log.Error().Err(err).Uint("unit_id", unit.ID).Msg("Failed to persist failed status")
	}
}
