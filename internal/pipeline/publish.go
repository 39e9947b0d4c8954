package pipeline

import (
	"context"
	"time"

	"github.com/newsagent/internal/models"
)

// PublishResult contains the results of a publish pass
type PublishResult struct {
	Processed int
	Published int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// RunPublish delivers every generated unit with non-empty text to the
// destination channel. Outcomes are committed per unit; a delivery failure
// moves that unit to failed and the pass continues.
func (p *Pipeline) RunPublish(ctx context.Context) (*PublishResult, error) {
	startTime := time.Now()
	result := &PublishResult{}
	log := p.log.WithPass(PassPublish)

	units, err := p.repo.FindUnitsByStatus(ctx, models.UnitStatusGenerated)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		log.Debug().Msg("No generated units to publish")
		result.Duration = time.Since(startTime)
		return result, nil
	}

	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		result.Processed++

		if unit.GeneratedText == "" {
			log.Warn().Uint("unit_id", unit.ID).Msg("Generated unit has no text, skipping")
			result.Skipped++
			continue
		}

		if err := p.publisher.Publish(ctx, unit.GeneratedText, ""); err != nil {
			log.Error().Err(err).Uint("unit_id", unit.ID).Msg("Publish failed")
			unit.Status = models.UnitStatusFailed
			unit.ErrorMessage = "publish error: " + err.Error()
			if uerr := p.repo.UpdateUnit(ctx, unit); uerr != nil {
				log.Error().Err(uerr).Uint("unit_id", unit.ID).Msg("Failed to persist failed status")
			}
			result.Failed++
			continue
		}

		now := time.Now()
		unit.Status = models.UnitStatusPublished
		unit.PublishedAt = &now
		unit.ErrorMessage = ""
		if err := p.repo.UpdateUnit(ctx, unit); err != nil {
			log.Error().Err(err).Uint("unit_id", unit.ID).Msg("Failed to persist published status")
			result.Failed++
			continue
		}
		result.Published++

		log.Info().Uint("unit_id", unit.ID).Msg("Unit published")
	}

	result.Duration = time.Since(startTime)

	log.Info().
		Int("processed", result.Processed).
		Int("published", result.Published).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Publish completed")

	return result, nil
}
