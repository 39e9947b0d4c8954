// Package pipeline implements the ingest -> generate -> publish state
// machine over content units. Each pass is idempotent over its status
// partition and commits per item, so an abort between items loses nothing:
// committed units keep their new status, the rest are picked up by the next
// scheduled pass.
package pipeline

import (
	"github.com/newsagent/internal/generate"
	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/publish"
	"github.com/newsagent/internal/storage"
	"github.com/newsagent/pkg/logger"
)

const defaultFetchLimit = 50

// Pipeline wires the store and the external adapters into the three passes.
// All dependencies are injected; nothing here owns process-wide state.
type Pipeline struct {
	repo       storage.Repository
	registry   *ingest.Registry
	generator  generate.Generator
	publisher  publish.Publisher
	fetchLimit int
	log        *logger.Logger
}

// New creates a pipeline
func New(
	repo storage.Repository,
	registry *ingest.Registry,
	generator generate.Generator,
	publisher publish.Publisher,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		repo:       repo,
		registry:   registry,
		generator:  generator,
		publisher:  publisher,
		fetchLimit: defaultFetchLimit,
		log:        log.WithComponent("pipeline"),
	}
}

// SetFetchLimit overrides the per-source candidate limit for ingest.
func (p *Pipeline) SetFetchLimit(limit int) {
	p.fetchLimit = limit
}
