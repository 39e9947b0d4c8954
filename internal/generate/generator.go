// Package generate turns admitted items into publishable channel posts.
package generate

import (
	"context"

	"github.com/newsagent/internal/models"
)

// Generator produces publishable text for an item. Implementations return an
// empty string (with a nil error) for ordinary provider failures - rate
// limits, network errors, missing credentials - so the pipeline can fall
// back to the local composer. A non-nil error is reserved for unexpected
// conditions.
type Generator interface {
	Generate(ctx context.Context, item *models.Item) (string, error)
}

// Chain tries each generator in order and returns the first non-empty text.
type Chain struct {
	generators []Generator
}

// NewChain creates a generator chain
func NewChain(generators ...Generator) *Chain {
	return &Chain{generators: generators}
}

// Generate returns the first non-empty result from the chain
func (c *Chain) Generate(ctx context.Context, item *models.Item) (string, error) {
	for _, g := range c.generators {
		text, err := g.Generate(ctx, item)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}

// Ensure Chain implements Generator
var _ Generator = (*Chain)(nil)
