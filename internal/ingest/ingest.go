package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/newsagent/internal/models"
)

// Candidate is a normalized record produced by an ingestion adapter before
// deduplication and storage. Adapters must not emit candidates with an empty
// title.
type Candidate struct {
	Source      string
	Title       string
	Summary     string
	URL         string
	Image       string
	Author      string
	PublishedAt time.Time
	RawText     string
}

// Adapter fetches candidates for a configured source. Implementations own
// their network calls, parsing and basic hygiene; failures surface as an
// error (or an empty slice), never a partial record.
type Adapter interface {
	// Name returns the adapter name for logging
	Name() string

	// Matches reports whether this adapter can handle the given source
	Matches(src *models.Source) bool

	// Fetch retrieves up to limit candidates from the source
	Fetch(ctx context.Context, src *models.Source, limit int) ([]Candidate, error)
}

// Registry selects an adapter for a source by its kind and address.
// Adapters are tried in registration order; the first match wins, so
// register the more specific ones first.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make([]Adapter, 0),
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// ForSource returns the first adapter matching the source
func (r *Registry) ForSource(src *models.Source) (Adapter, error) {
	for _, a := range r.adapters {
		if a.Matches(src) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("no ingest adapter for source %q (kind %s, address %s)", src.Name, src.Kind, src.Address)
}
