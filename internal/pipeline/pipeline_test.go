package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/newsagent/internal/generate"
	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/models"
	"github.com/newsagent/internal/storage"
	"github.com/newsagent/pkg/logger"
)

// fakeRepo is an in-memory storage.Repository for pipeline tests.
type fakeRepo struct {
	mu       sync.Mutex
	items    []*models.Item
	units    []*models.ContentUnit
	sources  []*models.Source
	keywords []*models.Keyword
	nextID   uint

	findUnitsErr   error
	findUnitsFails int // fail this many calls, then succeed
	updateCount    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1}
}

func (f *fakeRepo) id() uint {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeRepo) CreateItemWithUnit(_ context.Context, item *models.Item) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.items {
		if existing.Title == item.Title {
			return 0, storage.ErrDuplicate
		}
		if item.URL != nil && existing.URL != nil && *existing.URL == *item.URL {
			return 0, storage.ErrDuplicate
		}
	}

	item.ID = f.id()
	item.CreatedAt = time.Now()
	f.items = append(f.items, item)

	unit := &models.ContentUnit{
		ID:        f.id(),
		ItemID:    item.ID,
		Item:      item,
		Status:    models.UnitStatusNew,
		CreatedAt: time.Now(),
	}
	f.units = append(f.units, unit)
	return item.ID, nil
}

func (f *fakeRepo) ItemExists(_ context.Context, url, title string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if url != "" && item.URL != nil && *item.URL == url {
			return true, nil
		}
		if item.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) GetItemByID(_ context.Context, id uint) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeRepo) ListItems(context.Context, storage.ItemFilter) ([]*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Item(nil), f.items...), nil
}

func (f *fakeRepo) FindUnitsByStatus(_ context.Context, status models.UnitStatus) ([]*models.ContentUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findUnitsFails > 0 {
		f.findUnitsFails--
		return nil, errors.New("transient store error")
	}
	if f.findUnitsErr != nil {
		return nil, f.findUnitsErr
	}
	var out []*models.ContentUnit
	for _, unit := range f.units {
		if unit.Status == status {
			out = append(out, unit)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetUnitByID(_ context.Context, id uint) (*models.ContentUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, unit := range f.units {
		if unit.ID == id {
			return unit, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeRepo) UpdateUnit(_ context.Context, unit *models.ContentUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCount++
	for i, existing := range f.units {
		if existing.ID == unit.ID {
			f.units[i] = unit
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeRepo) CreateSource(_ context.Context, source *models.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	source.ID = f.id()
	f.sources = append(f.sources, source)
	return nil
}

func (f *fakeRepo) GetSourceByID(_ context.Context, id uint) (*models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, src := range f.sources {
		if src.ID == id {
			return src, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeRepo) ListSources(_ context.Context, enabledOnly bool) ([]*models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Source
	for _, src := range f.sources {
		if enabledOnly && !src.Enabled {
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

func (f *fakeRepo) UpdateSource(context.Context, *models.Source) error { return nil }
func (f *fakeRepo) DeleteSource(context.Context, uint) error          { return nil }

func (f *fakeRepo) CreateKeyword(_ context.Context, keyword *models.Keyword) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	keyword.ID = f.id()
	f.keywords = append(f.keywords, keyword)
	return nil
}

func (f *fakeRepo) ListKeywords(context.Context) ([]*models.Keyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Keyword(nil), f.keywords...), nil
}

func (f *fakeRepo) DeleteKeyword(context.Context, uint) error { return nil }
func (f *fakeRepo) Close() error                              { return nil }
func (f *fakeRepo) Migrate() error                            { return nil }

var _ storage.Repository = (*fakeRepo)(nil)

// fakeAdapter serves canned candidates for every website source.
type fakeAdapter struct {
	candidates []ingest.Candidate
	err        error
	kind       models.SourceKind
	fetches    int
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) Matches(src *models.Source) bool {
	return src.Kind == a.kind
}

func (a *fakeAdapter) Fetch(context.Context, *models.Source, int) ([]ingest.Candidate, error) {
	a.fetches++
	if a.err != nil {
		return nil, a.err
	}
	return a.candidates, nil
}

// countingGenerator records invocations.
type countingGenerator struct {
	text  string
	err   error
	calls int
}

func (g *countingGenerator) Generate(context.Context, *models.Item) (string, error) {
	g.calls++
	return g.text, g.err
}

// fakePublisher records published texts.
type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []string
	block     chan struct{} // when set, Publish waits for it to close
	entered   chan struct{} // when set, closed once Publish is reached
	enterOnce sync.Once
}

func (p *fakePublisher) Publish(_ context.Context, text, _ string) error {
	if p.entered != nil {
		p.enterOnce.Do(func() { close(p.entered) })
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, text)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func testCandidate() ingest.Candidate {
	return ingest.Candidate{
		Source:      "technews",
		Title:       "New compiler released for systems language",
		Summary:     "A team announced a new optimizing compiler",
		URL:         "https://x/1",
		Author:      "editorial",
		PublishedAt: time.Now(),
	}
}

func newTestPipeline(repo *fakeRepo, adapters []ingest.Adapter, gen generate.Generator, pub *fakePublisher) *Pipeline {
	registry := ingest.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	if pub == nil {
		pub = &fakePublisher{}
	}
	return New(repo, registry, gen, pub, testLogger())
}
