package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newsagent/internal/generate"
	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/models"
)

func TestIngestPassSavesAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateSource(ctx, &models.Source{Kind: models.SourceKindWebsite, Name: "technews", Address: "https://x/feed", Enabled: true})

	adapter := &fakeAdapter{kind: models.SourceKindWebsite, candidates: []ingest.Candidate{testCandidate()}}
	p := newTestPipeline(repo, []ingest.Adapter{adapter}, &countingGenerator{}, nil)

	result, err := p.RunIngest(ctx)
	if err != nil {
		t.Fatalf("RunIngest() error = %v", err)
	}
	if result.Saved != 1 {
		t.Fatalf("Saved = %d, want 1", result.Saved)
	}

	units, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusNew)
	if len(units) != 1 {
		t.Fatalf("got %d new units, want 1", len(units))
	}
	if units[0].Item == nil || units[0].Item.Title != "New compiler released for systems language" {
		t.Error("unit not linked to the stored item")
	}

	// Same candidate again: rejected by the dedup gate, nothing created.
	result, err = p.RunIngest(ctx)
	if err != nil {
		t.Fatalf("second RunIngest() error = %v", err)
	}
	if result.Saved != 0 || result.Duplicates != 1 {
		t.Errorf("Saved = %d, Duplicates = %d, want 0 and 1", result.Saved, result.Duplicates)
	}
	if len(repo.items) != 1 {
		t.Errorf("got %d items after duplicate ingest, want 1", len(repo.items))
	}
}

func TestIngestSkipsDisabledSources(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateSource(ctx, &models.Source{Kind: models.SourceKindWebsite, Name: "off", Address: "https://off/feed", Enabled: false})

	adapter := &fakeAdapter{kind: models.SourceKindWebsite, candidates: []ingest.Candidate{testCandidate()}}
	p := newTestPipeline(repo, []ingest.Adapter{adapter}, &countingGenerator{}, nil)

	result, err := p.RunIngest(ctx)
	if err != nil {
		t.Fatalf("RunIngest() error = %v", err)
	}
	if result.SourcesProcessed != 0 || adapter.fetches != 0 {
		t.Error("disabled source must not be fetched")
	}
}

func TestIngestSourceFailureDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateSource(ctx, &models.Source{Kind: models.SourceKindChannel, Name: "broken", Address: "@broken", Enabled: true})
	repo.CreateSource(ctx, &models.Source{Kind: models.SourceKindWebsite, Name: "technews", Address: "https://x/feed", Enabled: true})

	broken := &fakeAdapter{kind: models.SourceKindChannel, err: errors.New("network unreachable")}
	working := &fakeAdapter{kind: models.SourceKindWebsite, candidates: []ingest.Candidate{testCandidate()}}
	p := newTestPipeline(repo, []ingest.Adapter{broken, working}, &countingGenerator{}, nil)

	result, err := p.RunIngest(ctx)
	if err != nil {
		t.Fatalf("RunIngest() error = %v", err)
	}
	if result.Saved != 1 {
		t.Errorf("Saved = %d, want 1 from the working source", result.Saved)
	}
	if len(result.Errors) != 1 {
		t.Errorf("got %d errors, want 1 from the broken source", len(result.Errors))
	}
}

func TestIngestDropsEmptyTitles(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateSource(ctx, &models.Source{Kind: models.SourceKindWebsite, Name: "technews", Address: "https://x/feed", Enabled: true})

	adapter := &fakeAdapter{kind: models.SourceKindWebsite, candidates: []ingest.Candidate{{Source: "technews", Title: ""}}}
	p := newTestPipeline(repo, []ingest.Adapter{adapter}, &countingGenerator{}, nil)

	result, err := p.RunIngest(ctx)
	if err != nil {
		t.Fatalf("RunIngest() error = %v", err)
	}
	if result.Saved != 0 || len(repo.items) != 0 {
		t.Error("candidate without a title must not be stored")
	}
}

func TestGeneratePassMovesUnitForward(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateKeyword(ctx, &models.Keyword{Word: "compiler"})

	c := testCandidate()
	url := c.URL
	repo.CreateItemWithUnit(ctx, &models.Item{Source: c.Source, Title: c.Title, Summary: c.Summary, URL: &url, Author: c.Author})

	gen := &countingGenerator{text: "generated post"}
	p := newTestPipeline(repo, nil, gen, nil)

	result, err := p.RunGenerate(ctx)
	if err != nil {
		t.Fatalf("RunGenerate() error = %v", err)
	}
	if result.Generated != 1 {
		t.Fatalf("Generated = %d, want 1", result.Generated)
	}

	generated, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusGenerated)
	if len(generated) != 1 || generated[0].GeneratedText != "generated post" {
		t.Fatal("unit not moved to generated with text")
	}
	remaining, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusNew)
	if len(remaining) != 0 {
		t.Error("unit still visible in the new partition")
	}
}

func TestGeneratePassIdempotentWhenEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	gen := &countingGenerator{text: "post"}
	p := newTestPipeline(repo, nil, gen, nil)

	result, err := p.RunGenerate(ctx)
	if err != nil {
		t.Fatalf("RunGenerate() error = %v", err)
	}
	if result.Generated != 0 || result.Processed != 0 {
		t.Error("pass over an empty partition must be a no-op")
	}
	if repo.updateCount != 0 {
		t.Errorf("no-op pass performed %d store writes", repo.updateCount)
	}
	if gen.calls != 0 {
		t.Error("generator invoked with nothing to generate")
	}
}

func TestGenerateRejectsAdvertisementWithoutGenerating(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateItemWithUnit(ctx, &models.Item{
		Source:  "spamchannel",
		Title:   "КУПИТЬ СКИДКА!!!",
		Summary: "Call +79991234567",
		Author:  "shop_bot",
	})

	gen := &countingGenerator{text: "should never appear"}
	p := newTestPipeline(repo, nil, gen, nil)

	result, err := p.RunGenerate(ctx)
	if err != nil {
		t.Fatalf("RunGenerate() error = %v", err)
	}
	if result.Rejected != 1 {
		t.Fatalf("Rejected = %d, want 1", result.Rejected)
	}
	if gen.calls != 0 {
		t.Error("generation adapter must not be invoked for rejected items")
	}

	failed, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusFailed)
	if len(failed) != 1 {
		t.Fatal("rejected unit must be in failed state")
	}
}

func TestGenerateRejectsWithoutKeywordMatch(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateKeyword(ctx, &models.Keyword{Word: "quantum"})
	repo.CreateItemWithUnit(ctx, &models.Item{
		Source:  "technews",
		Title:   "Garden tips for the warm summer season",
		Summary: "watering schedules explained in detail",
		Author:  "editorial",
	})

	gen := &countingGenerator{text: "post"}
	p := newTestPipeline(repo, nil, gen, nil)

	result, err := p.RunGenerate(ctx)
	if err != nil {
		t.Fatalf("RunGenerate() error = %v", err)
	}
	if result.Rejected != 1 || gen.calls != 0 {
		t.Error("item without keyword match must be rejected before generation")
	}
}

func TestGenerateFallsBackWhenProviderReturnsNothing(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	url := "https://x/1"
	repo.CreateItemWithUnit(ctx, &models.Item{
		Source:  "technews",
		Title:   "New compiler released for systems language",
		Summary: "A team announced a new optimizing compiler",
		URL:     &url,
		Author:  "editorial",
	})

	// Empty provider chained with the deterministic fallback.
	chain := generate.NewChain(&countingGenerator{}, generate.NewFallback(testLogger()))
	p := newTestPipeline(repo, nil, chain, nil)

	result, err := p.RunGenerate(ctx)
	if err != nil {
		t.Fatalf("RunGenerate() error = %v", err)
	}
	if result.Generated != 1 {
		t.Fatalf("Generated = %d, want 1 via fallback", result.Generated)
	}
	generated, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusGenerated)
	if generated[0].GeneratedText == "" {
		t.Error("fallback text missing")
	}
}

func TestGenerateFailsUnitWhenNoTextProduced(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateItemWithUnit(ctx, &models.Item{
		Source: "technews",
		Title:  "Perfectly ordinary headline here",
		Author: "editorial",
	})

	p := newTestPipeline(repo, nil, &countingGenerator{}, nil)

	result, err := p.RunGenerate(ctx)
	if err != nil {
		t.Fatalf("RunGenerate() error = %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", result.Failed)
	}
	failed, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusFailed)
	if len(failed) != 1 {
		t.Error("unit without generated text must end up failed")
	}
}

func TestPublishPass(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateItemWithUnit(ctx, &models.Item{Source: "technews", Title: "Headline long enough to pass checks", Author: "editorial"})

	units, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusNew)
	units[0].Status = models.UnitStatusGenerated
	units[0].GeneratedText = "the post"
	repo.UpdateUnit(ctx, units[0])

	pub := &fakePublisher{}
	p := newTestPipeline(repo, nil, &countingGenerator{}, pub)

	result, err := p.RunPublish(ctx)
	if err != nil {
		t.Fatalf("RunPublish() error = %v", err)
	}
	if result.Published != 1 {
		t.Fatalf("Published = %d, want 1", result.Published)
	}
	if len(pub.published) != 1 || pub.published[0] != "the post" {
		t.Error("publisher did not receive the generated text")
	}

	published, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusPublished)
	if len(published) != 1 || published[0].PublishedAt == nil {
		t.Error("published unit must carry a publish timestamp")
	}
}

func TestPublishFailureMarksUnitFailed(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateItemWithUnit(ctx, &models.Item{Source: "technews", Title: "Another headline long enough here", Author: "editorial"})

	units, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusNew)
	units[0].Status = models.UnitStatusGenerated
	units[0].GeneratedText = "the post"
	repo.UpdateUnit(ctx, units[0])

	pub := &fakePublisher{err: errors.New("channel unreachable")}
	p := newTestPipeline(repo, nil, &countingGenerator{}, pub)

	result, err := p.RunPublish(ctx)
	if err != nil {
		t.Fatalf("RunPublish() error = %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", result.Failed)
	}
	failed, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusFailed)
	if len(failed) != 1 || failed[0].PublishedAt != nil {
		t.Error("failed unit must stay without a publish timestamp")
	}
}

func TestPublishSkipsUnitsWithoutText(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateItemWithUnit(ctx, &models.Item{Source: "technews", Title: "Headline without any generated text", Author: "editorial"})

	units, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusNew)
	units[0].Status = models.UnitStatusGenerated
	repo.UpdateUnit(ctx, units[0])

	pub := &fakePublisher{}
	p := newTestPipeline(repo, nil, &countingGenerator{}, pub)

	result, err := p.RunPublish(ctx)
	if err != nil {
		t.Fatalf("RunPublish() error = %v", err)
	}
	if result.Skipped != 1 || len(pub.published) != 0 {
		t.Error("unit without text must be skipped, not published")
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateSource(ctx, &models.Source{Kind: models.SourceKindWebsite, Name: "technews", Address: "https://x/feed", Enabled: true})
	repo.CreateKeyword(ctx, &models.Keyword{Word: "compiler"})

	adapter := &fakeAdapter{kind: models.SourceKindWebsite, candidates: []ingest.Candidate{testCandidate()}}
	gen := &countingGenerator{text: "generated channel post"}
	pub := &fakePublisher{}
	p := newTestPipeline(repo, []ingest.Adapter{adapter}, gen, pub)

	if result, _ := p.RunIngest(ctx); result.Saved != 1 {
		t.Fatal("ingest did not admit the candidate")
	}
	if result, _ := p.RunGenerate(ctx); result.Generated != 1 {
		t.Fatal("generate did not produce text")
	}
	result, err := p.RunPublish(ctx)
	if err != nil || result.Published != 1 {
		t.Fatalf("publish failed: %v (published %d)", err, result.Published)
	}

	published, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusPublished)
	if len(published) != 1 || published[0].PublishedAt == nil || published[0].GeneratedText == "" {
		t.Fatal("published unit incomplete")
	}

	// Re-ingest the same candidate: no new items.
	if result, _ := p.RunIngest(ctx); result.Saved != 0 {
		t.Error("duplicate candidate created a second item")
	}
	if len(repo.items) != 1 {
		t.Errorf("got %d items, want 1", len(repo.items))
	}
}

func TestRunnerChainsPasses(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateSource(ctx, &models.Source{Kind: models.SourceKindWebsite, Name: "technews", Address: "https://x/feed", Enabled: true})

	adapter := &fakeAdapter{kind: models.SourceKindWebsite, candidates: []ingest.Candidate{testCandidate()}}
	gen := &countingGenerator{text: "post"}
	p := newTestPipeline(repo, []ingest.Adapter{adapter}, gen, nil)

	runner := NewRunner(p, testLogger())
	runner.SetRetryPolicy(1, 0)

	var chained []string
	runner.OnChain(func(pass string) { chained = append(chained, pass) })

	if err := runner.Run(ctx, PassIngest); err != nil {
		t.Fatalf("ingest run error = %v", err)
	}
	if len(chained) != 1 || chained[0] != PassGenerate {
		t.Fatalf("chained = %v, want [generate]", chained)
	}

	if err := runner.Run(ctx, PassGenerate); err != nil {
		t.Fatalf("generate run error = %v", err)
	}
	if len(chained) != 2 || chained[1] != PassPublish {
		t.Fatalf("chained = %v, want [generate publish]", chained)
	}

	// Nothing admitted: no further chaining.
	chained = nil
	if err := runner.Run(ctx, PassIngest); err != nil {
		t.Fatalf("second ingest run error = %v", err)
	}
	if len(chained) != 0 {
		t.Errorf("chained = %v, want none after a duplicate-only ingest", chained)
	}
}

func TestRunnerRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.findUnitsFails = 2 // first two attempts fail, third succeeds

	p := newTestPipeline(repo, nil, &countingGenerator{text: "post"}, nil)
	runner := NewRunner(p, testLogger())
	runner.SetRetryPolicy(3, time.Millisecond)

	if err := runner.Run(ctx, PassGenerate); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestRunnerExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.findUnitsErr = errors.New("store down")

	p := newTestPipeline(repo, nil, &countingGenerator{}, nil)
	runner := NewRunner(p, testLogger())
	runner.SetRetryPolicy(3, time.Millisecond)

	err := runner.Run(ctx, PassGenerate)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
}

func TestRunnerRefusesConcurrentSamePass(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.CreateItemWithUnit(ctx, &models.Item{Source: "technews", Title: "Headline that is long enough here", Author: "editorial"})

	units, _ := repo.FindUnitsByStatus(ctx, models.UnitStatusNew)
	units[0].Status = models.UnitStatusGenerated
	units[0].GeneratedText = "post"
	repo.UpdateUnit(ctx, units[0])

	block := make(chan struct{})
	entered := make(chan struct{})
	pub := &fakePublisher{block: block, entered: entered}
	p := newTestPipeline(repo, nil, &countingGenerator{}, pub)
	runner := NewRunner(p, testLogger())
	runner.SetRetryPolicy(1, 0)

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, PassPublish) }()

	// Wait until the first run is inside the publisher, then the second
	// invocation of the same pass must be rejected.
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first publish run never reached the publisher")
	}
	if err := runner.Run(ctx, PassPublish); !errors.Is(err, ErrPassRunning) {
		t.Fatalf("second publish run error = %v, want ErrPassRunning", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first publish run error = %v", err)
	}
}
