package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/newsagent/pkg/logger"
)

// Pass names
const (
	PassIngest   = "ingest"
	PassGenerate = "generate"
	PassPublish  = "publish"
)

// ErrPassRunning is returned when a pass is invoked while another instance
// of the same pass is still active. Different passes may overlap freely;
// two instances of the same pass must not.
var ErrPassRunning = errors.New("pass already running")

// ChainFunc receives the name of a follow-up pass the runner wants
// scheduled. The runner never executes the follow-up itself, so callers
// (and tests) observe chaining without side effects.
type ChainFunc func(pass string)

// Runner executes passes with per-pass mutual exclusion, bounded retry on
// unexpected top-level errors, and observable chaining.
type Runner struct {
	pipeline *Pipeline
	locks    map[string]*sync.Mutex
	retries  int
	backoff  time.Duration
	chain    ChainFunc
	log      *logger.Logger
}

// NewRunner creates a runner with the default retry policy (3 attempts,
// one minute apart).
func NewRunner(p *Pipeline, log *logger.Logger) *Runner {
	return &Runner{
		pipeline: p,
		locks: map[string]*sync.Mutex{
			PassIngest:   {},
			PassGenerate: {},
			PassPublish:  {},
		},
		retries: 3,
		backoff: time.Minute,
		log:     log.WithComponent("runner"),
	}
}

// SetRetryPolicy overrides the attempt count and backoff delay.
func (r *Runner) SetRetryPolicy(retries int, backoff time.Duration) {
	r.retries = retries
	r.backoff = backoff
}

// OnChain registers the hook invoked when a pass wants a follow-up scheduled.
func (r *Runner) OnChain(fn ChainFunc) {
	r.chain = fn
}

// Run executes one pass to completion. Per-item failures are absorbed inside
// the pass; only unexpected top-level errors reach the retry loop here.
// Whatever individual items were committed before such an error keep their
// status across retries.
func (r *Runner) Run(ctx context.Context, pass string) error {
	mu, ok := r.locks[pass]
	if !ok {
		return fmt.Errorf("unknown pass %q", pass)
	}
	if !mu.TryLock() {
		return fmt.Errorf("%s: %w", pass, ErrPassRunning)
	}
	defer mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		err := r.runOnce(ctx, pass)
		if err == nil {
			return nil
		}
		lastErr = err
		r.log.Error().
			Err(err).
			Str("pass", pass).
			Int("attempt", attempt).
			Msg("Pass attempt failed")

		if attempt < r.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		}
	}
	return fmt.Errorf("pass %s failed after %d attempts: %w", pass, r.retries, lastErr)
}

func (r *Runner) runOnce(ctx context.Context, pass string) error {
	switch pass {
	case PassIngest:
		result, err := r.pipeline.RunIngest(ctx)
		if err != nil {
			return err
		}
		if result.Saved > 0 {
			r.schedule(PassGenerate)
		}
		return nil

	case PassGenerate:
		result, err := r.pipeline.RunGenerate(ctx)
		if err != nil {
			return err
		}
		if result.Generated > 0 {
			r.schedule(PassPublish)
		}
		return nil

	case PassPublish:
		_, err := r.pipeline.RunPublish(ctx)
		return err

	default:
		return fmt.Errorf("unknown pass %q", pass)
	}
}

func (r *Runner) schedule(pass string) {
	if r.chain == nil {
		return
	}
	r.log.Debug().Str("pass", pass).Msg("Scheduling follow-up pass")
	r.chain(pass)
}
