package search

import (
	"context"
	"strconv"
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/Hoosat-Oy/htnupow/util/panics"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var spawn = panics.GoroutineWrapperFunc(log)

// Run searches for a nonce whose candidate meets cfg.Target. It returns when
// a verified winner is found, the budget is exhausted or ctx is cancelled,
// and no worker goroutine outlives it. An error is returned only when the
// search could not start.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg.NewEvaluator == nil {
		return nil, errors.WithStack(ErrNoEvaluator)
	}
	cfg = cfg.normalized()

	evaluators := make([]Evaluator, cfg.Workers)
	for i := range evaluators {
		evaluator, err := cfg.NewEvaluator(i)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create the evaluator of worker %d", i)
		}
		evaluators[i] = evaluator
	}

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	agg := newAggregator(cfg.Target, cfg.Iterations, cancel)

	log.Infof("Searching for %d bits with %d %s workers (batch %d, budget %s) from nonce %s",
		cfg.Target, cfg.Workers, cfg.Partition, cfg.BatchSize, budgetString(cfg.Iterations), cfg.StartNonce)

	start := time.Now()
	reporterDone := startReporter(searchCtx, cfg, agg, start)

	// No worker error is fatal: evaluation errors are counted and backed off,
	// so worker.run always returns nil.
	group, groupCtx := errgroup.WithContext(searchCtx)
	for i, evaluator := range evaluators {
		w := &worker{
			id:        i,
			cfg:       cfg,
			agg:       agg,
			evaluator: evaluator,
		}
		group.Go(func() error {
			return w.run(groupCtx)
		})
	}
	err := group.Wait()
	agg.halt()
	<-reporterDone

	if err != nil {
		return nil, err
	}

	result := agg.result(StateExhausted)
	switch {
	case result.Candidate != nil:
		result.State = StateFound
	case ctx.Err() != nil:
		result.State = StateCancelled
	}
	result.Elapsed = time.Since(start)
	emitProgress(cfg, agg, start, time.Now())

	log.Infof("Search %s after %d evaluations in %s (%.2f/s), best score %d",
		result.State, result.Evaluations, result.Elapsed.Round(time.Millisecond), result.Rate(), result.BestScore)
	return result, nil
}

func budgetString(iterations uint64) string {
	if iterations == 0 {
		return "unbounded"
	}
	return strconv.FormatUint(iterations, 10)
}

type worker struct {
	id        int
	cfg       *Config
	agg       *aggregator
	evaluator Evaluator

	// next is the offset of the next nonce of a disjoint range.
	next    uint64
	backoff time.Duration
}

func (w *worker) run(ctx context.Context) error {
	for {
		first, count, ok := w.claim()
		if !ok {
			return nil
		}
		for i := uint64(0); i < count; i++ {
			if ctx.Err() != nil || w.agg.isStopped() {
				return nil
			}
			if !w.evaluate(ctx, first.Add(i)) {
				return nil
			}
		}
	}
}

// claim returns the next batch of nonces for this worker.
func (w *worker) claim() (seed.Nonce, uint64, bool) {
	offset, count, ok := w.agg.claim(w.cfg.BatchSize)
	if !ok {
		return seed.Nonce{}, 0, false
	}
	if w.cfg.Partition == PartitionShared {
		return w.cfg.StartNonce.Add(offset), count, true
	}

	rangeSize := uint64(1) << DisjointRangeShift
	if w.next >= rangeSize {
		log.Warnf("Worker %d exhausted its nonce range", w.id)
		return seed.Nonce{}, 0, false
	}
	if remaining := rangeSize - w.next; count > remaining {
		count = remaining
	}
	first := w.cfg.StartNonce.Add(uint64(w.id) << DisjointRangeShift).Add(w.next)
	w.next += count
	return first, count, true
}

// evaluate runs one nonce and reports it. It returns false once the search
// is over.
func (w *worker) evaluate(ctx context.Context, nonce seed.Nonce) bool {
	candidate, err := w.evaluator.Evaluate(nonce)
	if err == nil && candidate.Score >= int(w.cfg.Target) {
		err = w.evaluator.Verify(candidate)
		if err != nil {
			err = errors.Wrapf(err, "winning candidate for nonce %s failed verification", nonce)
		}
	}
	if err != nil {
		w.agg.reportError()
		log.Debugf("Worker %d failed to evaluate nonce %s: %s", w.id, nonce, err)
		return w.sleepBackoff(ctx)
	}
	w.backoff = 0
	return w.agg.report(candidate)
}

func (w *worker) sleepBackoff(ctx context.Context) bool {
	if w.backoff == 0 {
		w.backoff = initialErrorBackoff
	} else {
		w.backoff *= 2
		if w.backoff > maxErrorBackoff {
			w.backoff = maxErrorBackoff
		}
	}
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// startReporter emits progress at cfg.ReportInterval until ctx is done. The
// returned channel is closed once the reporter has exited.
func startReporter(ctx context.Context, cfg *Config, agg *aggregator, start time.Time) <-chan struct{} {
	done := make(chan struct{})
	spawn("search.reporter", func() {
		defer close(done)

		ticker := time.NewTicker(cfg.ReportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				emitProgress(cfg, agg, start, now)
			}
		}
	})
	return done
}

func emitProgress(cfg *Config, agg *aggregator, start time.Time, now time.Time) {
	if cfg.Sink == nil {
		return
	}
	cfg.Sink.Report(newProgress(cfg.Target, agg.evaluations.Load(), int(agg.bestScore.Load()), now.Sub(start), now))
}
