package search

import (
	"sync"
	"sync/atomic"

	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
)

// aggregator is the only shared mutable state of a search: the nonce
// budget, the best score, the winner and the stop flag.
type aggregator struct {
	target difficulty.Target
	budget uint64
	stop   func()

	issued  atomic.Uint64
	stopped atomic.Bool

	lock      sync.Mutex
	bestNonce seed.Nonce
	winner    *pow.Candidate

	// Mirrors read by the progress reporter without taking the lock.
	evaluations atomic.Uint64
	bestScore   atomic.Int64
	errors      atomic.Uint64
}

func newAggregator(target difficulty.Target, budget uint64, stop func()) *aggregator {
	a := &aggregator{
		target: target,
		budget: budget,
		stop:   stop,
	}
	a.bestScore.Store(-1)
	return a
}

// claim reserves up to n evaluations of the budget and returns the offset of
// the first one in issue order.
func (a *aggregator) claim(n uint64) (offset uint64, count uint64, ok bool) {
	for {
		if a.isStopped() {
			return 0, 0, false
		}
		current := a.issued.Load()
		count = n
		if a.budget > 0 {
			if current >= a.budget {
				return 0, 0, false
			}
			if remaining := a.budget - current; count > remaining {
				count = remaining
			}
		}
		if a.issued.CompareAndSwap(current, current+count) {
			return current, count, true
		}
	}
}

// report records c. It returns false when the search is over, either because
// c won or because another result already ended it, in which case c was
// dropped.
func (a *aggregator) report(c *pow.Candidate) bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.stopped.Load() {
		return false
	}
	a.evaluations.Add(1)
	// Ties keep the first reporter.
	if int64(c.Score) > a.bestScore.Load() {
		a.bestScore.Store(int64(c.Score))
		a.bestNonce = c.Nonce
	}
	if difficulty.Meets(c.Score, a.target) {
		a.winner = c
		a.stopLocked()
		return false
	}
	return true
}

func (a *aggregator) reportError() {
	a.errors.Add(1)
}

func (a *aggregator) halt() {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.stopLocked()
}

func (a *aggregator) stopLocked() {
	if a.stopped.CompareAndSwap(false, true) {
		a.stop()
	}
}

func (a *aggregator) isStopped() bool {
	return a.stopped.Load()
}

func (a *aggregator) result(state State) *Result {
	a.lock.Lock()
	defer a.lock.Unlock()

	return &Result{
		State:       state,
		Candidate:   a.winner,
		BestScore:   int(a.bestScore.Load()),
		BestNonce:   a.bestNonce,
		Evaluations: a.evaluations.Load(),
		Errors:      a.errors.Load(),
	}
}
