package search

import (
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
)

// State is the state of a search.
type State int

// Search states. A search moves from Idle to Running and ends in one of
// Found, Exhausted or Cancelled.
const (
	StateIdle State = iota
	StateRunning
	StateFound
	StateExhausted
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateRunning:   "running",
	StateFound:     "found",
	StateExhausted: "exhausted",
	StateCancelled: "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Result is the outcome of a search. Candidate is set only in StateFound and
// has been verified.
type Result struct {
	State     State
	Candidate *pow.Candidate

	// BestScore is -1 when nothing was evaluated.
	BestScore   int
	BestNonce   seed.Nonce
	Evaluations uint64
	Errors      uint64
	Elapsed     time.Duration
}

// Rate returns the achieved evaluations per second.
func (r *Result) Rate() float64 {
	seconds := r.Elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(r.Evaluations) / seconds
}
