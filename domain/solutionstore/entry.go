package solutionstore

import (
	"time"

	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/pow"
	"github.com/pkg/errors"
)

// Status is the submission status of a journal entry.
type Status string

// Entry statuses.
const (
	// StatusPending entries were found but their submission outcome is not
	// known yet.
	StatusPending Status = "pending"
	// StatusAccepted entries were validated by the challenge server.
	StatusAccepted Status = "accepted"
	// StatusRejected entries were answered with valid=false.
	StatusRejected Status = "rejected"
)

// Outcome is the challenge server's answer to a submission.
type Outcome struct {
	Valid     bool
	ValidMath bool
}

// Entry is one journaled solution.
type Entry struct {
	SolutionHex string    `json:"solution_hex"`
	Nonce       string    `json:"nonce"`
	Score       int       `json:"score"`
	FoundAt     time.Time `json:"found_at"`
	Status      Status    `json:"status"`
	Valid       bool      `json:"valid"`
	ValidMath   bool      `json:"valid_math"`
}

// NewEntry returns a pending entry for a found candidate.
func NewEntry(candidate *pow.Candidate, foundAt time.Time) *Entry {
	return &Entry{
		SolutionHex: candidate.Solution.String(),
		Nonce:       candidate.Nonce.String(),
		Score:       candidate.Score,
		FoundAt:     foundAt.UTC(),
		Status:      StatusPending,
	}
}

// Solution decodes the entry's solution.
func (e *Entry) Solution() (*pow.Solution, error) {
	solution, err := pow.SolutionFromHex(e.SolutionHex)
	if err != nil {
		return nil, errors.Wrap(err, "journal entry holds a malformed solution")
	}
	return solution, nil
}

// Hash returns the difficulty hash identifying the entry.
func (e *Entry) Hash() (difficulty.Hash, error) {
	solution, err := e.Solution()
	if err != nil {
		return difficulty.Hash{}, err
	}
	return solution.Hash(), nil
}
