package app

import (
	"encoding/json"
	"io"

	"github.com/Hoosat-Oy/htnupow/domain/miningmanager/search"
	"github.com/pkg/errors"
)

// resultLine is the machine-readable summary of one search.
type resultLine struct {
	Found        bool    `json:"found"`
	State        string  `json:"state"`
	Iterations   uint64  `json:"iterations"`
	HashesPerSec float64 `json:"hashes_per_sec"`
	BestBits     int     `json:"best_bits"`
	Errors       uint64  `json:"errors"`
	Nonce        string  `json:"nonce,omitempty"`
	SolutionHex  string  `json:"solution_hex,omitempty"`
	Valid        *bool   `json:"valid,omitempty"`
	ValidMath    *bool   `json:"valid_math,omitempty"`
}

func newResultLine(result *search.Result) *resultLine {
	line := &resultLine{
		Found:        result.State == search.StateFound,
		State:        result.State.String(),
		Iterations:   result.Evaluations,
		HashesPerSec: result.Rate(),
		BestBits:     result.BestScore,
		Errors:       result.Errors,
	}
	if result.Evaluations > 0 {
		line.Nonce = result.BestNonce.String()
	}
	if result.Candidate != nil {
		line.Nonce = result.Candidate.Nonce.String()
		line.SolutionHex = result.Candidate.Solution.String()
	}
	return line
}

func (l *resultLine) write(out io.Writer) error {
	serialized, err := json.Marshal(l)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = out.Write(append(serialized, '\n'))
	return errors.WithStack(err)
}
