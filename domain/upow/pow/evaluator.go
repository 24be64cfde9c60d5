package pow

import (
	"context"

	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matmul"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/pkg/errors"
)

// Candidate is the outcome of evaluating one nonce.
type Candidate struct {
	Nonce    seed.Nonce
	Solution *Solution
	Hash     difficulty.Hash
	Score    int

	// Accelerated is set when the product may have come from the engine's
	// accelerated path.
	Accelerated bool

	// Pair holds operands supplied by the challenge server. It is nil when
	// the operands were expanded from the seed.
	Pair *matrix.Pair
}

// Evaluator runs the per-nonce pipeline for one worker: inject the nonce,
// expand, multiply, build the solution and score it. Its buffers are
// worker-local, so an Evaluator must not be shared between goroutines; the
// Engine it uses may be.
type Evaluator struct {
	base     seed.Seed
	current  seed.Seed
	xof      matrix.XOF
	expander *matrix.Expander
	engine   *matmul.Engine
}

// NewEvaluator returns an evaluator for base. A nil xof selects BLAKE3.
func NewEvaluator(base seed.Seed, engine *matmul.Engine, xof matrix.XOF) *Evaluator {
	if xof == nil {
		xof = matrix.Blake3XOF{}
	}
	return &Evaluator{
		base:     base,
		xof:      xof,
		expander: matrix.NewExpander(xof),
		engine:   engine,
	}
}

// Evaluate computes the candidate for nonce.
func (e *Evaluator) Evaluate(nonce seed.Nonce) (*Candidate, error) {
	e.current = e.base
	e.current.SetNonce(nonce)
	pair := e.expander.Expand(&e.current)
	return evaluatePair(e.engine, &e.current, pair)
}

// Verify independently recomputes c with the scalar path. If c came from
// the accelerated path with a wrong product, the accelerated path is disabled
// and c is rescored from the exact product.
func (e *Evaluator) Verify(c *Candidate) error {
	if c == nil || c.Solution == nil {
		return errors.New("candidate has no solution")
	}
	s := c.Solution.Seed()
	return reconcile(e.engine, c, e.expander.Expand(&s))
}

func evaluatePair(engine *matmul.Engine, s *seed.Seed, pair *matrix.Pair) (*Candidate, error) {
	accelerated := engine.Accelerated()
	product, err := engine.Multiply(pair)
	if err != nil {
		return nil, err
	}
	candidate, err := newCandidate(s, product)
	if err != nil {
		return nil, err
	}
	candidate.Accelerated = accelerated
	return candidate, nil
}

func newCandidate(s *seed.Seed, product *matrix.Product) (*Candidate, error) {
	solution, err := BuildSolution(s, product)
	if err != nil {
		return nil, err
	}
	hash := solution.Hash()
	return &Candidate{
		Nonce:    s.Nonce(),
		Solution: solution,
		Hash:     hash,
		Score:    difficulty.Score(hash),
	}, nil
}

// VerifySolution recomputes the product of the solution's seed with the
// scalar path and checks it against the embedded product. It returns the
// solution hash.
func VerifySolution(solution *Solution, xof matrix.XOF) (difficulty.Hash, error) {
	s := solution.Seed()
	pair := matrix.NewExpander(xof).Expand(&s)
	return verifyAgainst(solution, pair)
}

func verifyAgainst(solution *Solution, pair *matrix.Pair) (difficulty.Hash, error) {
	expected, err := matmul.Scalar(pair)
	if err != nil {
		return difficulty.Hash{}, err
	}
	if !expected.Equal(solution.Product()) {
		return difficulty.Hash{}, errors.Errorf("solution for nonce %s carries a wrong product", solution.Nonce())
	}
	return solution.Hash(), nil
}

// reconcile verifies c against the exact product of pair. A divergence on a
// candidate from the accelerated path disables that path on engine and
// replaces c with the exact candidate.
func reconcile(engine *matmul.Engine, c *Candidate, pair *matrix.Pair) error {
	if !c.Accelerated {
		return verifyCandidateAgainst(c, pair)
	}
	exact, err := matmul.Scalar(pair)
	if err != nil {
		return err
	}
	err = engine.Reconcile(exact, c.Solution.Product())
	if err == nil {
		return checkCandidate(c, c.Solution.Hash())
	}
	if !errors.Is(err, matmul.ErrPrecisionMismatch) {
		return err
	}
	log.Warnf("Candidate for nonce %s had an inexact product, rescoring it on the scalar path", c.Nonce)
	s := c.Solution.Seed()
	rescored, err := newCandidate(&s, exact)
	if err != nil {
		return err
	}
	rescored.Pair = c.Pair
	*c = *rescored
	return nil
}

// VerifyCandidate checks that c is reproducible: its product is exact, its
// hash and score match, and its nonce is the one embedded in the solution.
func VerifyCandidate(c *Candidate, xof matrix.XOF) error {
	if c == nil || c.Solution == nil {
		return errors.New("candidate has no solution")
	}
	if c.Pair != nil {
		return verifyCandidateAgainst(c, c.Pair)
	}
	hash, err := VerifySolution(c.Solution, xof)
	if err != nil {
		return err
	}
	return checkCandidate(c, hash)
}

func verifyCandidateAgainst(c *Candidate, pair *matrix.Pair) error {
	hash, err := verifyAgainst(c.Solution, pair)
	if err != nil {
		return err
	}
	return checkCandidate(c, hash)
}

func checkCandidate(c *Candidate, hash difficulty.Hash) error {
	if hash != c.Hash {
		return errors.Errorf("candidate hash %s does not match recomputed %s", c.Hash, hash)
	}
	if difficulty.Score(hash) != c.Score {
		return errors.Errorf("candidate score %d does not match recomputed %d", c.Score, difficulty.Score(hash))
	}
	if c.Solution.Nonce() != c.Nonce {
		return errors.Errorf("candidate nonce %s does not match solution nonce %s", c.Nonce, c.Solution.Nonce())
	}
	return nil
}

// SeedSource supplies fresh challenges with server-computed operands.
type SeedSource interface {
	FetchSeedWithMatrices(ctx context.Context) (seed.Seed, *matrix.Pair, error)
}

// RefetchEvaluator fetches a fresh seed and its operands for every
// evaluation instead of deriving them from a nonce. The nonce passed to
// Evaluate only counts evaluations; the candidate carries the nonce sent by
// the server.
type RefetchEvaluator struct {
	ctx    context.Context
	source SeedSource
	engine *matmul.Engine
}

// NewRefetchEvaluator returns a RefetchEvaluator fetching from source.
func NewRefetchEvaluator(ctx context.Context, source SeedSource, engine *matmul.Engine) *RefetchEvaluator {
	return &RefetchEvaluator{ctx: ctx, source: source, engine: engine}
}

// Evaluate fetches a challenge and evaluates it.
func (e *RefetchEvaluator) Evaluate(_ seed.Nonce) (*Candidate, error) {
	s, pair, err := e.source.FetchSeedWithMatrices(e.ctx)
	if err != nil {
		return nil, err
	}
	log.Tracef("Fetched challenge with nonce %s", s.Nonce())
	candidate, err := evaluatePair(e.engine, &s, pair)
	if err != nil {
		return nil, err
	}
	candidate.Pair = pair
	return candidate, nil
}

// Verify recomputes c against the server-supplied operands, rescoring it
// like Evaluator.Verify when the accelerated path diverged.
func (e *RefetchEvaluator) Verify(c *Candidate) error {
	if c == nil || c.Solution == nil || c.Pair == nil {
		return errors.New("candidate has no solution or operands")
	}
	return reconcile(e.engine, c, c.Pair)
}
