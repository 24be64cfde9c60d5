package pow

import (
	"encoding/hex"

	"github.com/Hoosat-Oy/htnupow/domain/upow/difficulty"
	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
)

// SolutionSize is the length of a serialized solution: the seed followed by
// the little-endian row-major product.
const SolutionSize = seed.Size + matrix.ProductSize

// Solution is the seed concatenated with its exact product.
type Solution [SolutionSize]byte

// BuildSolution serializes s and c into a new Solution.
func BuildSolution(s *seed.Seed, c *matrix.Product) (*Solution, error) {
	if c.Rows != matrix.M || c.Cols != matrix.N {
		return nil, errors.Errorf("product must be %dx%d, got %dx%d", matrix.M, matrix.N, c.Rows, c.Cols)
	}
	solution := &Solution{}
	copy(solution[:seed.Size], s[:])
	c.PutBytes(solution[seed.Size:])
	return solution, nil
}

// SolutionFromBytes copies raw into a Solution.
func SolutionFromBytes(raw []byte) (*Solution, error) {
	if len(raw) != SolutionSize {
		return nil, errors.Errorf("solution must be %d bytes, got %d", SolutionSize, len(raw))
	}
	solution := &Solution{}
	copy(solution[:], raw)
	return solution, nil
}

// SolutionFromHex decodes a hex-encoded solution.
func SolutionFromHex(s string) (*Solution, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "solution is not valid hex")
	}
	return SolutionFromBytes(raw)
}

// Seed returns the seed part of the solution.
func (s *Solution) Seed() seed.Seed {
	var out seed.Seed
	copy(out[:], s[:seed.Size])
	return out
}

// Nonce returns the nonce embedded in the seed part.
func (s *Solution) Nonce() seed.Nonce {
	sd := s.Seed()
	return sd.Nonce()
}

// Product decodes the product part of the solution.
func (s *Solution) Product() *matrix.Product {
	product, err := matrix.ProductFromBytes(s[seed.Size:], matrix.M, matrix.N)
	if err != nil {
		// The product part always has the right length.
		panic(err)
	}
	return product
}

// Hash returns the difficulty hash of the solution.
func (s *Solution) Hash() difficulty.Hash {
	return difficulty.HashSolution(s[:])
}

// Base58 returns the solution in the encoding used by the validation endpoint.
func (s *Solution) Base58() string {
	return base58.Encode(s[:])
}

// String returns the solution in hex.
func (s *Solution) String() string {
	return hex.EncodeToString(s[:])
}
