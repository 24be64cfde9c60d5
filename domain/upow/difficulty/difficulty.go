package difficulty

import (
	"encoding/hex"
	"math"
	"math/bits"

	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// HashSize is the size of a solution hash in bytes.
const HashSize = 32

// MaxTarget is the largest meaningful difficulty, a hash of all zeros.
const MaxTarget = HashSize * 8

// ErrInvalidTarget is returned for difficulty targets outside [0, MaxTarget].
var ErrInvalidTarget = errors.New("invalid difficulty target")

// Hash is a 256-bit solution hash, interpreted as a big-endian unsigned integer.
type Hash [HashSize]byte

// String returns the hash in hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Target is a required number of leading zero bits.
type Target uint16

// NewTarget validates bits and returns it as a Target.
func NewTarget(bits int) (Target, error) {
	if bits < 0 || bits > MaxTarget {
		return 0, errors.Wrapf(ErrInvalidTarget, "%d is outside [0, %d]", bits, MaxTarget)
	}
	return Target(bits), nil
}

// ExpectedEvaluations is the mean number of uniformly random hashes needed
// to meet t.
func (t Target) ExpectedEvaluations() float64 {
	return math.Exp2(float64(t))
}

// HashSolution hashes a full solution with BLAKE3-256, the same function
// the challenge server uses for its identities.
func HashSolution(solution []byte) Hash {
	return blake3.Sum256(solution)
}

// Score returns the number of leading zero bits of h, 256 for the zero hash.
func Score(h Hash) int {
	for i, b := range h {
		if b != 0 {
			return i*8 + bits.LeadingZeros8(b)
		}
	}
	return MaxTarget
}

// Meets reports whether score satisfies target.
func Meets(score int, target Target) bool {
	return score >= int(target)
}

// CheckFast reports whether h has at least target leading zero bits without
// computing the full score. It checks whole zero bytes first and then masks
// the remaining high bits of the next byte.
func CheckFast(h Hash, target Target) bool {
	fullBytes := int(target) / 8
	remainder := uint(target) % 8
	for i := 0; i < fullBytes; i++ {
		if h[i] != 0 {
			return false
		}
	}
	if remainder == 0 {
		return true
	}
	mask := byte(0xff << (8 - remainder))
	return h[fullBytes]&mask == 0
}
