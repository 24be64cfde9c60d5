package matrix

import (
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
)

// Expander expands seeds into matrix pairs, reusing one XOF buffer. It is not
// safe for concurrent use; each worker owns its own Expander.
type Expander struct {
	xof    XOF
	buffer []byte
}

// NewExpander returns an expander using the given XOF, or BLAKE3 when xof is nil.
func NewExpander(xof XOF) *Expander {
	if xof == nil {
		xof = Blake3XOF{}
	}
	return &Expander{
		xof:    xof,
		buffer: make([]byte, XOFSize),
	}
}

// Expand fills the expander's buffer from the full 240-byte seed and returns
// a pair aliasing it. The pair is valid until the next call to Expand.
func (e *Expander) Expand(s *seed.Seed) *Pair {
	e.xof.Fill(e.buffer, s[:])
	return &Pair{
		A: e.buffer[:ASize],
		B: bytesAsInt8(e.buffer[ASize:]),
		M: M, K: K, N: N,
	}
}

// Expand deterministically expands s with BLAKE3 into a freshly allocated pair.
func Expand(s seed.Seed) *Pair {
	return NewExpander(nil).Expand(&s)
}
