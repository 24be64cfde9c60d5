package matmul

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPrecisionMismatch is the sentinel matched by every PrecisionMismatchError.
var ErrPrecisionMismatch = errors.New("accelerated product diverged from exact product")

// PrecisionMismatchError describes a divergence between an accelerated
// product and the exact one.
type PrecisionMismatchError struct {
	Device    string
	ChunkSize int
	Row, Col  int
	// Expected and Actual are only set when the divergence was found by
	// comparing against the scalar reference.
	Expected, Actual int64
	Reason           string
}

func (e *PrecisionMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: device %s (chunk %d) at (%d,%d): %s",
			ErrPrecisionMismatch, e.Device, e.ChunkSize, e.Row, e.Col, e.Reason)
	}
	return fmt.Sprintf("%s: device %s (chunk %d) at (%d,%d): expected %d, got %d",
		ErrPrecisionMismatch, e.Device, e.ChunkSize, e.Row, e.Col, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrPrecisionMismatch) hold.
func (e *PrecisionMismatchError) Is(target error) bool {
	return target == ErrPrecisionMismatch
}
