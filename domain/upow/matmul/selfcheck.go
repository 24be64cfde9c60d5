package matmul

import (
	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"github.com/pkg/errors"
)

// compare returns a PrecisionMismatchError for the first entry where actual
// differs from expected.
func compare(device string, chunkSize int, expected, actual *matrix.Product) error {
	if expected.Rows != actual.Rows || expected.Cols != actual.Cols {
		return errors.WithStack(&PrecisionMismatchError{
			Device:    device,
			ChunkSize: chunkSize,
			Reason:    "product shape differs",
		})
	}
	for i := range expected.Data {
		if expected.Data[i] != actual.Data[i] {
			return errors.WithStack(&PrecisionMismatchError{
				Device:    device,
				ChunkSize: chunkSize,
				Row:       i / expected.Cols,
				Col:       i % expected.Cols,
				Expected:  int64(expected.Data[i]),
				Actual:    int64(actual.Data[i]),
			})
		}
	}
	return nil
}

// SelfCheck multiplies every sample on dev through the chunked path and
// compares the result with Scalar.
func SelfCheck(dev Device, chunkSize int, samples []*matrix.Pair) error {
	for i, sample := range samples {
		expected, err := Scalar(sample)
		if err != nil {
			return errors.Wrapf(err, "sample %d", i)
		}
		actual, err := Chunked(dev, sample, chunkSize)
		if err != nil {
			return err
		}
		err = compare(dev.Name(), chunkSize, expected, actual)
		if err != nil {
			return err
		}
	}
	return nil
}

// SamplePairs returns count deterministic full-size operand pairs for
// SelfCheck. The first two are the extreme-magnitude pairs (all A at 255 with
// all B at 127, then at -128); the rest are expanded from seeds with
// increasing nonces.
func SamplePairs(count int) []*matrix.Pair {
	samples := make([]*matrix.Pair, 0, count)
	for _, b := range []int8{127, -128} {
		if len(samples) == count {
			return samples
		}
		samples = append(samples, ExtremePair(matrix.M, matrix.K, matrix.N, 255, b))
	}

	var base seed.Seed
	for i := range base {
		base[i] = byte(i)
	}
	for nonce := uint64(0); len(samples) < count; nonce++ {
		samples = append(samples, matrix.Expand(base.WithNonce(seed.NonceFromUint64(nonce))))
	}
	return samples
}

// ExtremePair returns an m×k by k×n pair whose every entry of A is a and of B
// is b.
func ExtremePair(m, k, n int, a uint8, b int8) *matrix.Pair {
	pair := &matrix.Pair{
		A: make([]uint8, m*k),
		B: make([]int8, k*n),
		M: m, K: k, N: n,
	}
	for i := range pair.A {
		pair.A[i] = a
	}
	for i := range pair.B {
		pair.B[i] = b
	}
	return pair
}
