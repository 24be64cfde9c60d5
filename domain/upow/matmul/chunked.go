package matmul

import (
	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// maxExactFloat32 is the largest magnitude below which every integer is
// exactly representable in float32.
const maxExactFloat32 = 1 << float32MantissaBits

// MaxExactChunkSize returns the largest chunk size for which every partial dot
// product of the puzzle's operand range is guaranteed to stay exactly
// representable with the given significand precision. Real devices may lose
// exactness earlier, which is why the self-check stays mandatory.
func MaxExactChunkSize(mantissaBits int) int {
	return (1 << mantissaBits) / maxTermMagnitude
}

// chunker holds the float32 staging buffers of the chunked path.
type chunker struct {
	chunkSize int
	aBuf      []float32
	bBuf      []float32
	out       []float32
	acc       []int64
}

func newChunker(chunkSize int) *chunker {
	return &chunker{chunkSize: chunkSize}
}

func (c *chunker) ensure(m, n int) {
	if len(c.aBuf) < m*c.chunkSize {
		c.aBuf = make([]float32, m*c.chunkSize)
	}
	if len(c.bBuf) < c.chunkSize*n {
		c.bBuf = make([]float32, c.chunkSize*n)
	}
	if len(c.out) < m*n {
		c.out = make([]float32, m*n)
	}
	if len(c.acc) < m*n {
		c.acc = make([]int64, m*n)
	}
}

// Chunked computes p.A·p.B on dev by splitting K into chunks of chunkSize,
// converting every partial product back to an integer and accumulating the
// partials in int64. A partial that is not an exactly representable integer
// yields a PrecisionMismatchError.
func Chunked(dev Device, p *matrix.Pair, chunkSize int) (*matrix.Product, error) {
	if chunkSize <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	return newChunker(chunkSize).multiply(dev, p)
}

func (c *chunker) multiply(dev Device, p *matrix.Pair) (*matrix.Product, error) {
	m, k, n := p.M, p.K, p.N
	c.ensure(m, n)
	acc := c.acc[:m*n]
	for i := range acc {
		acc[i] = 0
	}

	for start := 0; start < k; start += c.chunkSize {
		end := start + c.chunkSize
		if end > k {
			end = k
		}
		width := end - start

		aChunk := c.aBuf[:m*width]
		for i := 0; i < m; i++ {
			aRow := p.A[i*k+start : i*k+end]
			dst := aChunk[i*width : (i+1)*width]
			for kk, v := range aRow {
				dst[kk] = float32(v)
			}
		}
		bChunk := c.bBuf[:width*n]
		for idx, v := range p.B[start*n : end*n] {
			bChunk[idx] = float32(v)
		}

		out := c.out[:m*n]
		err := dev.MatMulF32(aChunk, bChunk, m, width, n, out)
		if err != nil {
			return nil, errors.Wrapf(ErrDeviceUnavailable, "%s: chunk [%d,%d): %s", dev.Name(), start, end, err)
		}
		for idx, v := range out {
			partial, ok := exactInteger(v)
			if !ok {
				return nil, errors.WithStack(&PrecisionMismatchError{
					Device:    dev.Name(),
					ChunkSize: c.chunkSize,
					Row:       idx / n,
					Col:       idx % n,
					Reason:    "partial product is not an exactly representable integer",
				})
			}
			acc[idx] += partial
		}
	}

	product := matrix.NewProduct(m, n)
	err := narrow(acc, product)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func exactInteger(v float32) (int64, bool) {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return 0, false
	}
	rounded := math32.Round(v)
	if rounded != v || math32.Abs(rounded) > maxExactFloat32 {
		return 0, false
	}
	return int64(rounded), true
}

// SingleShot computes the whole product with one device call and converts the
// result directly to int32. It skips the chunked accumulation discipline and
// loses exactness once partial sums leave the float32 integer range, so it
// must never be used where an exact product is required. It exists to
// measure that loss.
func SingleShot(dev Device, p *matrix.Pair) (*matrix.Product, error) {
	a := make([]float32, len(p.A))
	for i, v := range p.A {
		a[i] = float32(v)
	}
	b := make([]float32, len(p.B))
	for i, v := range p.B {
		b[i] = float32(v)
	}
	out := make([]float32, p.M*p.N)
	err := dev.MatMulF32(a, b, p.M, p.K, p.N, out)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "%s: %s", dev.Name(), err)
	}
	product := matrix.NewProduct(p.M, p.N)
	for i, v := range out {
		product.Data[i] = int32(math32.Round(v))
	}
	return product, nil
}
