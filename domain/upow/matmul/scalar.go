package matmul

import (
	"math"

	"github.com/Hoosat-Oy/htnupow/domain/upow/matrix"
	"github.com/pkg/errors"
)

// maxTermMagnitude bounds |a*b| for a in [0,255] and b in [-128,127].
const maxTermMagnitude = 255 * 128

// maxInt32SafeK is the largest inner dimension whose dot products can never
// leave the int32 range.
const maxInt32SafeK = math.MaxInt32 / maxTermMagnitude

// Scalar computes p.A·p.B with native integer accumulation. It is exact by
// construction and is the reference every other path is checked against.
func Scalar(p *matrix.Pair) (*matrix.Product, error) {
	c := matrix.NewProduct(p.M, p.N)
	if p.K <= maxInt32SafeK {
		scalarInt32(p, c)
		return c, nil
	}

	acc := make([]int64, p.M*p.N)
	scalarInt64(p, acc)
	err := narrow(acc, c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scalarInt32(p *matrix.Pair, c *matrix.Product) {
	m, k, n := p.M, p.K, p.N
	for i := 0; i < m; i++ {
		row := c.Data[i*n : (i+1)*n]
		aRow := p.A[i*k : (i+1)*k]
		for kk, av := range aRow {
			if av == 0 {
				continue
			}
			a := int32(av)
			bRow := p.B[kk*n : (kk+1)*n]
			for j, bv := range bRow {
				row[j] += a * int32(bv)
			}
		}
	}
}

func scalarInt64(p *matrix.Pair, acc []int64) {
	m, k, n := p.M, p.K, p.N
	for i := 0; i < m; i++ {
		row := acc[i*n : (i+1)*n]
		aRow := p.A[i*k : (i+1)*k]
		for kk, av := range aRow {
			a := int64(av)
			bRow := p.B[kk*n : (kk+1)*n]
			for j, bv := range bRow {
				row[j] += a * int64(bv)
			}
		}
	}
}

// narrow copies the int64 accumulators into c, failing if any value does not
// fit in int32.
func narrow(acc []int64, c *matrix.Product) error {
	for i, v := range acc {
		if v > math.MaxInt32 || v < math.MinInt32 {
			return errors.Errorf("product entry (%d,%d) = %d overflows int32", i/c.Cols, i%c.Cols, v)
		}
		c.Data[i] = int32(v)
	}
	return nil
}
