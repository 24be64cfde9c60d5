package matrix

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
)

// Puzzle dimensions: A is M×K, B is K×N and the product C is M×N.
const (
	M = 16
	K = 50240
	N = 16

	// ASize and BSize are the byte lengths of A and B.
	ASize = M * K
	BSize = K * N

	// XOFSize is the number of XOF bytes needed to fill both matrices.
	XOFSize = ASize + BSize

	// ProductSize is the byte length of a serialized M×N product.
	ProductSize = M * N * 4
)

// Pair holds the operands of one evaluation. A is row-major M×K unsigned
// 8-bit, B is row-major K×N signed 8-bit.
type Pair struct {
	A       []uint8
	B       []int8
	M, K, N int
}

// NewPair validates the operand lengths against the shape and returns a pair
// referencing a and b.
func NewPair(a []uint8, b []int8, m, k, n int) (*Pair, error) {
	if m <= 0 || k <= 0 || n <= 0 {
		return nil, errors.Errorf("invalid matrix shape %dx%dx%d", m, k, n)
	}
	if len(a) != m*k {
		return nil, errors.Errorf("matrix A must hold %d values, got %d", m*k, len(a))
	}
	if len(b) != k*n {
		return nil, errors.Errorf("matrix B must hold %d values, got %d", k*n, len(b))
	}
	return &Pair{A: a, B: b, M: m, K: k, N: n}, nil
}

// PairFromBytes reinterprets raw as the puzzle-shaped A followed by B, the
// layout produced by the XOF and served by the seed_with_matrix_a_b endpoint.
// The returned pair aliases raw.
func PairFromBytes(raw []byte) (*Pair, error) {
	if len(raw) != XOFSize {
		return nil, errors.Errorf("matrix data must be %d bytes, got %d", XOFSize, len(raw))
	}
	return &Pair{
		A: raw[:ASize],
		B: bytesAsInt8(raw[ASize:]),
		M: M, K: K, N: N,
	}, nil
}

func bytesAsInt8(b []byte) []int8 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&b[0])), len(b))
}

// Product is the exact M×N int32 result of A·B, row-major.
type Product struct {
	Rows, Cols int
	Data       []int32
}

// NewProduct allocates a zeroed rows×cols product.
func NewProduct(rows, cols int) *Product {
	return &Product{Rows: rows, Cols: cols, Data: make([]int32, rows*cols)}
}

// At returns C[i][j].
func (p *Product) At(i, j int) int32 {
	return p.Data[i*p.Cols+j]
}

// Equal returns whether both products have the same shape and values.
func (p *Product) Equal(other *Product) bool {
	if p.Rows != other.Rows || p.Cols != other.Cols || len(p.Data) != len(other.Data) {
		return false
	}
	for i, v := range p.Data {
		if other.Data[i] != v {
			return false
		}
	}
	return true
}

// Bytes serializes the product row-major as little-endian int32 values.
func (p *Product) Bytes() []byte {
	b := make([]byte, len(p.Data)*4)
	p.PutBytes(b)
	return b
}

// PutBytes writes the serialized product into b, which must hold at least
// 4*Rows*Cols bytes.
func (p *Product) PutBytes(b []byte) {
	for i, v := range p.Data {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
	}
}

// ProductFromBytes deserializes a little-endian rows×cols product.
func ProductFromBytes(b []byte, rows, cols int) (*Product, error) {
	if len(b) != rows*cols*4 {
		return nil, errors.Errorf("product must be %d bytes, got %d", rows*cols*4, len(b))
	}
	p := NewProduct(rows, cols)
	for i := range p.Data {
		p.Data[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return p, nil
}
