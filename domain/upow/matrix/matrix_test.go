package matrix

import (
	"bytes"
	"testing"

	"github.com/Hoosat-Oy/htnupow/domain/upow/seed"
	"lukechampine.com/blake3"
)

func TestExpandIsDeterministic(t *testing.T) {
	var s seed.Seed
	s[0] = 1
	first := Expand(s)
	second := Expand(s)
	if !bytes.Equal(first.A, second.A) {
		t.Fatalf("TestExpandIsDeterministic: A differs between calls")
	}
	for i := range first.B {
		if first.B[i] != second.B[i] {
			t.Fatalf("TestExpandIsDeterministic: B differs at %d", i)
		}
	}
	if len(first.A) != ASize || len(first.B) != BSize {
		t.Fatalf("TestExpandIsDeterministic: unexpected sizes %d/%d", len(first.A), len(first.B))
	}
}

func TestExpandLayout(t *testing.T) {
	s := seed.Seed{}.WithNonce(seed.NonceFromUint64(42))

	hasher := blake3.New(32, nil)
	hasher.Write(s[:])
	expected := make([]byte, XOFSize)
	hasher.XOF().Read(expected)

	pair := Expand(s)
	if !bytes.Equal(pair.A, expected[:ASize]) {
		t.Fatalf("TestExpandLayout: A is not the XOF prefix")
	}
	for i := 0; i < BSize; i += 997 {
		if pair.B[i] != int8(expected[ASize+i]) {
			t.Fatalf("TestExpandLayout: B[%d] = %d, expected %d", i, pair.B[i], int8(expected[ASize+i]))
		}
	}
}

func TestExpandDependsOnNonce(t *testing.T) {
	base := seed.Seed{}
	first := Expand(base.WithNonce(seed.NonceFromUint64(1)))
	second := Expand(base.WithNonce(seed.NonceFromUint64(2)))
	if bytes.Equal(first.A[:64], second.A[:64]) {
		t.Fatalf("TestExpandDependsOnNonce: different nonces produced the same matrices")
	}
}

func TestExpanderReusesBuffer(t *testing.T) {
	expander := NewExpander(nil)
	s := seed.Seed{}
	first := expander.Expand(&s)
	firstA := append([]byte(nil), first.A...)
	s.SetNonce(seed.NonceFromUint64(9))
	second := expander.Expand(&s)
	if &first.A[0] != &second.A[0] {
		t.Fatalf("TestExpanderReusesBuffer: expected the same backing buffer")
	}
	if bytes.Equal(firstA, second.A) {
		t.Fatalf("TestExpanderReusesBuffer: second expansion did not overwrite the buffer")
	}
}

func TestShake256Differs(t *testing.T) {
	s := seed.Seed{}
	blake := NewExpander(Blake3XOF{}).Expand(&s)
	shake := NewExpander(Shake256XOF{}).Expand(&s)
	if bytes.Equal(blake.A[:64], shake.A[:64]) {
		t.Fatalf("TestShake256Differs: XOFs produced identical output")
	}
	if _, err := XOFByName("md5"); err == nil {
		t.Fatalf("TestShake256Differs: expected unknown XOF error")
	}
}

func TestProductBytesLittleEndian(t *testing.T) {
	p := &Product{Rows: 1, Cols: 2, Data: []int32{1, -2}}
	expected := []byte{1, 0, 0, 0, 0xfe, 0xff, 0xff, 0xff}
	if !bytes.Equal(p.Bytes(), expected) {
		t.Fatalf("TestProductBytesLittleEndian: expected %x, got %x", expected, p.Bytes())
	}
	decoded, err := ProductFromBytes(expected, 1, 2)
	if err != nil || !decoded.Equal(p) {
		t.Fatalf("TestProductBytesLittleEndian: decode mismatch: %v %v", decoded, err)
	}
}

func TestNewPairValidatesShape(t *testing.T) {
	if _, err := NewPair([]uint8{1, 2, 3}, []int8{1, 2, 3, 4}, 2, 2, 2); err == nil {
		t.Fatalf("TestNewPairValidatesShape: expected error for short A")
	}
	if _, err := NewPair([]uint8{1, 2, 3, 4}, []int8{1, 2, 3, 4}, 2, 2, 2); err != nil {
		t.Fatalf("TestNewPairValidatesShape: unexpected error: %s", err)
	}
	if _, err := PairFromBytes(make([]byte, 10)); err == nil {
		t.Fatalf("TestNewPairValidatesShape: expected error for short matrix data")
	}
}
